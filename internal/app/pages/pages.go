// Package pages holds the dashboard's HTML views as templ components.
package pages

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/export"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/statistics"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("pages").Funcs(template.FuncMap{
	"percent":     statistics.Percent,
	"risk":        export.RiskLevel,
	"featureName": export.FeatureName,
	"upper":       strings.ToUpper,
	"list":        func(s ...string) []string { return s },
	"datePart": func(s *string) string {
		if s == nil {
			return ""
		}
		day, _, _ := strings.Cut(*s, "T")
		return day
	},
}).ParseFS(templateFS, "templates/*.html"))

func view(name string, data any) templ.Component {
	return templ.FromGoHTML(templates.Lookup(name), data)
}

// NavItem is one entry of the top navigation.
type NavItem struct {
	Name string
	URL  string
}

// Layout is the page chrome around a view.
type Layout struct {
	Title       string
	ActiveNav   string
	Nav         []NavItem
	DisplayName string
	Role        string
}

// LayoutPage wraps content in the full HTML document.
func LayoutPage(l Layout, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := view("layout_start", l).Render(ctx, w); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		return view("layout_end", l).Render(ctx, w)
	})
}

// BannerType selects the banner styling.
type BannerType string

const (
	BannerError   BannerType = "error"
	BannerSuccess BannerType = "success"
	BannerInfo    BannerType = "info"
)

// BannerProps describes an inline notice.
type BannerProps struct {
	Type    BannerType
	Message string
	ID      string
}

func Banner(p BannerProps) templ.Component {
	return view("banner", p)
}

// Placeholder is shown in place of a page whose session just ended. The
// browser leaves for Target after DelaySeconds.
type Placeholder struct {
	Message      string
	Target       string
	DelaySeconds int
}

func PlaceholderPage(p Placeholder) templ.Component {
	return view("placeholder", p)
}

// Denied is shown when the session lacks the role a page requires.
type Denied struct {
	Message string
	Back    string
}

func DeniedPage(d Denied) templ.Component {
	return view("denied", d)
}

// Entry is the sign-in page.
type Entry struct {
	Usuario string
	Error   string
	Notice  string
}

func EntryPage(e Entry) templ.Component {
	return view("entry", e)
}

// Register is the sign-up page. Errors is keyed by form field name.
type Register struct {
	Usuario string
	Email   string
	Errors  map[string]string
	Error   string
}

func RegisterPage(r Register) templ.Component {
	return view("register", r)
}
