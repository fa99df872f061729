package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/pages"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

const (
	guardKey    = "session_guard"
	identityKey = "session_identity"
)

// PagePresenter collects the session side effects raised while one request
// is handled. It never touches the response itself, so a redirect the
// monitor fires after the handler returned is only recorded.
type PagePresenter struct {
	mu           sync.Mutex
	unauthorized string
	target       string
	denied       string
	logger       *zap.Logger
}

func NewPagePresenter(logger *zap.Logger) *PagePresenter {
	return &PagePresenter{logger: logger}
}

func (p *PagePresenter) ShowUnauthorized(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unauthorized = message
}

func (p *PagePresenter) Navigate(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = target
	p.logger.Debug("Navigation requested", zap.String("target", target))
}

func (p *PagePresenter) Deny(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied = message
}

// Outcome is a snapshot of what the session core asked the page to do.
type Outcome struct {
	Unauthorized string
	Target       string
	Denied       string
}

func (p *PagePresenter) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Outcome{Unauthorized: p.unauthorized, Target: p.target, Denied: p.denied}
}

// SessionGate admits the request only for a live session holding required
// (any role for session.RoleNone). Otherwise it answers with what the
// session core asked for: the unauthorized placeholder that moves to the
// entry page after redirectDelay, a redirect, or a denial.
func SessionGate(guard *session.Guard, required session.Role, redirectDelay time.Duration, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.With(zap.String("component", "session_gate"))
	return func(c *gin.Context) {
		p := NewPagePresenter(logger)
		g := guard.For(p)
		ctx := c.Request.Context()

		if id, ok := g.RequireAuth(ctx, required); ok {
			c.Set(guardKey, g)
			c.Set(identityKey, id)
			c.Next()
			return
		}

		out := p.Outcome()
		switch {
		case out.Unauthorized != "":
			target := out.Target
			if target == "" {
				target = guard.EntryPath()
			}
			c.Header("Cache-Control", "no-store")
			Render(c, http.StatusUnauthorized, pages.PlaceholderPage(pages.Placeholder{
				Message:      out.Unauthorized,
				Target:       target,
				DelaySeconds: delaySeconds(redirectDelay),
			}))
			c.Abort()
		case out.Denied != "":
			Render(c, http.StatusForbidden, pages.DeniedPage(pages.Denied{
				Message: out.Denied,
				Back:    "/dashboard",
			}))
			c.Abort()
		default:
			target := out.Target
			if target == "" {
				target = guard.EntryPath()
			}
			redirect(c, target, http.StatusUnauthorized)
		}
	}
}

func delaySeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// Redirect handles redirects for both regular and HTMX requests.
func Redirect(c *gin.Context, target string) {
	redirect(c, target, http.StatusOK)
}

func redirect(c *gin.Context, target string, htmxStatus int) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", target)
		c.AbortWithStatus(htmxStatus)
		return
	}
	c.Redirect(http.StatusSeeOther, target)
	c.Abort()
}

// Render writes component with status.
func Render(c *gin.Context, status int, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// GetGuard returns the request-scoped guard set by SessionGate.
func GetGuard(c *gin.Context) (*session.Guard, bool) {
	v, ok := c.Get(guardKey)
	if !ok {
		return nil, false
	}
	g, ok := v.(*session.Guard)
	return g, ok
}

// GetIdentity returns the identity admitted by SessionGate.
func GetIdentity(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return session.Identity{}, false
	}
	id, ok := v.(session.Identity)
	return id, ok
}
