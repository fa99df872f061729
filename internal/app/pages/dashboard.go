package pages

import (
	"github.com/a-h/templ"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
)

// Filter echoes the admin filter form.
type Filter struct {
	User string
	From string
	To   string
	Min  string
	Max  string
}

// Dashboard is the metrics page for either role.
type Dashboard struct {
	Admin    bool
	Username string
	Metrics  api.Metrics
	Users    []api.User
	Filter   Filter
	// Filtered is set when Metrics were computed from a filter result.
	Filtered  bool
	ExportURL string
	Error     string
}

func DashboardPage(d Dashboard) templ.Component {
	return view("dashboard", d)
}

// Predict is the single and batch prediction page.
type Predict struct {
	Values    map[string]string
	Errors    map[string]string
	Result    *api.Prediction
	Batch     []api.Prediction
	ExportURL string
	Error     string
}

func PredictPage(p Predict) templ.Component {
	return view("predict", p)
}

// PredictionResult renders a single prediction card for HTMX swaps.
func PredictionResult(p api.Prediction) templ.Component {
	return view("prediction_card", p)
}
