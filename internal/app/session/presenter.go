package session

import "go.uber.org/zap"

// Presenter receives the UI side effects of the session core.
type Presenter interface {
	// ShowUnauthorized fills the page's "unauthorized" region, if it has one.
	ShowUnauthorized(message string)
	// Navigate leaves the current page for target.
	Navigate(target string)
	// Deny tells the user they lack the role for what they tried to open.
	Deny(message string)
}

// LogPresenter is the presenter used when no page is attached, e.g. by the
// background re-validation loop.
type LogPresenter struct {
	logger *zap.Logger
}

func NewLogPresenter(logger *zap.Logger) *LogPresenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPresenter{logger: logger.With(zap.String("component", "presenter"))}
}

func (p *LogPresenter) ShowUnauthorized(message string) {
	p.logger.Warn("Session no longer valid", zap.String("message", message))
}

func (p *LogPresenter) Navigate(target string) {
	p.logger.Info("Redirecting to entry page", zap.String("target", target))
}

func (p *LogPresenter) Deny(message string) {
	p.logger.Warn("Access denied", zap.String("message", message))
}

// Recorder observes session transitions, typically for metrics.
type Recorder interface {
	CheckCompleted(state State)
	RedirectScheduled()
}

type nopRecorder struct{}

func (nopRecorder) CheckCompleted(State) {}
func (nopRecorder) RedirectScheduled()   {}
