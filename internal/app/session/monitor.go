package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the outcome of a validity check.
type State int

const (
	StateNoSession State = iota
	StateValid
	StateExpiredOrInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "VALID"
	case StateExpiredOrInvalid:
		return "EXPIRED_OR_INVALID"
	default:
		return "NO_SESSION"
	}
}

// MonitorConfig holds the timings of the validity monitor.
type MonitorConfig struct {
	EntryPath     string
	CheckInterval time.Duration
	RedirectDelay time.Duration
	// Now and AfterFunc are replaced in tests.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

// DefaultMonitorConfig matches the dashboard defaults: re-check once per
// minute and leave the page one second after showing the placeholder.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		EntryPath:     "/",
		CheckInterval: time.Minute,
		RedirectDelay: time.Second,
	}
}

// Monitor decides whether the cached token is usable and tears the session
// down when it is not. Checks are serialized.
type Monitor struct {
	store     *TokenStore
	cache     *Cache
	presenter Presenter
	recorder  Recorder
	cfg       MonitorConfig
	logger    *zap.Logger

	mu              sync.Mutex
	state           State
	redirectPending atomic.Bool
}

func NewMonitor(store *TokenStore, cache *Cache, presenter Presenter, recorder Recorder, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.EntryPath == "" {
		cfg.EntryPath = def.EntryPath
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.RedirectDelay < 0 {
		cfg.RedirectDelay = def.RedirectDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if presenter == nil {
		presenter = NewLogPresenter(logger)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Monitor{
		store:     store,
		cache:     cache,
		presenter: presenter,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "validity_monitor")),
	}
}

// EntryPath is where the user is sent when the session ends.
func (m *Monitor) EntryPath() string {
	return m.cfg.EntryPath
}

// Check runs a validity check with the process-wide presenter.
func (m *Monitor) Check(ctx context.Context) State {
	return m.CheckWith(ctx, m.presenter)
}

// CheckWith runs a validity check and sends its UI side effects to p.
func (m *Monitor) CheckWith(ctx context.Context, p Presenter) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkLocked(ctx, p)
}

// admit runs a check and returns the identity of the session it found
// valid, read before any other check, login or logout can change it.
func (m *Monitor) admit(ctx context.Context, p Presenter) (State, Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.checkLocked(ctx, p)
	if state != StateValid {
		return state, Identity{}
	}
	id, ok := m.cache.Identity(ctx)
	if !ok {
		return StateNoSession, Identity{}
	}
	return state, id
}

// exclusive runs fn with no check in progress. Login and logout go through
// it so that a check never clears a record it did not inspect.
func (m *Monitor) exclusive(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func (m *Monitor) checkLocked(ctx context.Context, p Presenter) State {
	state := StateValid
	claims, err := m.cache.Claims(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		state = StateNoSession
	case err != nil:
		m.logger.Info("Ending session with unreadable token", zap.Error(err))
		state = m.endSession(ctx, p, err)
	case claims.ExpiredAt(m.cfg.Now()):
		exp, _ := claims.ExpiresAtUnix()
		m.logger.Info("Session expired", zap.Int64("exp", exp))
		state = m.endSession(ctx, p, ErrExpired)
	}

	if prev := m.state; prev != state {
		m.logger.Debug("Session state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", state))
	}
	m.state = state
	m.recorder.CheckCompleted(state)
	return state
}

// endSession clears the store and the cache, shows the placeholder and
// schedules the redirect. A redirect that is already pending is not
// scheduled again.
func (m *Monitor) endSession(ctx context.Context, p Presenter, reason error) State {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("Failed to clear session record", zap.Error(err))
	}
	m.cache.Invalidate()

	p.ShowUnauthorized(Message(reason))

	if m.redirectPending.CompareAndSwap(false, true) {
		m.recorder.RedirectScheduled()
		target := m.cfg.EntryPath
		m.cfg.AfterFunc(m.cfg.RedirectDelay, func() {
			m.redirectPending.Store(false)
			p.Navigate(target)
		})
	}
	return StateExpiredOrInvalid
}

// State returns the outcome of the last check.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the time left before the current token expires.
func (m *Monitor) Remaining(ctx context.Context) (time.Duration, bool) {
	claims, err := m.cache.Claims(ctx)
	if err != nil {
		return 0, false
	}
	exp, ok := claims.ExpiresAtUnix()
	if !ok {
		return 0, false
	}
	return time.Unix(exp, 0).Sub(m.cfg.Now()), true
}

// Run checks the session now, then every CheckInterval and at the moment the
// current token expires, until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	expiry := time.NewTimer(m.cfg.CheckInterval)
	expiry.Stop()
	defer expiry.Stop()

	m.logger.Info("Session monitor started", zap.Duration("interval", m.cfg.CheckInterval))
	for {
		if m.Check(ctx) == StateValid {
			if left, ok := m.Remaining(ctx); ok && left > 0 && left < m.cfg.CheckInterval {
				expiry.Reset(left)
			}
		}

		select {
		case <-ctx.Done():
			m.logger.Info("Session monitor stopped")
			return
		case <-ticker.C:
		case <-expiry.C:
		}
	}
}
