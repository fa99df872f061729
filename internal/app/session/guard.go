package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Guard is the gate pages call before rendering role specific content.
// Client side role checks only shape the UI; the remote authority enforces
// authorization on every request.
type Guard struct {
	monitor   *Monitor
	cache     *Cache
	presenter Presenter
	logger    *zap.Logger
}

func NewGuard(monitor *Monitor, cache *Cache, presenter Presenter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presenter == nil {
		presenter = NewLogPresenter(logger)
	}
	return &Guard{
		monitor:   monitor,
		cache:     cache,
		presenter: presenter,
		logger:    logger.With(zap.String("component", "access_guard")),
	}
}

// For returns a guard whose side effects go to p instead of the default
// presenter.
func (g *Guard) For(p Presenter) *Guard {
	cp := *g
	cp.presenter = p
	return &cp
}

// EntryPath is where users without a session are sent.
func (g *Guard) EntryPath() string {
	return g.monitor.EntryPath()
}

func (g *Guard) valid(ctx context.Context) bool {
	return g.monitor.CheckWith(ctx, g.presenter) == StateValid
}

// HasRole reports whether the current session carries role.
func (g *Guard) HasRole(ctx context.Context, role Role) bool {
	if role == RoleNone {
		return false
	}
	state, id := g.monitor.admit(ctx, g.presenter)
	return state == StateValid && id.Role == role
}

// RequireAuth admits only a live session holding required (any role when
// required is RoleNone) and returns the identity it admitted. Without a
// session the user is sent to the entry page; an expired or unreadable
// session is already being redirected by the monitor. A role mismatch shows
// a denial and keeps the session.
func (g *Guard) RequireAuth(ctx context.Context, required Role) (Identity, bool) {
	state, id := g.monitor.admit(ctx, g.presenter)
	switch state {
	case StateNoSession:
		g.logger.Debug("No session, redirecting to entry page")
		g.presenter.Navigate(g.monitor.EntryPath())
		return Identity{}, false
	case StateExpiredOrInvalid:
		return Identity{}, false
	}

	if required == RoleNone || id.Role == required {
		return id, true
	}

	g.logger.Warn("Role mismatch",
		zap.Stringer("required", required),
		zap.Stringer("actual", id.Role),
		zap.Error(ErrRoleMismatch))
	g.presenter.Deny(fmt.Sprintf(messageDenied, required))
	return Identity{}, false
}

// Identity returns the identity of a live session.
func (g *Guard) Identity(ctx context.Context) (Identity, bool) {
	state, id := g.monitor.admit(ctx, g.presenter)
	return id, state == StateValid
}

// Claims returns the claims of a live session.
func (g *Guard) Claims(ctx context.Context) (*Claims, bool) {
	if !g.valid(ctx) {
		return nil, false
	}
	claims, err := g.cache.Claims(ctx)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// BearerToken returns the token to attach to privileged requests. It is
// only handed out while the session is valid.
func (g *Guard) BearerToken(ctx context.Context) (string, bool) {
	if !g.valid(ctx) {
		return "", false
	}
	return g.cache.Token(ctx)
}
