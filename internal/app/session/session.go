package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config configures a Session.
type Config struct {
	StorageKey string
	Monitor    MonitorConfig
}

// Session wires the store, cache, monitor and guard together. One Session
// is built per process and handed to every component that needs it.
type Session struct {
	Store   *TokenStore
	Cache   *Cache
	Monitor *Monitor
	Guard   *Guard

	logger *zap.Logger
}

// New builds a Session on top of kv. presenter and recorder may be nil.
func New(kv KV, cfg Config, presenter Presenter, recorder Recorder, logger *zap.Logger) *Session {
	return NewWithDecoder(kv, NewTokenDecoder(), cfg, presenter, recorder, logger)
}

// NewWithDecoder is New with a custom decoder.
func NewWithDecoder(kv KV, decoder Decoder, cfg Config, presenter Presenter, recorder Recorder, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presenter == nil {
		presenter = NewLogPresenter(logger)
	}
	store := NewTokenStore(kv, cfg.StorageKey, logger)
	cache := NewCache(store, decoder, logger)
	monitor := NewMonitor(store, cache, presenter, recorder, cfg.Monitor, logger)
	return &Session{
		Store:   store,
		Cache:   cache,
		Monitor: monitor,
		Guard:   NewGuard(monitor, cache, presenter, logger),
		logger:  logger.With(zap.String("component", "session")),
	}
}

// Login persists a token received from the remote authority, replacing any
// previous session. A token that cannot be read or is already expired does
// not survive: the store is cleared again and the error returned.
func (s *Session) Login(ctx context.Context, token string) (id Identity, err error) {
	s.Monitor.exclusive(func() {
		id, err = s.login(ctx, token)
	})
	if err != nil {
		return Identity{}, err
	}
	s.logger.Info("Session started",
		zap.String("username", id.Username),
		zap.Stringer("role", id.Role))
	return id, nil
}

func (s *Session) login(ctx context.Context, token string) (Identity, error) {
	if err := s.Store.Write(ctx, SessionRecord{Token: token}); err != nil {
		return Identity{}, err
	}
	s.Cache.Invalidate()

	claims, err := s.Cache.Claims(ctx)
	if err == nil && claims.ExpiredAt(s.Monitor.cfg.Now()) {
		err = fmt.Errorf("login: %w", ErrExpired)
	}
	if err != nil {
		if clearErr := s.Store.Clear(ctx); clearErr != nil {
			s.logger.Error("Failed to discard rejected token", zap.Error(clearErr))
		}
		s.Cache.Invalidate()
		return Identity{}, err
	}

	id, _ := s.Cache.Identity(ctx)
	return id, nil
}

// Logout ends the session explicitly.
func (s *Session) Logout(ctx context.Context) (err error) {
	s.Monitor.exclusive(func() {
		err = s.Store.Clear(ctx)
		s.Cache.Invalidate()
	})
	if err != nil {
		return err
	}
	s.logger.Info("Session ended by logout")
	return nil
}
