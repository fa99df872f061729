package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// Backend is the remote authority that issues tokens.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (string, error)
	Register(ctx context.Context, reg api.Registration) error
}

// SessionManager persists and discards the local session.
type SessionManager interface {
	Login(ctx context.Context, token string) (session.Identity, error)
	Logout(ctx context.Context) error
}

// CacheClearer drops per-session cached data.
type CacheClearer interface {
	ClearAll()
}

var (
	// ErrBadCredentials means the backend rejected the user or password.
	ErrBadCredentials = errors.New("auth: bad credentials")
	// ErrAlreadyRegistered means the user or email is taken.
	ErrAlreadyRegistered = errors.New("auth: user or email already registered")
	// ErrUnreachable means the backend could not be reached or answered
	// unexpectedly.
	ErrUnreachable = errors.New("auth: backend unreachable")
)

type AuthService interface {
	SignIn(ctx context.Context, req LoginRequest) (session.Identity, error)
	SignUp(ctx context.Context, req RegisterRequest) error
	SignOut(ctx context.Context) error
}

type AuthServiceImpl struct {
	backend  Backend
	sessions SessionManager
	caches   CacheClearer
	logger   *zap.Logger
}

func NewAuthService(backend Backend, sessions SessionManager, caches CacheClearer, logger *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		backend:  backend,
		sessions: sessions,
		caches:   caches,
		logger:   logger,
	}
}

// SignIn exchanges credentials for a token and starts the local session with
// it. A token the backend issues already expired or unreadable is rejected.
func (s *AuthServiceImpl) SignIn(ctx context.Context, req LoginRequest) (session.Identity, error) {
	l := s.logger.With(zap.String("method", "SignIn"), zap.String("usuario", req.Usuario))

	token, err := s.backend.Login(ctx, api.Credentials{Usuario: req.Usuario, Password: req.Password})
	if err != nil {
		if errors.Is(err, api.ErrBadCredentials) {
			l.Info("Invalid login credentials")
			return session.Identity{}, ErrBadCredentials
		}
		l.Error("Login request failed", zap.Error(err))
		return session.Identity{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if s.caches != nil {
		s.caches.ClearAll()
	}
	id, err := s.sessions.Login(ctx, token)
	if err != nil {
		l.Error("Backend issued an unusable token", zap.Error(err))
		return session.Identity{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	l.Info("User signed in", zap.Stringer("role", id.Role))
	return id, nil
}

// SignUp creates the account. Any 4xx from the backend is reported as an
// existing user or email.
func (s *AuthServiceImpl) SignUp(ctx context.Context, req RegisterRequest) error {
	l := s.logger.With(zap.String("method", "SignUp"), zap.String("usuario", req.Usuario))

	err := s.backend.Register(ctx, api.Registration{Usuario: req.Usuario, Email: req.Email, Password: req.Password})
	if err == nil {
		l.Info("User registered")
		return nil
	}

	var se *api.StatusError
	if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
		l.Info("Registration rejected", zap.Int("status", se.StatusCode))
		return ErrAlreadyRegistered
	}
	l.Error("Registration request failed", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func (s *AuthServiceImpl) SignOut(ctx context.Context) error {
	if s.caches != nil {
		s.caches.ClearAll()
	}
	if err := s.sessions.Logout(ctx); err != nil {
		s.logger.Error("Failed to clear session on logout", zap.Error(err))
		return err
	}
	return nil
}
