package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/observability/metrics"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
	database "github.com/FACorreiaa/churninsight-dashboard/internal/db"
	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/cache"
	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/config"
	"github.com/FACorreiaa/churninsight-dashboard/internal/routes"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	redis   *redis.Client
	session *session.Session
	api     *api.Client
	caches  *cache.CacheManager
	router  http.Handler
}

// New creates a new Server instance with all dependencies
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	kv, err := s.setupSessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup session store: %w", err)
	}

	s.session = session.New(kv, session.Config{
		StorageKey: cfg.Session.StorageKey,
		Monitor: session.MonitorConfig{
			EntryPath:     cfg.Session.EntryPath,
			CheckInterval: cfg.Session.CheckInterval,
			RedirectDelay: cfg.Session.RedirectDelay,
		},
	}, nil, metrics.NewSessionRecorder(metrics.Get()), logger)

	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.API.BaseURL
	apiCfg.Timeout = cfg.API.Timeout
	apiCfg.MaxRetries = cfg.API.MaxRetries
	s.api, err = api.NewClient(apiCfg, s.session.Guard, metrics.NewAPIRecorder(metrics.Get()), logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	s.caches = cache.NewCacheManager(logger)
	return s, nil
}

// setupSessionStore picks the backend that persists the session record.
func (s *Server) setupSessionStore(ctx context.Context) (session.KV, error) {
	l := s.logger.With(zap.String("backend", s.cfg.Session.Backend))

	switch s.cfg.Session.Backend {
	case config.StoreRedis:
		client := database.NewRedisClient(s.cfg.Redis)
		if !database.WaitForRedis(ctx, client, s.logger) {
			_ = client.Close()
			return nil, fmt.Errorf("redis at %s is not reachable", s.cfg.Redis.Addr)
		}
		s.redis = client
		l.Info("Connected to Redis", zap.String("addr", s.cfg.Redis.Addr), zap.Int("db", s.cfg.Redis.DB))
		return session.NewRedisKV(client), nil
	case config.StoreMemory:
		l.Warn("Session is kept in memory and will not survive a restart")
		return session.NewMemoryKV(), nil
	default:
		l.Info("Session store ready", zap.String("file", s.cfg.Session.FilePath))
		return session.NewFileKV(s.cfg.Session.FilePath), nil
	}
}

// Dependencies returns what the routes are built from.
func (s *Server) Dependencies() routes.Dependencies {
	return routes.Dependencies{
		Session:        s.session,
		API:            s.api,
		Caches:         s.caches,
		RedirectDelay:  s.cfg.Session.RedirectDelay,
		AllowedOrigins: s.cfg.AllowedOrigins,
	}
}

// RunMonitor keeps checking the session until ctx is done.
func (s *Server) RunMonitor(ctx context.Context) {
	s.session.Monitor.Run(ctx)
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr(),
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.cfg.API.Timeout*time.Duration(s.cfg.API.MaxRetries+1) + 10*time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.caches != nil {
		s.caches.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
}
