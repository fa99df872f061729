package statistics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
)

var _ Service = (*ServiceImpl)(nil)

// Repository is the backend view of prediction logs.
type Repository interface {
	Logs(ctx context.Context) (api.Metrics, error)
	LogsByUser(ctx context.Context, username string) (api.Metrics, error)
	FilterLogs(ctx context.Context, username string, from, to time.Time) ([]api.LogEntry, error)
}

type Service interface {
	Overview(ctx context.Context) (api.Metrics, error)
	ForUser(ctx context.Context, username string) (api.Metrics, error)
	Filtered(ctx context.Context, username string, from, to time.Time) (api.Metrics, []api.LogEntry, error)
}

type ServiceImpl struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *ServiceImpl) Overview(ctx context.Context) (api.Metrics, error) {
	l := s.logger.With(zap.String("method", "Overview"))
	m, err := s.repo.Logs(ctx)
	if err != nil {
		l.Error("Failed to get prediction overview", zap.Error(err))
		return api.Metrics{}, err
	}

	l.Debug("Retrieved prediction overview", zap.Int("total", m.TotalPredicciones))
	return m, nil
}

func (s *ServiceImpl) ForUser(ctx context.Context, username string) (api.Metrics, error) {
	l := s.logger.With(zap.String("method", "ForUser"), zap.String("user", username))
	m, err := s.repo.LogsByUser(ctx, username)
	if err != nil {
		l.Error("Failed to get user statistics", zap.Error(err))
		return api.Metrics{}, err
	}

	l.Debug("Retrieved user statistics", zap.Int("total", m.TotalPredicciones))
	return m, nil
}

// Filtered fetches the entries in range and computes their figures locally.
func (s *ServiceImpl) Filtered(ctx context.Context, username string, from, to time.Time) (api.Metrics, []api.LogEntry, error) {
	l := s.logger.With(zap.String("method", "Filtered"), zap.String("user", username))
	entries, err := s.repo.FilterLogs(ctx, username, from, to)
	if err != nil {
		l.Error("Failed to filter prediction logs", zap.Error(err))
		return api.Metrics{}, nil, err
	}

	l.Debug("Filtered prediction logs", zap.Int("entries", len(entries)))
	return Compute(entries), entries, nil
}
