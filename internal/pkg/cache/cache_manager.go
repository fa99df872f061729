package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
)

// CacheManager holds the caches of backend responses shown on the dashboard.
type CacheManager struct {
	// Users backs the admin user selector.
	Users *UnifiedCache[[]api.User]
	// Filtered holds filter results so a CSV export reuses what the operator
	// just looked at.
	Filtered *UnifiedCache[[]api.LogEntry]
	// Batches keeps the last batch prediction of each viewer for download.
	Batches *UnifiedCache[[]api.Prediction]
}

// NewCacheManager creates a cache manager with default TTLs
func NewCacheManager(logger *zap.Logger) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheManager{
		Users:    NewUnifiedCache[[]api.User](5*time.Minute, "users", logger),
		Filtered: NewUnifiedCache[[]api.LogEntry](2*time.Minute, "filtered_logs", logger),
		Batches:  NewUnifiedCache[[]api.Prediction](15*time.Minute, "batch_predictions", logger),
	}
}

// GetAllMetrics returns metrics for all caches
func (cm *CacheManager) GetAllMetrics() map[string]CacheMetrics {
	return map[string]CacheMetrics{
		"users":         cm.Users.GetMetrics(),
		"filtered_logs": cm.Filtered.GetMetrics(),
		"batches":       cm.Batches.GetMetrics(),
	}
}

// ClearAll drops every cached response. Called when the session changes.
func (cm *CacheManager) ClearAll() {
	cm.Users.Clear()
	cm.Filtered.Clear()
	cm.Batches.Clear()
}

// Close stops the background sweeps.
func (cm *CacheManager) Close() {
	cm.Users.Close()
	cm.Filtered.Close()
	cm.Batches.Close()
}
