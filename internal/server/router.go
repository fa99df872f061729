package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/observability/metrics"
	"github.com/FACorreiaa/churninsight-dashboard/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(deps routes.Dependencies, serviceName string, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.OTELGinMiddleware(serviceName))
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware(metrics.Get()))
	r.Use(middleware.SecurityMiddleware())

	if err := SetupAssets(r); err != nil {
		return nil, err
	}
	routes.Setup(r, deps, logger)

	return r, nil
}
