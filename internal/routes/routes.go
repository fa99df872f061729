package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/auth"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/dashboard"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/prediction"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/statistics"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/cache"
)

// Dependencies are the long-lived components the handlers are built from.
type Dependencies struct {
	Session        *session.Session
	API            *api.Client
	Caches         *cache.CacheManager
	RedirectDelay  time.Duration
	AllowedOrigins []string
}

type AppHandlers struct {
	Auth       *auth.AuthHandlers
	Dashboard  *dashboard.DashboardHandlers
	Status     *dashboard.StatusHandler
	Prediction *prediction.PredictionHandlers
}

func Setup(r *gin.Engine, deps Dependencies, log *zap.Logger) {
	setupRouter(r, setupDependencies(deps, log), deps, log)
}

func setupDependencies(deps Dependencies, log *zap.Logger) *AppHandlers {
	authService := auth.NewAuthService(deps.API, deps.Session, deps.Caches, log)
	statsService := statistics.NewService(deps.API, log)

	return &AppHandlers{
		Auth:       auth.NewAuthHandlers(authService, deps.Session.Guard, log),
		Dashboard:  dashboard.NewDashboardHandlers(statsService, deps.API, deps.Caches, log),
		Status:     dashboard.NewStatusHandler(deps.Session, log),
		Prediction: prediction.NewPredictionHandlers(deps.API, deps.Caches, log),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, deps Dependencies, log *zap.Logger) {
	guard := deps.Session.Guard

	// Registered before any route so that NoRoute is covered too.
	r.Use(middleware.CORSMiddleware(deps.AllowedOrigins, log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	{
		public.GET("/", h.Auth.EntryPage)
		public.POST("/login", h.Auth.LoginHandler)
		public.GET("/register", h.Auth.RegisterPage)
		public.POST("/register", h.Auth.RegisterHandler)
		public.POST("/logout", h.Auth.LogoutHandler)
		public.GET("/session", h.Status.Status)
	}

	// Any signed-in role
	signedIn := r.Group("/")
	signedIn.Use(middleware.SessionGate(guard, session.RoleNone, deps.RedirectDelay, log))
	{
		signedIn.GET("/dashboard", h.Dashboard.DashboardPage)

		signedIn.GET("/predict", h.Prediction.PredictPage)
		signedIn.POST("/predict", h.Prediction.PredictHandler)
		signedIn.POST("/predict/batch", h.Prediction.BatchHandler)
		signedIn.GET(prediction.ExportPath, h.Prediction.ExportHandler)
	}

	admin := r.Group("/dashboard")
	admin.Use(middleware.SessionGate(guard, session.RoleAdmin, deps.RedirectDelay, log))
	{
		admin.POST("/filter", h.Dashboard.FilterHandler)
		admin.GET("/export.csv", h.Dashboard.ExportHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, guard.EntryPath())
	})
}
