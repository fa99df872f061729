package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/export"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain/statistics"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/pages"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/cache"
)

// ExportPath serves the CSV of the last filter.
const ExportPath = "/dashboard/export.csv"

const (
	msgLoadFailed   = "No se pudo cargar la información del dashboard"
	msgDatesMissing = "Seleccione fecha de inicio y fecha de fin"
	msgDatesOrder   = "La fecha de fin debe ser igual o posterior a la fecha de inicio"
	msgBadDate      = "Fecha incorrecta"
	msgNoData       = "No hay datos para descargar"
)

// UserLister lists the accounts known to the backend.
type UserLister interface {
	Users(ctx context.Context) ([]api.User, error)
}

type DashboardHandlers struct {
	*domain.BaseHandler
	stats  statistics.Service
	users  UserLister
	caches *cache.CacheManager
	now    func() time.Time
}

func NewDashboardHandlers(stats statistics.Service, users UserLister, caches *cache.CacheManager, logger *zap.Logger) *DashboardHandlers {
	return &DashboardHandlers{
		BaseHandler: domain.NewBaseHandler(logger.With(zap.String("component", "dashboard"))),
		stats:       stats,
		users:       users,
		caches:      caches,
		now:         time.Now,
	}
}

// DashboardPage renders the admin overview or the signed-in user's own
// figures.
func (h *DashboardHandlers) DashboardPage(c *gin.Context) {
	id, ok := h.Identity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if id.Role != session.RoleAdmin {
		m, err := h.stats.ForUser(ctx, id.Username)
		if err != nil {
			h.fail(c, pages.Dashboard{Username: id.Username}, err)
			return
		}
		h.render(c, http.StatusOK, pages.Dashboard{Username: id.Username, Metrics: m})
		return
	}

	var (
		m     api.Metrics
		users []api.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		m, err = h.stats.Overview(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = h.userList(gctx, id.Username)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(c, pages.Dashboard{Admin: true, Username: id.Username}, err)
		return
	}

	h.render(c, http.StatusOK, pages.Dashboard{
		Admin:    true,
		Username: id.Username,
		Metrics:  m,
		Users:    users,
		Filter:   h.filterBounds(m, pages.Filter{User: api.AllUsers}),
	})
}

// FilterHandler recomputes the admin figures for one user (or all of them)
// over an inclusive date range.
func (h *DashboardHandlers) FilterHandler(c *gin.Context) {
	id, ok := h.Identity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	f := pages.Filter{
		User: strings.TrimSpace(c.PostForm("usuario")),
		From: c.PostForm("fechaInicio"),
		To:   c.PostForm("fechaFin"),
	}
	if f.User == "" {
		f.User = api.AllUsers
	}
	view := pages.Dashboard{Admin: true, Username: id.Username, Filter: f}

	users, err := h.userList(ctx, id.Username)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	view.Users = users

	from, to, msg := parseRange(f.From, f.To)
	if msg != "" {
		view.Error = msg
		if m, err := h.stats.Overview(ctx); err == nil {
			view.Metrics = m
			view.Filter = h.filterBounds(m, f)
		}
		h.render(c, http.StatusBadRequest, view)
		return
	}

	m, entries, err := h.stats.Filtered(ctx, f.User, from, to)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	if key, err := filterKey(id.Username, f.User, from, to); err == nil {
		h.caches.Filtered.Set(key, entries)
	} else {
		h.Logger.Warn("Failed to build filter cache key", zap.Error(err))
	}

	view.Metrics = m
	view.Filtered = true
	view.Filter = h.filterBounds(m, f)
	if len(entries) > 0 {
		view.ExportURL = exportURL(f.User, from, to)
	}
	h.render(c, http.StatusOK, view)
}

// ExportHandler downloads the rows of a filter as CSV. Rows the operator just
// looked at come from the cache; otherwise they are fetched again.
func (h *DashboardHandlers) ExportHandler(c *gin.Context) {
	id, ok := h.Identity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user := c.DefaultQuery("usuario", api.AllUsers)
	from, to, msg := parseRange(c.Query("desde"), c.Query("hasta"))
	if msg != "" {
		c.String(http.StatusBadRequest, msg)
		return
	}

	key, err := filterKey(id.Username, user, from, to)
	if err != nil {
		h.Logger.Error("Failed to build filter cache key", zap.Error(err))
		c.String(http.StatusInternalServerError, msgLoadFailed)
		return
	}
	entries, hit, err := h.caches.Filtered.GetOrLoad(ctx, key, func(ctx context.Context) ([]api.LogEntry, error) {
		_, entries, err := h.stats.Filtered(ctx, user, from, to)
		return entries, err
	})
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			middleware.Redirect(c, h.entryPath(c))
			return
		}
		c.String(http.StatusBadGateway, msgLoadFailed)
		return
	}

	if len(entries) == 0 {
		c.String(http.StatusNotFound, msgNoData)
		return
	}

	name := export.FilteredFileName(user, from, to, h.now())
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, export.FilteredLogs(entries)); err != nil {
		h.Logger.Error("Failed to write CSV export", zap.Error(err))
		_ = c.Error(err)
		return
	}
	h.Logger.Info("Filtered logs exported",
		zap.String("file", name),
		zap.Int("rows", len(entries)),
		zap.Bool("cached", hit))
}

func (h *DashboardHandlers) render(c *gin.Context, status int, d pages.Dashboard) {
	h.RenderPage(c, status, "Dashboard", "Dashboard", pages.DashboardPage(d))
}

// fail renders the page with an error banner. A session that ended while the
// backend was being called goes back to the entry page instead.
func (h *DashboardHandlers) fail(c *gin.Context, d pages.Dashboard, err error) {
	if errors.Is(err, api.ErrUnauthenticated) {
		middleware.Redirect(c, h.entryPath(c))
		return
	}
	h.Logger.Error("Failed to load dashboard data", zap.Error(err))
	d.Error = msgLoadFailed
	h.render(c, http.StatusBadGateway, d)
}

func (h *DashboardHandlers) entryPath(c *gin.Context) string {
	if g, ok := middleware.GetGuard(c); ok {
		return g.EntryPath()
	}
	return "/"
}

// userList returns the backend users, cached per viewer.
func (h *DashboardHandlers) userList(ctx context.Context, viewer string) ([]api.User, error) {
	key, err := cache.NewCacheKeyBuilder().AddViewer(viewer).Add("list", "users").Build()
	if err != nil {
		return nil, err
	}
	users, _, err := h.caches.Users.GetOrLoad(ctx, key, h.users.Users)
	return users, err
}

// filterBounds limits the date pickers to the span that has predictions.
func (h *DashboardHandlers) filterBounds(m api.Metrics, f pages.Filter) pages.Filter {
	if m.FechaPrimerPrediccion != nil {
		f.Min, _, _ = strings.Cut(*m.FechaPrimerPrediccion, "T")
	}
	f.Max = h.now().Format(time.DateOnly)
	return f
}

func parseRange(fromStr, toStr string) (from, to time.Time, msg string) {
	if fromStr == "" || toStr == "" {
		return from, to, msgDatesMissing
	}
	from, err := time.Parse(time.DateOnly, fromStr)
	if err != nil {
		return from, to, msgBadDate
	}
	to, err = time.Parse(time.DateOnly, toStr)
	if err != nil {
		return from, to, msgBadDate
	}
	if to.Before(from) {
		return from, to, msgDatesOrder
	}
	return from, to, ""
}

func filterKey(viewer, user string, from, to time.Time) (string, error) {
	return cache.NewCacheKeyBuilder().
		AddViewer(viewer).
		Add("usuario", user).
		AddDateRange(from, to).
		Build()
}

func exportURL(user string, from, to time.Time) string {
	q := url.Values{}
	q.Set("usuario", user)
	q.Set("desde", from.Format(time.DateOnly))
	q.Set("hasta", to.Format(time.DateOnly))
	return ExportPath + "?" + q.Encode()
}
