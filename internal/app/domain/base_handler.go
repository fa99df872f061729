package domain

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/pages"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

var mainNav = []pages.NavItem{
	{Name: "Dashboard", URL: "/dashboard"},
	{Name: "Predicción", URL: "/predict"},
}

type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

func (h *BaseHandler) newLayoutData(c *gin.Context, title, activeNav string) pages.Layout {
	l := pages.Layout{Title: title, ActiveNav: activeNav, Nav: mainNav}
	if id, ok := middleware.GetIdentity(c); ok {
		l.DisplayName = id.DisplayName()
		l.Role = id.Role.String()
	}
	return l
}

// RenderPage renders content alone for HTMX requests and inside the layout
// otherwise.
func (h *BaseHandler) RenderPage(c *gin.Context, status int, title, activeNav string, content templ.Component) {
	if c.GetHeader("HX-Request") == "true" {
		middleware.Render(c, status, content)
		return
	}
	middleware.Render(c, status, pages.LayoutPage(h.newLayoutData(c, title, activeNav), content))
}

// Identity returns the identity SessionGate admitted, or aborts with 401 when
// the handler was mounted without the gate.
func (h *BaseHandler) Identity(c *gin.Context) (session.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		h.Logger.Error("Handler reached without session gate", zap.String("path", c.FullPath()))
		c.AbortWithStatus(http.StatusUnauthorized)
	}
	return id, ok
}
