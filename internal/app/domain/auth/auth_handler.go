package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/domain"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/pages"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

// DashboardPath is where a signed-in user lands.
const DashboardPath = "/dashboard"

type AuthHandlers struct {
	*domain.BaseHandler
	authService AuthService
	guard       *session.Guard
}

func NewAuthHandlers(authService AuthService, guard *session.Guard, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		BaseHandler: domain.NewBaseHandler(logger),
		authService: authService,
		guard:       guard,
	}
}

// EntryPage shows the sign-in form, or sends a live session to the dashboard.
func (h *AuthHandlers) EntryPage(c *gin.Context) {
	if _, ok := h.guard.For(middleware.NewPagePresenter(h.Logger)).Identity(c.Request.Context()); ok {
		c.Redirect(http.StatusSeeOther, DashboardPath)
		return
	}

	var entry pages.Entry
	if c.Query("registered") == "1" {
		entry.Notice = MsgRegistered
	}
	h.RenderPage(c, http.StatusOK, "Iniciar sesión", "", pages.EntryPage(entry))
}

func (h *AuthHandlers) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.Logger.Warn("Failed to parse login form", zap.Error(err))
		h.renderEntry(c, http.StatusBadRequest, req, MsgInvalid)
		return
	}

	if errs := ValidateLogin(req); !errs.Valid() {
		msg := MsgBadCredentials
		if errs["usuario"] == MsgRequired || errs["password"] == MsgRequired {
			msg = MsgRequired
		}
		h.renderEntry(c, http.StatusBadRequest, req, msg)
		return
	}

	_, err := h.authService.SignIn(c.Request.Context(), req)
	switch {
	case errors.Is(err, ErrBadCredentials):
		h.renderEntry(c, http.StatusUnauthorized, req, MsgBadCredentials)
		return
	case err != nil:
		h.renderEntry(c, http.StatusBadGateway, req, MsgUnreachable)
		return
	}

	middleware.Redirect(c, DashboardPath)
}

func (h *AuthHandlers) renderEntry(c *gin.Context, status int, req LoginRequest, msg string) {
	h.RenderPage(c, status, "Iniciar sesión", "", pages.EntryPage(pages.Entry{
		Usuario: req.Usuario,
		Error:   msg,
	}))
}

func (h *AuthHandlers) RegisterPage(c *gin.Context) {
	h.RenderPage(c, http.StatusOK, "Registro", "", pages.RegisterPage(pages.Register{}))
}

func (h *AuthHandlers) RegisterHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.Logger.Warn("Failed to parse register form", zap.Error(err))
		h.renderRegister(c, http.StatusBadRequest, req, nil, MsgInvalid)
		return
	}

	if errs := ValidateRegistration(req); !errs.Valid() {
		h.renderRegister(c, http.StatusBadRequest, req, errs, "")
		return
	}

	err := h.authService.SignUp(c.Request.Context(), req)
	switch {
	case errors.Is(err, ErrAlreadyRegistered):
		h.renderRegister(c, http.StatusConflict, req, nil, MsgAlreadyExists)
		return
	case err != nil:
		h.renderRegister(c, http.StatusBadGateway, req, nil, MsgUnreachable)
		return
	}

	middleware.Redirect(c, "/?registered=1")
}

func (h *AuthHandlers) renderRegister(c *gin.Context, status int, req RegisterRequest, errs FieldErrors, msg string) {
	h.RenderPage(c, status, "Registro", "", pages.RegisterPage(pages.Register{
		Usuario: req.Usuario,
		Email:   req.Email,
		Errors:  errs,
		Error:   msg,
	}))
}

// LogoutHandler ends the session and returns to the entry page.
func (h *AuthHandlers) LogoutHandler(c *gin.Context) {
	if err := h.authService.SignOut(c.Request.Context()); err != nil {
		_ = c.Error(err)
	}
	middleware.Redirect(c, h.guard.EntryPath())
}
