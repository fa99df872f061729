package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/middleware"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
)

// SessionStatus is the JSON body of GET /session.
type SessionStatus struct {
	State            string     `json:"state"`
	Username         string     `json:"username,omitempty"`
	Role             string     `json:"role,omitempty"`
	DisplayName      string     `json:"displayName,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RemainingSeconds int64      `json:"remainingSeconds"`
}

type StatusHandler struct {
	monitor *session.Monitor
	guard   *session.Guard
	logger  *zap.Logger
}

func NewStatusHandler(sess *session.Session, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		monitor: sess.Monitor,
		guard:   sess.Guard,
		logger:  logger.With(zap.String("component", "session_status")),
	}
}

// Status runs a validity check and reports the session. It never redirects;
// an expired session is torn down and reported as such.
func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.NewPagePresenter(h.logger)

	state := h.monitor.CheckWith(ctx, p)
	out := SessionStatus{State: state.String()}
	if state != session.StateValid {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, out)
		return
	}

	g := h.guard.For(p)
	if id, ok := g.Identity(ctx); ok {
		out.Username = id.Username
		out.Role = id.Role.String()
		out.DisplayName = id.DisplayName()
	}
	if remaining, ok := h.monitor.Remaining(ctx); ok {
		out.RemainingSeconds = int64(remaining / time.Second)
		if claims, ok := g.Claims(ctx); ok && claims.ExpiresAt != nil {
			exp := claims.ExpiresAt.UTC()
			out.ExpiresAt = &exp
		}
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, out)
}
