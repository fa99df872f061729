package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
	"github.com/FACorreiaa/churninsight-dashboard/internal/app/session"
	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/cache"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, _ := newRouterWithSession(t)
	return r
}

func newRouterWithSession(t *testing.T, allowedOrigins ...string) (*gin.Engine, *session.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)

	sess := session.New(session.NewMemoryKV(), session.Config{}, nil, nil, logger)
	cfg := api.DefaultConfig()
	cfg.Address = backend.URL
	client, err := api.NewClient(cfg, sess.Guard, nil, logger)
	require.NoError(t, err)
	caches := cache.NewCacheManager(logger)
	t.Cleanup(caches.Close)

	r := gin.New()
	Setup(r, Dependencies{
		Session:        sess,
		API:            client,
		Caches:         caches,
		RedirectDelay:  time.Second,
		AllowedOrigins: allowedOrigins,
	}, logger)
	return r, sess
}

func signIn(t *testing.T, sess *session.Session, role string) {
	t.Helper()
	claims := session.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	_, err = sess.Login(context.Background(), token)
	require.NoError(t, err)
}

func TestRoutes(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		method   string
		path     string
		want     int
		location string
	}{
		{method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{method: http.MethodGet, path: "/", want: http.StatusOK},
		{method: http.MethodGet, path: "/register", want: http.StatusOK},
		{method: http.MethodGet, path: "/session", want: http.StatusOK},
		{method: http.MethodGet, path: "/dashboard", want: http.StatusSeeOther, location: "/"},
		{method: http.MethodGet, path: "/predict", want: http.StatusSeeOther, location: "/"},
		{method: http.MethodPost, path: "/dashboard/filter", want: http.StatusSeeOther, location: "/"},
		{method: http.MethodGet, path: "/nowhere", want: http.StatusSeeOther, location: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
		})
	}
}

func TestCrossSiteRequests(t *testing.T) {
	r, sess := newRouterWithSession(t, "https://ops.example.com")
	signIn(t, sess, "ROLE_ADMIN")

	do := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("foreign origin cannot read the session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := do(req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotContains(t, w.Body.String(), "operator")
	})

	t.Run("foreign origin cannot export", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard/export.csv?desde=2025-01-01&hasta=2025-01-31", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := do(req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("opaque origin is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", "null")
		assert.Equal(t, http.StatusForbidden, do(req).Code)
	})

	t.Run("cross-site form post keeps the session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		assert.Equal(t, http.StatusForbidden, do(req).Code)

		_, ok := sess.Store.Read(context.Background())
		assert.True(t, ok)
	})

	t.Run("link from another site still opens the page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		w := do(req)
		assert.NotEqual(t, http.StatusForbidden, w.Code)
	})

	t.Run("own origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", "http://"+req.Host)
		w := do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Body.String(), `"username":"operator"`)
	})

	t.Run("listed origin gets cors headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/dashboard/filter", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := do(req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
