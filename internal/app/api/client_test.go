package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTokens struct {
	token string
	ok    bool
}

func (s staticTokens) BearerToken(context.Context) (string, bool) { return s.token, s.ok }

type recordedCall struct {
	endpoint string
	status   int
}

type callRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *callRecorder) RequestCompleted(_ context.Context, endpoint string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{endpoint, status})
}

func newTestClient(t *testing.T, h http.Handler, tokens TokenSource, rec Recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Address = srv.URL
	cfg.HttpClient = srv.Client()
	cfg.MinRetryWait = time.Millisecond
	cfg.MaxRetryWait = 2 * time.Millisecond
	cfg.MaxRetries = 1

	c, err := NewClient(cfg, tokens, rec, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsRelativeAddress(t *testing.T) {
	_, err := NewClient(&Config{Address: "backend.local"}, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	t.Run("returns token", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/login", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))

			var creds Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, Credentials{Usuario: "bob", Password: "Ab1!xy"}, creds)
			_, _ = io.WriteString(w, `{"token":"a.b.c"}`)
		}), nil, nil)

		token, err := c.Login(context.Background(), Credentials{Usuario: "bob", Password: "Ab1!xy"})
		require.NoError(t, err)
		assert.Equal(t, "a.b.c", token)
	})

	t.Run("maps 401 to bad credentials", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}), nil, nil)

		_, err := c.Login(context.Background(), Credentials{Usuario: "bob", Password: "nope"})
		assert.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("rejects empty token", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		}), nil, nil)

		_, err := c.Login(context.Background(), Credentials{Usuario: "bob"})
		assert.Error(t, err)
	})
}

func TestRegisterReturnsStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, "usuario ya existe\n")
	}), nil, nil)

	err := c.Register(context.Background(), Registration{Usuario: "bob", Email: "b@x.io", Password: "Ab1!xy"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, "usuario ya existe", se.Body)
}

func TestPrivilegedCallsRequireSession(t *testing.T) {
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), staticTokens{}, nil)

	_, err := c.Logs(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = c.Users(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, called, "no request may leave without a valid session")

	nilTokens := newTestClient(t, http.NotFoundHandler(), nil, nil)
	_, err = nilTokens.Logs(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLogsAttachesBearer(t *testing.T) {
	rec := &callRecorder{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok.en.x", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/logs":
			_, _ = io.WriteString(w, `{"totalPredicciones":3,"fechaPrimerPrediccion":"2025-01-02T10:00:00Z","totalCancelara":2}`)
		case "/logs/user/bob":
			_, _ = io.WriteString(w, `{"totalPredicciones":1,"fechaPrimerPrediccion":null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}), staticTokens{token: "tok.en.x", ok: true}, rec)

	all, err := c.Logs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalPredicciones)
	assert.Equal(t, 2, all.TotalCancelara)
	require.NotNil(t, all.FechaPrimerPrediccion)

	mine, err := c.LogsByUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, mine.TotalPredicciones)
	assert.Nil(t, mine.FechaPrimerPrediccion)

	assert.Equal(t, []recordedCall{{"logs", 200}, {"logs_by_user", 200}}, rec.calls)
}

func TestFilterLogs(t *testing.T) {
	from := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		user     string
		wantPath string
	}{
		{name: "all users", user: AllUsers, wantPath: "/logs"},
		{name: "single user", user: "ana", wantPath: "/logs/filter/fecha/ana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)

				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "2025-03-01T00:00:00Z", body["fechaDesde"])
				assert.Equal(t, "2025-03-09T23:59:59Z", body["fechaHasta"])

				_, _ = io.WriteString(w, `[{"prediccion":"cancelara","probabilidadChurn":0.81,"errorMessage":null,"timestamp":"2025-03-02T08:00:00Z","usuario":"ana"},
					{"prediccion":"","probabilidadChurn":0,"errorMessage":"DS no disponible","timestamp":"2025-03-03T08:00:00Z","usuario":"ana"}]`)
			}), staticTokens{token: "t", ok: true}, nil)

			entries, err := c.FilterLogs(context.Background(), tt.user, from, to)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.False(t, entries[0].Failed())
			assert.True(t, entries[1].Failed())
			assert.Equal(t, "ana", entries[0].Usuario)
		})
	}
}

func TestRetriesServerErrors(t *testing.T) {
	attempts := 0
	rec := &callRecorder{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[{"usuario":"ana"},{"usuario":"bob"}]`)
	}), staticTokens{token: "t", ok: true}, rec)

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []User{{Usuario: "ana"}, {Usuario: "bob"}}, users)
	assert.Len(t, rec.calls, 1)
}

func TestGivesUpAfterRetries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), staticTokens{token: "t", ok: true}, nil)

	_, err := c.Users(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestPredict(t *testing.T) {
	t.Run("sends flattened attributes", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/predict", r.URL.Path)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.EqualValues(t, 12, body["antiguedad"])
			assert.EqualValues(t, 3, body["cambiosPlan"])
			assert.Equal(t, "mensual", body["tipoContrato"])

			_, _ = io.WriteString(w, `{"prediccion":"cancelara","probabilidadChurn":0.77,"topFeatures":[{"feature":"facturas_impagas","impacto":"alto_riesgo"}]}`)
		}), staticTokens{token: "t", ok: true}, nil)

		p, err := c.Predict(context.Background(), PredictRequest{
			Antiguedad:  12,
			CambiosPlan: 3,
			Attributes:  map[string]string{"tipoContrato": "mensual"},
		})
		require.NoError(t, err)
		assert.True(t, p.Churn())
		assert.InDelta(t, 0.77, p.ProbabilidadChurn, 1e-9)
		require.Len(t, p.TopFeatures, 1)
		assert.Equal(t, ImpactHigh, p.TopFeatures[0].Impacto)
	})

	t.Run("error body is unavailable", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"error":"model offline"}`)
		}), staticTokens{token: "t", ok: true}, nil)

		_, err := c.Predict(context.Background(), PredictRequest{})
		assert.ErrorIs(t, err, ErrPredictionUnavailable)
	})
}

func TestBatchPredictUploadsMultipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/batch-predict", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clientes.csv", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "antiguedad,cambiosPlan\n3,1\n", string(content))

		_, _ = io.WriteString(w, `[{"prediccion":"no_cancelara","probabilidadChurn":0.12},{"prediccion":"cancelara","probabilidadChurn":0.9}]`)
	}), staticTokens{token: "t", ok: true}, nil)

	preds, err := c.BatchPredict(context.Background(), "clientes.csv", strings.NewReader("antiguedad,cambiosPlan\n3,1\n"))
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.False(t, preds[0].Churn())
	assert.True(t, preds[1].Churn())
}

func TestHasErrorBody(t *testing.T) {
	assert.True(t, hasErrorBody([]byte(`{"error":true}`)))
	assert.True(t, hasErrorBody([]byte(`{"error":"boom"}`)))
	assert.False(t, hasErrorBody([]byte(`{"error":false}`)))
	assert.False(t, hasErrorBody([]byte(`{"prediccion":"cancelara"}`)))
	assert.False(t, hasErrorBody([]byte(`[{"error":true}]`)))
}

func TestStatusErrorMessage(t *testing.T) {
	err := error(&StatusError{Method: "GET", Path: "/logs", StatusCode: 500})
	assert.Equal(t, "api: GET /logs: HTTP 500", err.Error())
	assert.False(t, errors.Is(err, ErrUnauthenticated))
}
