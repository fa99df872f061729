// Package api talks to the churn prediction backend on behalf of the
// signed-in operator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated is returned when a privileged call is made without a
	// valid session.
	ErrUnauthenticated = errors.New("api: no valid session")
	// ErrBadCredentials is returned by Login on a 401.
	ErrBadCredentials = errors.New("api: incorrect user or password")
)

// StatusError carries a non-2xx backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("api: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// TokenSource yields the bearer token of the current session, if it is valid.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, bool)
}

// Recorder observes completed backend requests.
type Recorder interface {
	RequestCompleted(ctx context.Context, endpoint string, status int, elapsed time.Duration)
}

// Config is used to configure the creation of the client.
type Config struct {
	// Address is the backend base URL, e.g. "https://backend.example.com".
	Address string

	// HttpClient defaults to a go-cleanhttp pooled client.
	HttpClient *http.Client

	// Timeout applies to each call unless ctx carries an earlier deadline.
	Timeout time.Duration

	MinRetryWait time.Duration
	MaxRetryWait time.Duration

	// MaxRetries controls retries on connection errors and 5xx responses.
	// Zero disables retrying.
	MaxRetries int
}

// DefaultConfig returns a default configuration for the client. It is safe
// to modify the return value.
func DefaultConfig() *Config {
	return &Config{
		Address:      "https://backend-churninsight-app-1.onrender.com",
		HttpClient:   cleanhttp.DefaultPooledClient(),
		Timeout:      30 * time.Second,
		MinRetryWait: 500 * time.Millisecond,
		MaxRetryWait: 1500 * time.Millisecond,
		MaxRetries:   2,
	}
}

// Client is the backend API client.
type Client struct {
	base     *url.URL
	http     *retryablehttp.Client
	timeout  time.Duration
	tokens   TokenSource
	recorder Recorder
	logger   *zap.Logger
}

// NewClient builds a client. tokens may be nil for unauthenticated use
// (login and register only). recorder may be nil.
func NewClient(cfg *Config, tokens TokenSource, recorder Recorder, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	base, err := url.Parse(strings.TrimRight(cfg.Address, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid address %q: %w", cfg.Address, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: address %q must be absolute", cfg.Address)
	}

	httpClient := cfg.HttpClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	logger = logger.With(zap.String("component", "api_client"))

	return &Client{
		base: base,
		http: &retryablehttp.Client{
			HTTPClient:   httpClient,
			RetryWaitMin: cfg.MinRetryWait,
			RetryWaitMax: cfg.MaxRetryWait,
			RetryMax:     cfg.MaxRetries,
			Backoff:      retryablehttp.LinearJitterBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
			Logger:       leveledLogger{logger.Sugar()},
		},
		timeout:  cfg.Timeout,
		tokens:   tokens,
		recorder: recorder,
		logger:   logger,
	}, nil
}

type request struct {
	method string
	path   string
	// endpoint is the low-cardinality name used for metrics.
	endpoint    string
	body        []byte
	contentType string
	auth        bool
}

func jsonRequest(method, path, endpoint string, payload any, auth bool) (*request, error) {
	r := &request{method: method, path: path, endpoint: endpoint, auth: auth}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s body: %w", endpoint, err)
		}
		r.body = b
		r.contentType = "application/json"
	}
	return r, nil
}

// do sends r and decodes a 2xx JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r *request, out any) error {
	var token string
	if r.auth {
		var ok bool
		if c.tokens != nil {
			token, ok = c.tokens.BearerToken(ctx)
		}
		if !ok {
			return ErrUnauthenticated
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body any
	if r.body != nil {
		body = r.body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, c.base.String()+r.path, body)
	if err != nil {
		return fmt.Errorf("api: build %s request: %w", r.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.recorder != nil {
		c.recorder.RequestCompleted(ctx, r.endpoint, status, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("endpoint", r.endpoint), zap.Error(err))
		return fmt.Errorf("api: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.logger.Debug("Backend returned an error status",
			zap.String("endpoint", r.endpoint), zap.Int("status", resp.StatusCode))
		return &StatusError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", r.endpoint, err)
	}
	return nil
}

func newBufferRequest(method, path, endpoint, contentType string, buf *bytes.Buffer) *request {
	return &request{
		method:      method,
		path:        path,
		endpoint:    endpoint,
		body:        buf.Bytes(),
		contentType: contentType,
		auth:        true,
	}
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
