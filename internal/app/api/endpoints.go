package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// AllUsers selects every user in FilterLogs.
const AllUsers = "0"

const dateLayout = "2006-01-02"

// errorEnvelope detects the {"error": ...} bodies the prediction endpoints
// return with a 200.
type errorEnvelope struct {
	Error any `json:"error"`
}

// ErrPredictionUnavailable is returned when the model answered with an error
// body.
var ErrPredictionUnavailable = errors.New("api: prediction unavailable")

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/login", "login", creds, false)
	if err != nil {
		return "", err
	}
	var out LoginResponse
	if err := c.do(ctx, r, &out); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("api: login response carried no token")
	}
	return out.Token, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	r, err := jsonRequest(http.MethodPost, "/auth/register", "register", reg, false)
	if err != nil {
		return err
	}
	return c.do(ctx, r, nil)
}

// Logs returns the aggregated figures over every prediction.
func (c *Client) Logs(ctx context.Context) (Metrics, error) {
	r, _ := jsonRequest(http.MethodGet, "/logs", "logs", nil, true)
	var out Metrics
	err := c.do(ctx, r, &out)
	return out, err
}

// LogsByUser returns the aggregated figures over one user's predictions.
func (c *Client) LogsByUser(ctx context.Context, username string) (Metrics, error) {
	r, _ := jsonRequest(http.MethodGet, "/logs/user/"+url.PathEscape(username), "logs_by_user", nil, true)
	var out Metrics
	err := c.do(ctx, r, &out)
	return out, err
}

// FilterLogs returns the predictions made between from and to, both
// inclusive calendar days in UTC. username AllUsers selects every user.
func (c *Client) FilterLogs(ctx context.Context, username string, from, to time.Time) ([]LogEntry, error) {
	body := dateRange{
		FechaDesde: from.Format(dateLayout) + "T00:00:00Z",
		FechaHasta: to.Format(dateLayout) + "T23:59:59Z",
	}
	path := "/logs"
	if username != AllUsers {
		path = "/logs/filter/fecha/" + url.PathEscape(username)
	}
	r, err := jsonRequest(http.MethodPost, path, "filter_logs", body, true)
	if err != nil {
		return nil, err
	}
	var out []LogEntry
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Users lists the registered users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	r, _ := jsonRequest(http.MethodGet, "/usuarios", "users", nil, true)
	var out []User
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Predict scores a single customer.
func (c *Client) Predict(ctx context.Context, in PredictRequest) (Prediction, error) {
	r, err := jsonRequest(http.MethodPost, "/api/v1/predict", "predict", in, true)
	if err != nil {
		return Prediction{}, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return Prediction{}, err
	}
	if hasErrorBody(raw) {
		return Prediction{}, ErrPredictionUnavailable
	}
	var out Prediction
	if err := json.Unmarshal(raw, &out); err != nil {
		return Prediction{}, fmt.Errorf("api: decode predict response: %w", err)
	}
	return out, nil
}

// BatchPredict uploads a CSV file of customers and scores every row.
func (c *Client) BatchPredict(ctx context.Context, filename string, csv io.Reader) ([]Prediction, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("api: build batch upload: %w", err)
	}
	if _, err := io.Copy(part, csv); err != nil {
		return nil, fmt.Errorf("api: read batch file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: build batch upload: %w", err)
	}

	r := newBufferRequest(http.MethodPost, "/api/v1/batch-predict", "batch_predict", mw.FormDataContentType(), &buf)
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return nil, err
	}
	if hasErrorBody(raw) {
		return nil, ErrPredictionUnavailable
	}
	var out []Prediction
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("api: decode batch-predict response: %w", err)
	}
	return out, nil
}

func hasErrorBody(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return false
	}
	return env.Error != nil && env.Error != false
}
