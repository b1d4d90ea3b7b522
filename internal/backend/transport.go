package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/me/chatadmin/pkg/model"
)

// Transport issues authenticated HTTP calls against the chat backend's
// administrative API with connection pooling and a per-call timeout.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTransport creates a transport for the backend at baseURL.
// timeout bounds every individual call.
func NewTransport(baseURL string, timeout time.Duration, logger *slog.Logger) *Transport {
	pool := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Transport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: pool,
		},
		logger: logger.With("component", "transport"),
	}
}

// Do executes one HTTP request. The response is returned for any HTTP
// status; only network-level failures become errors, mapped to a
// transport error that distinguishes timeout from refusal. No retries.
func (t *Transport) Do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return nil, model.NewTransport(err, false)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("backend call failed",
			"method", method, "path", path, "error", err)
		return nil, model.NewTransport(err, isTimeout(err))
	}
	return resp, nil
}

// isTimeout reports whether err is a deadline failure rather than a
// refused or dropped connection.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
