package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/me/chatadmin/pkg/model"
)

// ResourceClient is the single-call wrapper every domain service goes
// through. It attaches the session credential, invokes the transport,
// and maps the HTTP outcome to the domain error taxonomy. Retry policy
// belongs to callers; most operations here are not safe to retry
// blindly.
type ResourceClient struct {
	transport *Transport
	logger    *slog.Logger
}

// NewResourceClient wraps a transport.
func NewResourceClient(t *Transport, logger *slog.Logger) *ResourceClient {
	return &ResourceClient{
		transport: t,
		logger:    logger.With("component", "client"),
	}
}

// remoteError is the backend's error body shape.
type remoteError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// call issues one request under sess and returns the raw success body
// together with the HTTP status. sess may be nil for unauthenticated
// calls (login).
func (rc *ResourceClient) call(ctx context.Context, sess *model.Session, method, path string, body any) ([]byte, int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
	}

	token := ""
	if sess != nil {
		token = sess.Token
	}

	resp, err := rc.transport.Do(ctx, method, path, token, payload)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, model.NewTransport(err, isTimeout(err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, resp.StatusCode, nil
	}
	return nil, resp.StatusCode, mapStatus(resp.StatusCode, raw)
}

// fetch issues one call and decodes the success payload into T.
func fetch[T any](ctx context.Context, rc *ResourceClient, sess *model.Session, method, path string, body any) (T, error) {
	var out T

	raw, status, err := rc.call(ctx, sess, method, path, body)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		// A 2xx with an undecodable body is backend contract drift;
		// the genuine status stays in the error for diagnostics.
		return out, model.NewUnexpectedStatus(status, string(raw))
	}
	return out, nil
}

// send issues one call and discards any success payload.
func send(ctx context.Context, rc *ResourceClient, sess *model.Session, method, path string, body any) error {
	_, _, err := rc.call(ctx, sess, method, path, body)
	return err
}

// mapStatus translates a non-2xx backend answer into a domain error.
func mapStatus(status int, body []byte) error {
	var re remoteError
	_ = json.Unmarshal(body, &re)

	msg := func(fallback string) string {
		if re.Message != "" {
			return re.Message
		}
		return fallback
	}

	switch status {
	case http.StatusUnauthorized:
		return model.NewUnauthenticated(msg("backend rejected credential"))
	case http.StatusForbidden:
		return model.NewForbidden(msg("operation not permitted"))
	case http.StatusNotFound:
		return &model.Error{Kind: model.KindNotFound, Message: msg("resource not found")}
	case http.StatusConflict:
		return model.NewConflict(msg("resource state conflict"))
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return model.NewValidation(msg("request rejected"), re.Fields)
	default:
		return model.NewUnexpectedStatus(status, string(body))
	}
}
