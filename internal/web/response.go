package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/me/chatadmin/pkg/model"
)

// response is the standard envelope for the portal's JSON surface.
type response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Warning   string    `json:"warning,omitempty"`
	Error     *apiError `json:"error,omitempty"`
}

// apiError is the serialized form of a domain error.
type apiError struct {
	Code    model.ErrorKind   `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	ErrorID string            `json:"error_id,omitempty"` // log correlation, 5xx only
}

func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, "", nil)
}

func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, "", nil)
}

// respondWarning reports a success with a partial-failure warning
// attached, used when an access-model fan-out applied only some facets.
func respondWarning(w http.ResponseWriter, reqID string, data any, warning string) {
	respondJSON(w, http.StatusOK, reqID, data, warning, nil)
}

// respondError maps a domain error to an HTTP status and envelope.
// Unexpected failures get an error id that also lands in the log, so
// an operator can correlate a user report with the server side.
func respondError(w http.ResponseWriter, reqID string, err error, logger *slog.Logger) {
	status, apiErr := mapError(err)
	if status >= 500 {
		apiErr.ErrorID = "err_" + uuid.New().String()[:8]
		logger.Error("request failed",
			"request_id", reqID, "error_id", apiErr.ErrorID, "error", err)
	}
	respondJSON(w, status, reqID, nil, "", apiErr)
}

func mapError(err error) (int, *apiError) {
	var derr *model.Error
	if err == nil || !errors.As(err, &derr) {
		return http.StatusInternalServerError, &apiError{
			Code:    "INTERNAL_ERROR",
			Message: "internal error",
		}
	}

	apiErr := &apiError{Code: derr.Kind, Message: derr.Message, Fields: derr.Fields}
	switch derr.Kind {
	case model.KindUnauthenticated:
		return http.StatusUnauthorized, apiErr
	case model.KindForbidden:
		return http.StatusForbidden, apiErr
	case model.KindNotFound:
		return http.StatusNotFound, apiErr
	case model.KindConflict:
		return http.StatusConflict, apiErr
	case model.KindValidation:
		return http.StatusBadRequest, apiErr
	case model.KindTransport:
		if derr.Timeout {
			return http.StatusGatewayTimeout, apiErr
		}
		return http.StatusBadGateway, apiErr
	default:
		// Backend contract drift: surface generically, details stay
		// in the log.
		apiErr.Message = "backend returned an unexpected answer"
		return http.StatusBadGateway, apiErr
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, warning string, apiErr *apiError) {
	resp := response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Warning:   warning,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
