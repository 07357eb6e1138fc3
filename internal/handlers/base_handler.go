package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/corptrain/playback/internal/playback"
	"github.com/corptrain/playback/internal/services"
	"go.uber.org/zap"
)

// BaseHandler holds the response helpers shared by all handlers
type BaseHandler struct {
	Logger *zap.Logger
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error   string               `json:"error"`
	Fields  map[int]string       `json:"fields,omitempty"`
	Unmet   []playback.Condition `json:"unmet,omitempty"`
	Session *services.Snapshot   `json:"session,omitempty"`
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondServiceError maps a service error to its status code. The session snapshot, when
// given, is included so the client can render the state it can retry from.
func (h *BaseHandler) RespondServiceError(w http.ResponseWriter, err error, snap *services.Snapshot) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Session: snap}

	var vErr *playback.ValidationError
	var gErr *services.GateError
	switch {
	case errors.As(err, &vErr):
		resp.Fields = vErr.Fields
	case errors.As(err, &gErr):
		resp.Unmet = gErr.Unmet
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Int("status", status), zap.Error(err))
		if status == http.StatusInternalServerError {
			resp.Error = "internal server error"
		}
	}
	h.RespondJSON(w, status, resp)
}

// StatusFor returns the HTTP status of a service error
func StatusFor(err error) int {
	var vErr *playback.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrAssignmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrSkipNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, services.ErrGateClosed),
		errors.Is(err, services.ErrStageMismatch),
		errors.Is(err, services.ErrQuizAlreadyFinalized),
		errors.Is(err, playback.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body. An empty body leaves dst untouched when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
