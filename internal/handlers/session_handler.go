package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/middlewares"
	"github.com/corptrain/playback/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionService is the interface that wraps the learner flow operations of playback sessions
type SessionService interface {
	// Method Open starts a session for an assignment and resumes it at the stage found in the progress store.
	//
	// When the store cannot be read, the snapshot of the session in the error stage is returned together with the error.
	Open(ctx context.Context, learnerID, assignmentID int) (*services.Snapshot, error)
	// Method Snapshot returns the current state of a session.
	Snapshot(ctx context.Context, learnerID int, sessionID string) (*services.Snapshot, error)
	// Method Retry reloads a session that is in the error stage.
	Retry(ctx context.Context, learnerID int, sessionID string) (*services.Snapshot, error)
	// Method Next continues past the current stage once its requirements are met.
	Next(ctx context.Context, learnerID int, sessionID string) (*services.Snapshot, error)
	// Method Skip continues past the current content stage in testing mode.
	Skip(ctx context.Context, learnerID int, sessionID string) (*services.Snapshot, error)
	// Method Close stops the session, releases its media and saves its progress.
	Close(ctx context.Context, learnerID int, sessionID string) error
}

// EventStreamer serves the event stream of a session
type EventStreamer interface {
	Subscribe(sessionID string) *events.Subscriber
	ServeStream(w http.ResponseWriter, r *http.Request, sub *events.Subscriber)
}

// SessionHandler handles playback session lifecycle requests
type SessionHandler struct {
	BaseHandler
	service SessionService
	streams EventStreamer
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service SessionService, streams EventStreamer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     service,
		streams:     streams,
	}
}

// RegisterRoutes registers all session handler routes
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/assignments/{assignmentID}/sessions", h.Open)
	r.Get("/sessions/{sessionID}", h.Get)
	r.Delete("/sessions/{sessionID}", h.Close)
	r.Post("/sessions/{sessionID}/retry", h.Retry)
	r.Post("/sessions/{sessionID}/next", h.Next)
	r.Post("/sessions/{sessionID}/skip", h.Skip)
	r.Get("/sessions/{sessionID}/events", h.Events)
}

// learnerID extracts the authenticated learner or responds 401
func (h *BaseHandler) learnerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := middlewares.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "user ID not found in context")
		return 0, false
	}
	return id, true
}

// Open handles POST /api/v1/assignments/{assignmentID}/sessions
// @Summary Open a playback session
// @Description Starts a playback session for an assignment and resumes it at the stage found in the progress store. Replaces an older session of the same assignment.
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param assignmentID path int true "Assignment ID"
// @Success 201 {object} services.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} services.Snapshot "Session in the error stage"
// @Router /api/v1/assignments/{assignmentID}/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	assignmentID, err := strconv.Atoi(chi.URLParam(r, "assignmentID"))
	if err != nil || assignmentID <= 0 {
		h.RespondError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	snap, err := h.service.Open(r.Context(), learnerID, assignmentID)
	if err != nil {
		if snap != nil && errors.Is(err, services.ErrStoreUnavailable) {
			h.Logger.Warn("playback session opened in error stage",
				zap.Int("assignment_id", assignmentID),
				zap.Error(err),
			)
			h.RespondJSON(w, http.StatusServiceUnavailable, snap)
			return
		}
		h.RespondServiceError(w, err, nil)
		return
	}
	h.RespondJSON(w, http.StatusCreated, snap)
}

// Get handles GET /api/v1/sessions/{sessionID}
// @Summary Get a playback session
// @Description Returns the stage, gate, progress and sync state of a session
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} services.Snapshot
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Snapshot(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Close handles DELETE /api/v1/sessions/{sessionID}
// @Summary Close a playback session
// @Description Stops the sync loop, releases the media and saves progress
// @Tags sessions
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 204 "Session closed"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID} [delete]
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	if err := h.service.Close(r.Context(), learnerID, chi.URLParam(r, "sessionID")); err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Retry handles POST /api/v1/sessions/{sessionID}/retry
// @Summary Retry loading a session
// @Description Reloads a session that is in the error stage
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} services.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Session is not in the error stage"
// @Failure 503 {object} ErrorResponse "Store still unavailable"
// @Router /api/v1/sessions/{sessionID}/retry [post]
func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Retry(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Next handles POST /api/v1/sessions/{sessionID}/next
// @Summary Continue to the next stage
// @Description Leaves the intro or a content stage whose requirements are met
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} services.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Requirements not met or nothing to continue from"
// @Failure 503 {object} ErrorResponse "Progress could not be saved"
// @Router /api/v1/sessions/{sessionID}/next [post]
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Next(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Skip handles POST /api/v1/sessions/{sessionID}/skip
// @Summary Skip a content stage
// @Description Completes the current content stage without its requirements. Testing mode only.
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} services.Snapshot
// @Failure 403 {object} ErrorResponse "Testing mode is off"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/skip [post]
func (h *SessionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Skip(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Events handles GET /api/v1/sessions/{sessionID}/events
// @Summary Stream session events
// @Description Server-Sent Events stream of stage, gate, focus and override changes
// @Tags sessions
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {string} string "event stream"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/events [get]
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.service.Snapshot(r.Context(), learnerID, sessionID); err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	h.streams.ServeStream(w, r, h.streams.Subscribe(sessionID))
}
