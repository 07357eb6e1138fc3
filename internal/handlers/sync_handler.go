package handlers

import (
	"context"
	"net/http"

	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
	"github.com/corptrain/playback/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SyncService is the interface that wraps the transcript sync operations of playback sessions
type SyncService interface {
	// Method ReportAudio applies a narration audio report and starts or stops the sync loop with it.
	ReportAudio(ctx context.Context, learnerID int, sessionID string, st models.AudioState) (*services.Snapshot, error)
	// Method UserScroll records a manual transcript scroll.
	UserScroll(ctx context.Context, learnerID int, sessionID string) (*playback.SyncState, error)
	// Method Resync clears the manual override and refocuses the transcript on the live audio.
	Resync(ctx context.Context, learnerID int, sessionID string) (*playback.SyncState, error)
}

// SyncHandler handles narration audio and transcript scroll requests
type SyncHandler struct {
	BaseHandler
	service SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     service,
	}
}

// RegisterRoutes registers all sync handler routes
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/audio", h.Audio)
	r.Post("/sessions/{sessionID}/scroll", h.Scroll)
	r.Post("/sessions/{sessionID}/resync", h.Resync)
}

// Audio handles POST /api/v1/sessions/{sessionID}/audio
// @Summary Report narration audio state
// @Tags sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Param state body models.AudioState true "Audio state"
// @Success 200 {object} services.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Current stage has no narration"
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/audio [post]
func (h *SyncHandler) Audio(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	var st models.AudioState
	if err := decodeJSON(r, &st, false); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if st.CurrentTime < 0 || st.Duration < 0 {
		h.RespondError(w, http.StatusBadRequest, "currentTime and duration must not be negative")
		return
	}

	snap, err := h.service.ReportAudio(r.Context(), learnerID, chi.URLParam(r, "sessionID"), st)
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Scroll handles POST /api/v1/sessions/{sessionID}/scroll
// @Summary Report a manual transcript scroll
// @Description Suspends automatic scrolling while the audio plays
// @Tags sync
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} playback.SyncState
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/scroll [post]
func (h *SyncHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	state, err := h.service.UserScroll(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	h.RespondJSON(w, http.StatusOK, state)
}

// Resync handles POST /api/v1/sessions/{sessionID}/resync
// @Summary Resync the transcript to the audio
// @Tags sync
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} playback.SyncState
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/resync [post]
func (h *SyncHandler) Resync(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	state, err := h.service.Resync(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	h.RespondJSON(w, http.StatusOK, state)
}
