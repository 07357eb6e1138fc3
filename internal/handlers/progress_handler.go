package handlers

import (
	"context"
	"net/http"

	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProgressService is the interface that wraps the progress operations of playback sessions
type ProgressService interface {
	// Method ReportPlayback applies a video telemetry sample and saves progress at checkpoints.
	//
	// When a checkpoint save fails, the snapshot is returned together with the error and the state is kept for Save.
	ReportPlayback(ctx context.Context, learnerID int, sessionID string, sample models.PlaybackSample) (*services.Snapshot, error)
	// Method CompletePackage records the completion signal of an interactive package.
	CompletePackage(ctx context.Context, learnerID int, sessionID string, score *float64) (*services.Snapshot, error)
	// Method SetCertification records the certification checkbox.
	SetCertification(ctx context.Context, learnerID int, sessionID string, checked bool) (*services.Snapshot, error)
	// Method ReportMediaError switches the current stage to fallback completion.
	ReportMediaError(ctx context.Context, learnerID int, sessionID string, reason string) (*services.Snapshot, error)
	// Method Save re-attempts failed saves from the in-memory state.
	Save(ctx context.Context, learnerID int, sessionID string) (*services.Snapshot, error)
	// Method Beacon closes the session with a best-effort save without waiting for it.
	Beacon(learnerID int, sessionID string) error
}

// ProgressHandler handles progress reporting requests
type ProgressHandler struct {
	BaseHandler
	service ProgressService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(service ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     service,
	}
}

// PackageCompleteRequest represents an interactive package completion
type PackageCompleteRequest struct {
	Score *float64 `json:"score,omitempty"`
}

// CertificationRequest represents the certification checkbox state
type CertificationRequest struct {
	Checked bool `json:"checked"`
}

// MediaErrorRequest represents a media failure report
type MediaErrorRequest struct {
	Reason string `json:"reason"`
}

// RegisterRoutes registers all progress handler routes
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/playback", h.Playback)
	r.Post("/sessions/{sessionID}/package-complete", h.PackageComplete)
	r.Post("/sessions/{sessionID}/certification", h.Certification)
	r.Post("/sessions/{sessionID}/media-error", h.MediaError)
	r.Post("/sessions/{sessionID}/save", h.Save)
	r.Post("/sessions/{sessionID}/beacon", h.Beacon)
}

// Playback handles POST /api/v1/sessions/{sessionID}/playback
// @Summary Report video playback
// @Description Applies a timeupdate, play, pause or ended sample of the video
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Param sample body models.PlaybackSample true "Playback sample"
// @Success 200 {object} services.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Current stage is not a video"
// @Failure 503 {object} ErrorResponse "Checkpoint could not be saved"
// @Router /api/v1/sessions/{sessionID}/playback [post]
func (h *ProgressHandler) Playback(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	var sample models.PlaybackSample
	if err := decodeJSON(r, &sample, false); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch sample.Event {
	case "":
		sample.Event = models.PlaybackEventTimeUpdate
	case models.PlaybackEventTimeUpdate, models.PlaybackEventPlay, models.PlaybackEventPause, models.PlaybackEventEnded:
	default:
		h.RespondError(w, http.StatusBadRequest, "invalid playback event")
		return
	}
	if sample.CurrentTime < 0 || sample.Duration < 0 {
		h.RespondError(w, http.StatusBadRequest, "currentTime and duration must not be negative")
		return
	}

	snap, err := h.service.ReportPlayback(r.Context(), learnerID, chi.URLParam(r, "sessionID"), sample)
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// PackageComplete handles POST /api/v1/sessions/{sessionID}/package-complete
// @Summary Report interactive package completion
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Param request body PackageCompleteRequest false "Optional package score"
// @Success 200 {object} services.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Current stage is not an interactive package"
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/package-complete [post]
func (h *ProgressHandler) PackageComplete(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	var req PackageCompleteRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		h.RespondError(w, http.StatusBadRequest, "score must be between 0 and 100")
		return
	}

	snap, err := h.service.CompletePackage(r.Context(), learnerID, chi.URLParam(r, "sessionID"), req.Score)
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Certification handles POST /api/v1/sessions/{sessionID}/certification
// @Summary Set the certification checkbox
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Param request body CertificationRequest true "Checkbox state"
// @Success 200 {object} services.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Current stage has no certification"
// @Router /api/v1/sessions/{sessionID}/certification [post]
func (h *ProgressHandler) Certification(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	var req CertificationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.service.SetCertification(r.Context(), learnerID, chi.URLParam(r, "sessionID"), req.Checked)
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// MediaError handles POST /api/v1/sessions/{sessionID}/media-error
// @Summary Report a media failure
// @Description The current stage becomes completable without its media
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Param request body MediaErrorRequest false "Failure reason"
// @Success 200 {object} services.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/media-error [post]
func (h *ProgressHandler) MediaError(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	var req MediaErrorRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.service.ReportMediaError(r.Context(), learnerID, chi.URLParam(r, "sessionID"), req.Reason)
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Save handles POST /api/v1/sessions/{sessionID}/save
// @Summary Retry failed saves
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 200 {object} services.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse "Store still unavailable"
// @Router /api/v1/sessions/{sessionID}/save [post]
func (h *ProgressHandler) Save(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Save(r.Context(), learnerID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.RespondServiceError(w, err, snap)
		return
	}
	h.RespondJSON(w, http.StatusOK, snap)
}

// Beacon handles POST /api/v1/sessions/{sessionID}/beacon
// @Summary Page unload save
// @Description Closes the session with a best-effort save of the current progress and returns immediately
// @Tags progress
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Success 202 "Save scheduled"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/beacon [post]
func (h *ProgressHandler) Beacon(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	if err := h.service.Beacon(learnerID, chi.URLParam(r, "sessionID")); err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
