package handlers

import (
	"context"
	"net/http"

	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// QuizService is the interface that wraps quiz submission
type QuizService interface {
	// Method SubmitQuiz validates, scores and finalizes the open attempt of the assessment stage.
	//
	// Missing required answers are reported with a *playback.ValidationError and nothing is stored.
	SubmitQuiz(ctx context.Context, learnerID int, sessionID string, answers []models.Answer) (*services.QuizOutcome, error)
}

// QuizHandler handles assessment requests
type QuizHandler struct {
	BaseHandler
	service QuizService
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(service QuizService, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     service,
	}
}

// QuizSubmitRequest represents a quiz submission
type QuizSubmitRequest struct {
	Answers []models.Answer `json:"answers"`
}

// RegisterRoutes registers all quiz handler routes
func (h *QuizHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/quiz/submit", h.Submit)
}

// Submit handles POST /api/v1/sessions/{sessionID}/quiz/submit
// @Summary Submit quiz answers
// @Description Scores the answers and finalizes the attempt. A failed attempt of a quiz that must be passed opens a new attempt.
// @Tags quiz
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sessionID path string true "Session ID"
// @Param request body QuizSubmitRequest true "Answers"
// @Success 200 {object} services.QuizOutcome
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "No assessment in progress or attempt already finalized"
// @Failure 422 {object} ErrorResponse "Missing required answers"
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/sessions/{sessionID}/quiz/submit [post]
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	learnerID, ok := h.learnerID(w, r)
	if !ok {
		return
	}
	var req QuizSubmitRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.service.SubmitQuiz(r.Context(), learnerID, chi.URLParam(r, "sessionID"), req.Answers)
	if err != nil {
		h.RespondServiceError(w, err, nil)
		return
	}
	h.RespondJSON(w, http.StatusOK, outcome)
}
