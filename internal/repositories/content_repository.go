package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/corptrain/playback/internal/models"
)

// contentRepository reads assignments and the authored module content they point to
type contentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *sql.DB) *contentRepository {
	return &contentRepository{
		db: db,
	}
}

// GetModuleContent loads an assignment with its module scenes and quiz.
// It returns ErrNotFound when the assignment does not exist.
func (r *contentRepository) GetModuleContent(ctx context.Context, assignmentID int) (*models.ModuleContent, error) {
	content := &models.ModuleContent{}
	a := &content.Assignment

	var dueDate sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT assignments.id, assignments.learner_id, assignments.module_id, assignments.due_date,
		       assignments.created_at, training_modules.title
		FROM assignments
		JOIN training_modules ON training_modules.id = assignments.module_id
		WHERE assignments.id = ?`, assignmentID).Scan(
		&a.ID,
		&a.LearnerID,
		&a.ModuleID,
		&dueDate,
		&a.CreatedAt,
		&content.Title,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment %d: %w", assignmentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if dueDate.Valid {
		t := dueDate.Time
		a.DueDate = &t
	}

	if err := r.loadScenes(ctx, content); err != nil {
		return nil, err
	}
	if err := r.loadQuiz(ctx, content); err != nil {
		return nil, err
	}
	return content, nil
}

func (r *contentRepository) loadScenes(ctx context.Context, content *models.ModuleContent) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, module_id, role, title, kind, source_url, audio_url, transcript,
		       expected_duration_seconds, timing_config, requires_certification
		FROM scenes
		WHERE module_id = ?
		ORDER BY id`, content.Assignment.ModuleID)
	if err != nil {
		return fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var hasPrimary bool
	for rows.Next() {
		var (
			scene      models.Scene
			role, kind string
			sourceURL  string
			audioURL   string
			transcript sql.NullString
			duration   float64
			timingJSON []byte
		)
		err := rows.Scan(
			&scene.ID,
			&scene.ModuleID,
			&role,
			&scene.Title,
			&kind,
			&sourceURL,
			&audioURL,
			&transcript,
			&duration,
			&timingJSON,
			&scene.RequiresCertification,
		)
		if err != nil {
			return fmt.Errorf("failed to scan scene: %w", err)
		}

		contentKind, err := models.ParseContentKind(kind)
		if err != nil {
			return fmt.Errorf("scene %d: %w", scene.ID, err)
		}
		switch contentKind {
		case models.ContentKindVideo:
			scene.Content = models.VideoContent{SourceURL: sourceURL, ExpectedDuration: duration}
		case models.ContentKindPackage:
			scene.Content = models.PackageContent{LaunchURL: sourceURL}
		case models.ContentKindDocument:
			doc := models.DocumentContent{
				DocumentURL:      sourceURL,
				AudioURL:         audioURL,
				Transcript:       transcript.String,
				ExpectedDuration: duration,
			}
			if len(timingJSON) > 0 {
				var timing models.ScrollTimingConfig
				if err := json.Unmarshal(timingJSON, &timing); err != nil {
					return fmt.Errorf("scene %d: failed to decode timing config: %w", scene.ID, err)
				}
				doc.Timing = &timing
			}
			scene.Content = doc
		}

		scene.Role = models.SceneRole(role)
		switch scene.Role {
		case models.SceneRolePrimary:
			content.Primary = scene
			hasPrimary = true
		case models.SceneRoleSupplemental:
			s := scene
			content.Supplemental = &s
		default:
			return fmt.Errorf("scene %d has unknown role %q", scene.ID, role)
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	if !hasPrimary {
		return fmt.Errorf("module %d has no primary scene: %w", content.Assignment.ModuleID, ErrNotFound)
	}
	return nil
}

func (r *contentRepository) loadQuiz(ctx context.Context, content *models.ModuleContent) error {
	quiz := &models.Quiz{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, module_id, pass_threshold, require_pass
		FROM quizzes
		WHERE module_id = ?`, content.Assignment.ModuleID).Scan(
		&quiz.ID,
		&quiz.ModuleID,
		&quiz.PassThreshold,
		&quiz.RequirePass,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, position, type, prompt, required, options, correct_option_ids, keywords
		FROM quiz_questions
		WHERE quiz_id = ?
		ORDER BY position, id`, quiz.ID)
	if err != nil {
		return fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	quiz.Questions = []models.Question{}
	for rows.Next() {
		var (
			q                          models.Question
			qType                      string
			options, correct, keywords []byte
		)
		err := rows.Scan(&q.ID, &q.Position, &qType, &q.Prompt, &q.Required, &options, &correct, &keywords)
		if err != nil {
			return fmt.Errorf("failed to scan quiz question: %w", err)
		}
		if q.Type, err = models.ParseQuestionType(qType); err != nil {
			return fmt.Errorf("question %d: %w", q.ID, err)
		}
		if err := decodeJSON(options, &q.Options); err != nil {
			return fmt.Errorf("question %d options: %w", q.ID, err)
		}
		if err := decodeJSON(correct, &q.CorrectOptionIDs); err != nil {
			return fmt.Errorf("question %d correct options: %w", q.ID, err)
		}
		if err := decodeJSON(keywords, &q.Keywords); err != nil {
			return fmt.Errorf("question %d keywords: %w", q.ID, err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	content.Quiz = quiz
	return nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
