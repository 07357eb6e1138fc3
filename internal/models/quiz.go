package models

import (
	"fmt"
	"time"
)

// QuestionType represents the answer format of a question
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single-choice"
	QuestionTypeMultiChoice  QuestionType = "multi-choice"
	QuestionTypeFreeText     QuestionType = "free-text"
)

// ParseQuestionType converts a stored type into a QuestionType
func ParseQuestionType(s string) (QuestionType, error) {
	switch QuestionType(s) {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeFreeText:
		return QuestionType(s), nil
	default:
		return "", fmt.Errorf("unknown question type %q", s)
	}
}

// Option is a selectable answer of a choice question
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is one assessment question
type Question struct {
	ID               int          `json:"id"`
	Position         int          `json:"position"`
	Type             QuestionType `json:"type"`
	Prompt           string       `json:"prompt"`
	Required         bool         `json:"required"`
	Options          []Option     `json:"options,omitempty"`
	CorrectOptionIDs []string     `json:"-"`
	Keywords         []string     `json:"-"`
}

// Quiz is the assessment attached to a training module
type Quiz struct {
	ID            int        `json:"id"`
	ModuleID      int        `json:"moduleId"`
	PassThreshold float64    `json:"passThreshold"`
	RequirePass   bool       `json:"requirePass"`
	Questions     []Question `json:"questions"`
}

// Answer is the learner's answer to one question
type Answer struct {
	QuestionID        int      `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds,omitempty"`
	Text              string   `json:"text,omitempty"`
}

// QuizSessionStatus represents the lifecycle state of a quiz session
type QuizSessionStatus string

const (
	QuizSessionOpen      QuizSessionStatus = "open"
	QuizSessionFinalized QuizSessionStatus = "finalized"
)

// QuizSession is one attempt of a learner at a quiz within an assignment
type QuizSession struct {
	ID             int               `json:"id"`
	LearnerID      int               `json:"learnerId"`
	QuizID         int               `json:"quizId"`
	AssignmentID   int               `json:"assignmentId"`
	Attempt        int               `json:"attempt"`
	TotalQuestions int               `json:"totalQuestions"`
	CorrectCount   int               `json:"correctCount"`
	ScorePercent   float64           `json:"scorePercent"`
	Passed         bool              `json:"passed"`
	Status         QuizSessionStatus `json:"status"`
	StartedAt      time.Time         `json:"startedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

// QuizResponse is the stored answer to one question of a session
type QuizResponse struct {
	ID         int    `json:"id"`
	SessionID  int    `json:"sessionId"`
	QuestionID int    `json:"questionId"`
	Answer     Answer `json:"answer"`
	Correct    bool   `json:"correct"`
}
