package playback

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/corptrain/playback/internal/models"
)

var (
	ErrNoQuestions      = errors.New("quiz has no questions")
	ErrInvalidThreshold = errors.New("pass threshold must be between 0 and 100")
)

// ValidationError lists the required questions that were left unanswered, keyed by question id
type ValidationError struct {
	Fields map[int]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	ids := make([]int, 0, len(e.Fields))
	for id := range e.Fields {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("question %d: %s", id, e.Fields[id])
	}
	return "quiz validation failed: " + strings.Join(parts, "; ")
}

// FreeTextScorer decides whether a free-text answer is correct
type FreeTextScorer interface {
	Score(q models.Question, text string) bool
}

// AcceptAllScorer marks every free-text answer correct
type AcceptAllScorer struct{}

func (AcceptAllScorer) Score(models.Question, string) bool { return true }

// KeywordScorer marks a free-text answer correct when it mentions at least MinMatches of the
// question keywords (all of them when MinMatches is 0). Questions without keywords are accepted.
type KeywordScorer struct {
	MinMatches int
}

func (s KeywordScorer) Score(q models.Question, text string) bool {
	if len(q.Keywords) == 0 {
		return true
	}
	need := s.MinMatches
	if need <= 0 || need > len(q.Keywords) {
		need = len(q.Keywords)
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range q.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lower, kw) {
			matches++
		}
	}
	return matches >= need
}

// ManualReviewScorer leaves free-text answers to a human grader and scores them as incorrect
// until graded.
type ManualReviewScorer struct{}

func (ManualReviewScorer) Score(models.Question, string) bool { return false }

// FreeTextScorerByName resolves a configured scorer name
func FreeTextScorerByName(name string) (FreeTextScorer, error) {
	switch strings.ToLower(name) {
	case "", "accept-all":
		return AcceptAllScorer{}, nil
	case "keyword":
		return KeywordScorer{}, nil
	case "manual":
		return ManualReviewScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown free-text scorer %q", name)
	}
}

// GradedAnswer is an answer with its verdict
type GradedAnswer struct {
	Answer  models.Answer `json:"answer"`
	Correct bool          `json:"correct"`
}

// QuizResult is the outcome of evaluating a submission
type QuizResult struct {
	Graded       []GradedAnswer `json:"graded"`
	Total        int            `json:"total"`
	CorrectCount int            `json:"correctCount"`
	ScorePercent float64        `json:"scorePercent"`
	Passed       bool           `json:"passed"`
}

// Evaluator validates and scores quiz submissions
type Evaluator struct {
	freeText FreeTextScorer
}

// NewEvaluator creates an evaluator; a nil scorer accepts every free-text answer
func NewEvaluator(freeText FreeTextScorer) *Evaluator {
	if freeText == nil {
		freeText = AcceptAllScorer{}
	}
	return &Evaluator{freeText: freeText}
}

// Validate checks that every required question has a non-empty answer
func (e *Evaluator) Validate(questions []models.Question, answers []models.Answer) error {
	byQuestion := indexAnswers(answers)
	fields := make(map[int]string)
	for _, q := range questions {
		if !q.Required {
			continue
		}
		a, ok := byQuestion[q.ID]
		if !ok || answerEmpty(q, a) {
			fields[q.ID] = "answer is required"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Evaluate validates and scores a submission against passThreshold (a percentage).
//
// Nothing is scored when validation fails. Unanswered optional questions count as incorrect.
func (e *Evaluator) Evaluate(questions []models.Question, answers []models.Answer, passThreshold float64) (*QuizResult, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if passThreshold < 0 || passThreshold > 100 {
		return nil, ErrInvalidThreshold
	}
	if err := e.Validate(questions, answers); err != nil {
		return nil, err
	}

	byQuestion := indexAnswers(answers)
	res := &QuizResult{Total: len(questions), Graded: make([]GradedAnswer, 0, len(questions))}
	for _, q := range questions {
		a, ok := byQuestion[q.ID]
		if !ok {
			a = models.Answer{QuestionID: q.ID}
		}
		correct := ok && !answerEmpty(q, a) && e.correct(q, a)
		if correct {
			res.CorrectCount++
		}
		res.Graded = append(res.Graded, GradedAnswer{Answer: a, Correct: correct})
	}

	res.ScorePercent = float64(res.CorrectCount) / float64(res.Total) * 100
	res.Passed = res.ScorePercent >= passThreshold
	return res, nil
}

func (e *Evaluator) correct(q models.Question, a models.Answer) bool {
	switch q.Type {
	case models.QuestionTypeSingleChoice:
		return len(q.CorrectOptionIDs) == 1 && len(a.SelectedOptionIDs) == 1 &&
			a.SelectedOptionIDs[0] == q.CorrectOptionIDs[0]
	case models.QuestionTypeMultiChoice:
		return sameSet(a.SelectedOptionIDs, q.CorrectOptionIDs)
	case models.QuestionTypeFreeText:
		return e.freeText.Score(q, a.Text)
	default:
		return false
	}
}

func indexAnswers(answers []models.Answer) map[int]models.Answer {
	m := make(map[int]models.Answer, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a
	}
	return m
}

func answerEmpty(q models.Question, a models.Answer) bool {
	switch q.Type {
	case models.QuestionTypeFreeText:
		return strings.TrimSpace(a.Text) == ""
	default:
		for _, id := range a.SelectedOptionIDs {
			if id != "" {
				return false
			}
		}
		return true
	}
}

func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, id := range a {
		left[id] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, id := range b {
		right[id] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for id := range left {
		if _, ok := right[id]; !ok {
			return false
		}
	}
	return true
}
