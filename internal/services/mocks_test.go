package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/media"
	"github.com/corptrain/playback/internal/models"
	"github.com/corptrain/playback/internal/playback"
	"github.com/corptrain/playback/internal/repositories"
	"go.uber.org/zap"
)

// mockContentRepository is a mock implementation of ContentRepository
type mockContentRepository struct {
	content *models.ModuleContent
	err     error
}

func (m *mockContentRepository) GetModuleContent(ctx context.Context, assignmentID int) (*models.ModuleContent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.content == nil || m.content.Assignment.ID != assignmentID {
		return nil, repositories.ErrNotFound
	}
	return m.content, nil
}

type progressKey struct {
	learnerID, sceneID, assignmentID int
}

// mockProgressRepository keeps records in memory with the store's monotonic completion
type mockProgressRepository struct {
	mu        sync.Mutex
	records   map[progressKey]models.ProgressRecord
	upserts   int
	lists     int
	getErr    error
	upsertErr error
}

func newMockProgressRepository() *mockProgressRepository {
	return &mockProgressRepository{records: make(map[progressKey]models.ProgressRecord)}
}

func (m *mockProgressRepository) Get(ctx context.Context, learnerID, sceneID, assignmentID int) (*models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[progressKey{learnerID, sceneID, assignmentID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockProgressRepository) ListByAssignment(ctx context.Context, learnerID, assignmentID int) ([]models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lists++
	records := []models.ProgressRecord{}
	for key, rec := range m.records {
		if key.learnerID == learnerID && key.assignmentID == assignmentID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *mockProgressRepository) Upsert(ctx context.Context, rec *models.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	key := progressKey{rec.LearnerID, rec.SceneID, rec.AssignmentID}
	stored := *rec
	if old, ok := m.records[key]; ok && old.Completed {
		stored.Completed = true
		stored.CompletedAt = old.CompletedAt
	}
	m.records[key] = stored
	return nil
}

func (m *mockProgressRepository) record(learnerID, sceneID, assignmentID int) (models.ProgressRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[progressKey{learnerID, sceneID, assignmentID}]
	return rec, ok
}

func (m *mockProgressRepository) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// mockQuizSessionRepository keeps attempts in memory and finalizes each one once
type mockQuizSessionRepository struct {
	sessions    []*models.QuizSession
	responses   map[int][]models.QuizResponse
	getErr      error
	createErr   error
	finalizeErr error
}

func newMockQuizSessionRepository() *mockQuizSessionRepository {
	return &mockQuizSessionRepository{responses: make(map[int][]models.QuizResponse)}
}

func (m *mockQuizSessionRepository) GetLatest(ctx context.Context, learnerID, quizID, assignmentID int) (*models.QuizSession, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var latest *models.QuizSession
	for _, s := range m.sessions {
		if s.LearnerID == learnerID && s.QuizID == quizID && s.AssignmentID == assignmentID {
			if latest == nil || s.Attempt > latest.Attempt {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *mockQuizSessionRepository) Create(ctx context.Context, s *models.QuizSession) error {
	if m.createErr != nil {
		return m.createErr
	}
	s.ID = len(m.sessions) + 1
	s.Status = models.QuizSessionOpen
	cp := *s
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (m *mockQuizSessionRepository) Finalize(ctx context.Context, s *models.QuizSession, responses []models.QuizResponse) error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	for _, stored := range m.sessions {
		if stored.ID != s.ID {
			continue
		}
		if stored.Status != models.QuizSessionOpen {
			return repositories.ErrQuizFinalized
		}
		s.Status = models.QuizSessionFinalized
		*stored = *s
		m.responses[s.ID] = responses
		return nil
	}
	return repositories.ErrNotFound
}

// mockCompletionRepository creates at most one record per assignment
type mockCompletionRepository struct {
	record    *models.CompletionRecord
	creates   int
	getErr    error
	createErr error
	markErr   error
}

func (m *mockCompletionRepository) GetByAssignment(ctx context.Context, assignmentID int) (*models.CompletionRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.record == nil || m.record.AssignmentID != assignmentID {
		return nil, nil
	}
	cp := *m.record
	return &cp, nil
}

func (m *mockCompletionRepository) Create(ctx context.Context, rec *models.CompletionRecord) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	if m.record != nil && m.record.AssignmentID == rec.AssignmentID {
		return false, nil
	}
	m.creates++
	rec.ID = m.creates
	cp := *rec
	m.record = &cp
	return true, nil
}

func (m *mockCompletionRepository) MarkCertificateQueued(ctx context.Context, id int, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	if m.record == nil || m.record.ID != id {
		return repositories.ErrNotFound
	}
	if m.record.CertificateQueuedAt == nil {
		m.record.CertificateQueuedAt = &at
	}
	return nil
}

// mockCertificateQueue records enqueued completions
type mockCertificateQueue struct {
	enqueued []models.CompletionRecord
	err      error
}

func (m *mockCertificateQueue) Enqueue(ctx context.Context, rec models.CompletionRecord) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, rec)
	return nil
}

// mockProber fails every probe when err is set
type mockProber struct {
	err error
}

func (m *mockProber) Probe(ctx context.Context, scene models.Scene) (*media.ProbeResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &media.ProbeResult{Locator: scene.Locator(), Available: true}, nil
}

// mockPublisher records published events
type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) count(typ events.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// mockStreams records closed event streams
type mockStreams struct {
	mu     sync.Mutex
	closed []string
}

func (m *mockStreams) CloseSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, sessionID)
}

type testEnv struct {
	svc          *sessionService
	content      *mockContentRepository
	progress     *mockProgressRepository
	quizzes      *mockQuizSessionRepository
	completions  *mockCompletionRepository
	certificates *mockCertificateQueue
	publisher    *mockPublisher
	streams      *mockStreams
}

const (
	testLearnerID    = 7
	testAssignmentID = 42
	videoSceneID     = 100
	documentSceneID  = 200
	testQuizID       = 300
)

func newTestEnv(t *testing.T, content *models.ModuleContent, testingMode bool) *testEnv {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	env := &testEnv{
		content:      &mockContentRepository{content: content},
		progress:     newMockProgressRepository(),
		quizzes:      newMockQuizSessionRepository(),
		completions:  &mockCompletionRepository{},
		certificates: &mockCertificateQueue{},
		publisher:    &mockPublisher{},
		streams:      &mockStreams{},
	}
	deps := Dependencies{
		Content:      env.content,
		Progress:     env.progress,
		Quizzes:      env.quizzes,
		Completions:  env.completions,
		Certificates: env.certificates,
		Events:       env.publisher,
		Streams:      env.streams,
	}
	cfg := Config{
		Tracker:            playback.DefaultTrackerConfig(),
		FrameInterval:      5 * time.Millisecond,
		SessionIdleTimeout: 30 * time.Minute,
		BeaconTimeout:      time.Second,
		TestingMode:        testingMode,
	}
	env.svc = NewSessionService(deps, NewSessionRegistry(), playback.NewEvaluator(nil), cfg, logger)
	t.Cleanup(func() {
		for _, sess := range env.svc.registry.All() {
			env.svc.closeSession(context.Background(), sess)
		}
		env.svc.Wait()
	})
	return env
}

func videoScene() models.Scene {
	return models.Scene{
		ID:       videoSceneID,
		Role:     models.SceneRolePrimary,
		Title:    "Safety basics",
		Content:  models.VideoContent{SourceURL: "https://cdn.example.com/safety.mp4", ExpectedDuration: 120},
		ModuleID: 1,
	}
}

func narratedScene() models.Scene {
	return models.Scene{
		ID:    documentSceneID,
		Role:  models.SceneRoleSupplemental,
		Title: "Site plan",
		Content: models.DocumentContent{
			DocumentURL: "https://cdn.example.com/plan.pdf",
			AudioURL:    "https://cdn.example.com/plan.mp3",
			Timing: &models.ScrollTimingConfig{
				Segments: []models.Segment{
					{Text: "Welcome", StartTimeSeconds: 0, Label: "Intro"},
					{Text: "Exits", StartTimeSeconds: 20, Label: "Exits"},
					{Text: "Assembly", StartTimeSeconds: 45, Label: "Assembly"},
					{Text: "Contacts", StartTimeSeconds: 70, Label: "Contacts"},
				},
				AudioDurationSeconds: 90,
			},
		},
		ModuleID: 1,
	}
}

func twoQuestionQuiz(requirePass bool) *models.Quiz {
	return &models.Quiz{
		ID:            testQuizID,
		ModuleID:      1,
		PassThreshold: 70,
		RequirePass:   requirePass,
		Questions: []models.Question{
			{
				ID: 1, Position: 1, Type: models.QuestionTypeSingleChoice, Prompt: "Where is the exit?", Required: true,
				Options:          []models.Option{{ID: "a", Text: "North"}, {ID: "b", Text: "South"}},
				CorrectOptionIDs: []string{"b"},
			},
			{
				ID: 2, Position: 2, Type: models.QuestionTypeSingleChoice, Prompt: "Who do you call?", Required: true,
				Options:          []models.Option{{ID: "a", Text: "Supervisor"}, {ID: "b", Text: "Nobody"}},
				CorrectOptionIDs: []string{"a"},
			},
		},
	}
}

func moduleContent(supplemental *models.Scene, quiz *models.Quiz) *models.ModuleContent {
	return &models.ModuleContent{
		Assignment:   models.Assignment{ID: testAssignmentID, LearnerID: testLearnerID, ModuleID: 1},
		Title:        "Site induction",
		Primary:      videoScene(),
		Supplemental: supplemental,
		Quiz:         quiz,
	}
}

func correctAnswers() []models.Answer {
	return []models.Answer{
		{QuestionID: 1, SelectedOptionIDs: []string{"b"}},
		{QuestionID: 2, SelectedOptionIDs: []string{"a"}},
	}
}

func wrongAnswers() []models.Answer {
	return []models.Answer{
		{QuestionID: 1, SelectedOptionIDs: []string{"a"}},
		{QuestionID: 2, SelectedOptionIDs: []string{"b"}},
	}
}
