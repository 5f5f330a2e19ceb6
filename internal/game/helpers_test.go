package game_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-live/internal/game"
	"github.com/gokatarajesh/trivia-live/internal/store/memory"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []game.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, evt game.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) last() game.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return game.Event{}
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// flakyHistory wraps the memory history and fails selected calls.
type flakyHistory struct {
	*memory.History
	failSeen   bool
	failRecord bool
	failPlay   bool
}

func (h *flakyHistory) SeenQuestionIDs(ctx context.Context, userIDs, questionIDs []string) (map[string]struct{}, error) {
	if h.failSeen {
		return nil, errBoom
	}
	return h.History.SeenQuestionIDs(ctx, userIDs, questionIDs)
}

func (h *flakyHistory) RecordAnswerEvent(ctx context.Context, userID, questionID string, correct bool) error {
	if h.failRecord {
		return errBoom
	}
	return h.History.RecordAnswerEvent(ctx, userID, questionID, correct)
}

func (h *flakyHistory) IncrementPlayCount(ctx context.Context, userID, packID string) error {
	if h.failPlay {
		return errBoom
	}
	return h.History.IncrementPlayCount(ctx, userID, packID)
}

type fixture struct {
	svc       *game.Service
	store     *memory.Store
	bank      *memory.QuestionBank
	history   *flakyHistory
	directory *memory.Directory
	clock     *fakeClock
	publisher *recordingPublisher
}

func newFixture(t *testing.T, opts ...func(*game.ServiceOptions)) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		bank:      memory.NewQuestionBank(),
		history:   &flakyHistory{History: memory.NewHistory()},
		directory: memory.NewDirectory(memory.SeedUser{ID: "host", DisplayName: "Quizmaster"}),
		clock:     newFakeClock(),
		publisher: &recordingPublisher{},
	}
	options := game.ServiceOptions{
		Metrics: game.NewMetrics(prometheus.NewRegistry()),
		Clock:   f.clock.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	f.svc = game.NewService(f.store, f.bank, f.history, f.directory, f.publisher, options, zerolog.Nop())
	return f
}

// addPack seeds n questions; question i has correct answer "answer-i".
func (f *fixture) addPack(packID string, n int) {
	for i := 0; i < n; i++ {
		f.bank.Add(game.Question{
			ID:            fmt.Sprintf("%s-q%d", packID, i),
			PackID:        packID,
			Text:          fmt.Sprintf("question %d", i),
			CorrectAnswer: fmt.Sprintf("answer-%d", i),
		}, fmt.Sprintf("wrong-%d-a", i), fmt.Sprintf("wrong-%d-b", i), fmt.Sprintf("wrong-%d-c", i))
	}
}

func (f *fixture) create(t *testing.T, maxParticipants, questionCount int) (*game.Session, *game.Participant) {
	t.Helper()
	sess, host, err := f.svc.CreateSession(context.Background(), game.CreateSessionRequest{
		HostUserID:       "host",
		PackID:           "pack",
		MaxParticipants:  maxParticipants,
		QuestionCount:    questionCount,
		TimeLimitSeconds: 30,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess, host
}

// correctAnswer looks up the correct answer of the question at index.
func (f *fixture) correctAnswer(t *testing.T, sessionID string, index int) string {
	t.Helper()
	ctx := context.Background()
	gq, err := f.svc.GameQuestion(ctx, sessionID, index)
	if err != nil {
		t.Fatalf("game question: %v", err)
	}
	q, err := f.svc.Question(ctx, gq.QuestionID)
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	return q.CorrectAnswer
}

// serviceOver builds a second service over store sharing the fixture's collaborators.
func (f *fixture) serviceOver(store game.Store) *game.Service {
	return game.NewService(store, f.bank, f.history, f.directory, f.publisher, game.ServiceOptions{
		Metrics: game.NewMetrics(prometheus.NewRegistry()),
		Clock:   f.clock.Now,
	}, zerolog.Nop())
}

// hookedStore runs beforeRecord ahead of every answer write.
type hookedStore struct {
	*memory.Store
	beforeRecord func()
}

func (s *hookedStore) RecordAnswer(ctx context.Context, rec game.AnswerRecord) (int, error) {
	if s.beforeRecord != nil {
		s.beforeRecord()
	}
	return s.Store.RecordAnswer(ctx, rec)
}

// failingLedgerStore fails reads of one ledger index.
type failingLedgerStore struct {
	*memory.Store
	index int
}

func (s *failingLedgerStore) GetGameQuestion(ctx context.Context, sessionID string, index int) (*game.GameQuestion, error) {
	if index == s.index {
		return nil, errBoom
	}
	return s.Store.GetGameQuestion(ctx, sessionID, index)
}
