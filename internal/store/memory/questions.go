package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

// Seed is the YAML document loaded into a QuestionBank and Directory.
type Seed struct {
	Packs []SeedPack `yaml:"packs"`
	Users []SeedUser `yaml:"users"`
}

// SeedPack is one pack with its questions.
type SeedPack struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Questions []SeedQuestion `yaml:"questions"`
}

// SeedQuestion is one question with its distractors.
type SeedQuestion struct {
	ID               string   `yaml:"id"`
	Text             string   `yaml:"text"`
	CorrectAnswer    string   `yaml:"correct_answer"`
	IncorrectAnswers []string `yaml:"incorrect_answers"`
}

// SeedUser is a profile used for display name lookups.
type SeedUser struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

// LoadSeedFile reads and parses a YAML seed file.
func LoadSeedFile(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed parses a YAML seed document and validates every question.
func ParseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, pack := range seed.Packs {
		if pack.ID == "" {
			return nil, fmt.Errorf("pack %d: missing id", i)
		}
		for j, q := range pack.Questions {
			if q.Text == "" || q.CorrectAnswer == "" {
				return nil, fmt.Errorf("pack %s question %d: text and correct_answer are required", pack.ID, j)
			}
		}
	}
	return &seed, nil
}

// QuestionBank is a read-only game.QuestionSource held in memory.
type QuestionBank struct {
	mu          sync.RWMutex
	questions   map[string]game.Question
	packs       map[string][]string
	distractors map[string][]string
}

var _ game.QuestionSource = (*QuestionBank)(nil)

// NewQuestionBank creates an empty bank.
func NewQuestionBank() *QuestionBank {
	return &QuestionBank{
		questions:   make(map[string]game.Question),
		packs:       make(map[string][]string),
		distractors: make(map[string][]string),
	}
}

// Load adds every pack of the seed. Questions without an id get a generated one.
func (b *QuestionBank) Load(seed *Seed) {
	for _, pack := range seed.Packs {
		for _, q := range pack.Questions {
			id := q.ID
			if id == "" {
				id = uuid.NewString()
			}
			b.Add(game.Question{
				ID:            id,
				PackID:        pack.ID,
				Text:          q.Text,
				CorrectAnswer: q.CorrectAnswer,
			}, q.IncorrectAnswers...)
		}
	}
}

// Add stores a question and its distractors, appending it to its pack.
func (b *QuestionBank) Add(q game.Question, incorrect ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.questions[q.ID]; !exists {
		b.packs[q.PackID] = append(b.packs[q.PackID], q.ID)
	}
	b.questions[q.ID] = q
	b.distractors[q.ID] = append([]string(nil), incorrect...)
}

// ListByPack implements game.QuestionSource. Unknown packs are empty.
func (b *QuestionBank) ListByPack(_ context.Context, packID string) ([]game.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.packs[packID]
	out := make([]game.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.questions[id])
	}
	return out, nil
}

// Get implements game.QuestionSource.
func (b *QuestionBank) Get(_ context.Context, questionID string) (*game.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, game.ErrNotFound)
	}
	return &q, nil
}

// IncorrectAnswers implements game.QuestionSource.
func (b *QuestionBank) IncorrectAnswers(_ context.Context, questionID string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.questions[questionID]; !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, game.ErrNotFound)
	}
	return append([]string(nil), b.distractors[questionID]...), nil
}
