package question

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) ListByPack(ctx context.Context, packID string) ([]game.Question, error) {
	args := m.Called(ctx, packID)
	qs, _ := args.Get(0).([]game.Question)
	return qs, args.Error(1)
}

func (m *mockRepo) Get(ctx context.Context, questionID string) (*game.Question, error) {
	args := m.Called(ctx, questionID)
	q, _ := args.Get(0).(*game.Question)
	return q, args.Error(1)
}

func (m *mockRepo) IncorrectAnswers(ctx context.Context, questionID string) ([]string, error) {
	args := m.Called(ctx, questionID)
	answers, _ := args.Get(0).([]string)
	return answers, args.Error(1)
}

func newCachedSource(t *testing.T) (*Source, *mockRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := new(mockRepo)
	return NewSource(repo, NewCache(client, time.Minute), zerolog.Nop()), repo, mr
}

var capitals = []game.Question{
	{ID: "q1", PackID: "capitals", Text: "Capital of France?", CorrectAnswer: "Paris"},
	{ID: "q2", PackID: "capitals", Text: "Capital of Japan?", CorrectAnswer: "Tokyo"},
}

func TestSource_ListByPackReadsThroughCache(t *testing.T) {
	src, repo, mr := newCachedSource(t)
	repo.On("ListByPack", mock.Anything, "capitals").Return(capitals, nil).Once()

	first, err := src.ListByPack(context.Background(), "capitals")
	require.NoError(t, err)
	second, err := src.ListByPack(context.Background(), "capitals")
	require.NoError(t, err)

	assert.Equal(t, capitals, first)
	assert.Equal(t, capitals, second)
	assert.True(t, mr.Exists("questionpack:capitals"))
	repo.AssertExpectations(t)
}

func TestSource_EmptyPackNotCached(t *testing.T) {
	src, repo, mr := newCachedSource(t)
	repo.On("ListByPack", mock.Anything, "empty").Return([]game.Question{}, nil).Twice()

	for i := 0; i < 2; i++ {
		qs, err := src.ListByPack(context.Background(), "empty")
		require.NoError(t, err)
		assert.Empty(t, qs)
	}
	assert.False(t, mr.Exists("questionpack:empty"))
	repo.AssertExpectations(t)
}

func TestSource_CacheOutageFallsBackToRepository(t *testing.T) {
	src, repo, mr := newCachedSource(t)
	mr.Close()
	repo.On("Get", mock.Anything, "q1").Return(&capitals[0], nil)

	q, err := src.Get(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "Paris", q.CorrectAnswer)
}

func TestSource_RepositoryErrorsPropagate(t *testing.T) {
	src, repo, _ := newCachedSource(t)
	repo.On("Get", mock.Anything, "missing").Return(nil, game.ErrNotFound)
	repo.On("IncorrectAnswers", mock.Anything, "broken").Return(nil, errors.New("conn refused"))

	_, err := src.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, game.ErrNotFound)

	_, err = src.IncorrectAnswers(context.Background(), "broken")
	assert.Error(t, err)
}

func TestSource_Prefetch(t *testing.T) {
	src, repo, mr := newCachedSource(t)
	repo.On("Get", mock.Anything, "q1").Return(&capitals[0], nil).Once()
	repo.On("Get", mock.Anything, "q2").Return(&capitals[1], nil).Once()
	repo.On("IncorrectAnswers", mock.Anything, "q1").Return([]string{"Lyon", "Nice"}, nil).Once()
	repo.On("IncorrectAnswers", mock.Anything, "q2").Return([]string{"Osaka"}, nil).Once()

	require.NoError(t, src.Prefetch(context.Background(), []string{"q1", "q2"}))
	assert.True(t, mr.Exists("question:q2:incorrect"))

	// served from cache now
	answers, err := src.IncorrectAnswers(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lyon", "Nice"}, answers)
	repo.AssertExpectations(t)
}

func TestSource_WithoutCache(t *testing.T) {
	repo := new(mockRepo)
	repo.On("ListByPack", mock.Anything, "capitals").Return(capitals, nil).Twice()
	src := NewSource(repo, nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := src.ListByPack(context.Background(), "capitals")
		require.NoError(t, err)
	}
	assert.NoError(t, src.Prefetch(context.Background(), []string{"q1"}))
	repo.AssertExpectations(t)
}
