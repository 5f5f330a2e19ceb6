package game_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-live/internal/game"
)

func TestService_CreateSession(t *testing.T) {
	f := newFixture(t)

	sess, host := f.create(t, 4, 5)

	assert.Equal(t, game.StatusPending, sess.Status)
	assert.Equal(t, 0, sess.CurrentQuestionIndex)
	assert.Len(t, sess.JoinCode, 6)
	for _, r := range sess.JoinCode {
		assert.NotContains(t, "O0I1", string(r))
	}
	assert.True(t, host.IsHost)
	assert.Equal(t, "Quizmaster", host.DisplayName)
	assert.Equal(t, sess.ID, host.SessionID)

	participants, err := f.svc.Participants(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestService_CreateSession_DefaultHostName(t *testing.T) {
	f := newFixture(t)

	_, host, err := f.svc.CreateSession(context.Background(), game.CreateSessionRequest{
		HostUserID:    "stranger",
		PackID:        "pack",
		QuestionCount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, game.DefaultDisplayName, host.DisplayName)
}

func TestService_CreateSession_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []game.CreateSessionRequest{
		{PackID: "pack", QuestionCount: 1},
		{HostUserID: "host", QuestionCount: 1},
		{HostUserID: "host", PackID: "pack"},
		{HostUserID: "host", PackID: "pack", QuestionCount: 1, TimeLimitSeconds: -1},
	}
	for _, req := range cases {
		_, _, err := f.svc.CreateSession(ctx, req)
		assert.ErrorIs(t, err, game.ErrInvalidInput)
	}
}

func TestService_Join(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.create(t, 3, 2)

	joined, p, err := f.svc.Join(ctx, strings.ToLower(sess.JoinCode), "u1", "  Ada ")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, joined.ID)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.False(t, p.IsHost)
	assert.Contains(t, f.publisher.types(), game.EventParticipantJoined)

	_, _, err = f.svc.Join(ctx, "NOPE99", "u1", "")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestService_Join_IdempotentRejoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.create(t, 3, 2)

	_, first, err := f.svc.Join(ctx, sess.JoinCode, "u1", "Ada")
	require.NoError(t, err)
	_, again, err := f.svc.Join(ctx, sess.JoinCode, "u1", "Ada Lovelace")
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Ada Lovelace", again.DisplayName)

	participants, err := f.svc.Participants(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestService_Join_Capacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.create(t, 2, 2)

	_, _, err := f.svc.Join(ctx, sess.JoinCode, "u1", "")
	require.NoError(t, err)

	_, _, err = f.svc.Join(ctx, sess.JoinCode, "u2", "")
	assert.ErrorIs(t, err, game.ErrCapacityExceeded)

	// full sessions refuse everyone, seated users included
	_, _, err = f.svc.Join(ctx, sess.JoinCode, "u1", "")
	assert.ErrorIs(t, err, game.ErrCapacityExceeded)
}

func TestService_Join_ConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.create(t, 4, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _ = f.svc.Join(ctx, sess.JoinCode, "user-"+string(rune('a'+i)), "")
		}(i)
	}
	wg.Wait()

	participants, err := f.svc.Participants(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 4)
}

func TestService_Join_AfterStart(t *testing.T) {
	f := newFixture(t)
	f.addPack("pack", 2)
	ctx := context.Background()
	sess, _ := f.create(t, 3, 2)

	_, err := f.svc.Start(ctx, sess.ID, "host")
	require.NoError(t, err)

	_, _, err = f.svc.Join(ctx, sess.JoinCode, "late", "")
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestService_Start(t *testing.T) {
	f := newFixture(t)
	f.addPack("pack", 5)
	ctx := context.Background()
	sess, _ := f.create(t, 3, 3)
	_, _, err := f.svc.Join(ctx, sess.JoinCode, "u1", "")
	require.NoError(t, err)

	started, err := f.svc.Start(ctx, sess.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, game.StatusActive, started.Status)
	assert.Equal(t, 0, started.CurrentQuestionIndex)
	assert.Equal(t, 3, started.QuestionCount)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		gq, err := f.svc.GameQuestion(ctx, sess.ID, i)
		require.NoError(t, err)
		assert.Equal(t, i, gq.Index)
		assert.False(t, seen[gq.QuestionID], "question repeated")
		seen[gq.QuestionID] = true
		if i == 0 {
			assert.True(t, gq.Open())
		} else {
			assert.Nil(t, gq.StartedAt)
		}
	}

	assert.Equal(t, 1, f.history.PlayCount("host", "pack"))
	assert.Equal(t, 1, f.history.PlayCount("u1", "pack"))
	assert.Contains(t, f.publisher.types(), game.EventGameStarted)
	assert.Contains(t, f.publisher.types(), game.EventQuestionStarted)
}

func TestService_Start_ReducesQuestionCount(t *testing.T) {
	f := newFixture(t)
	f.addPack("pack", 2)
	sess, _ := f.create(t, 2, 10)

	started, err := f.svc.Start(context.Background(), sess.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, 2, started.QuestionCount)
}

func TestService_Start_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.create(t, 2, 3)

	_, err := f.svc.Start(ctx, sess.ID, "not-host")
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	_, err = f.svc.Start(ctx, sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrNoQuestions)
	assert.ErrorIs(t, err, game.ErrInvalidState)

	got, err := f.svc.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusPending, got.Status)

	f.addPack("pack", 3)
	_, err = f.svc.Start(ctx, sess.ID, "host")
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrInvalidState)

	_, err = f.svc.Start(ctx, "missing", "host")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestService_Start_PlayCountFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.addPack("pack", 2)
	f.history.failPlay = true
	sess, _ := f.create(t, 2, 2)

	started, err := f.svc.Start(context.Background(), sess.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, game.StatusActive, started.Status)
}

func TestService_Start_HistoryPolicy(t *testing.T) {
	f := newFixture(t, func(o *game.ServiceOptions) { o.HistoryPolicy = game.HistoryPolicyFail })
	f.addPack("pack", 2)
	f.history.failSeen = true
	sess, _ := f.create(t, 2, 2)

	_, err := f.svc.Start(context.Background(), sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrDependency)

	degrade := newFixture(t)
	degrade.addPack("pack", 2)
	degrade.history.failSeen = true
	sess, _ = degrade.create(t, 2, 2)

	_, err = degrade.svc.Start(context.Background(), sess.ID, "host")
	assert.NoError(t, err)
}

func startedGame(t *testing.T, questions int) (*fixture, *game.Session, *game.Participant, *game.Participant) {
	t.Helper()
	f := newFixture(t)
	f.addPack("pack", questions)
	ctx := context.Background()
	sess, host := f.create(t, 2, questions)
	_, player, err := f.svc.Join(ctx, sess.JoinCode, "player", "Bob")
	require.NoError(t, err)
	sess, err = f.svc.Start(ctx, sess.ID, "host")
	require.NoError(t, err)
	return f, sess, host, player
}

func TestService_SubmitAnswer_Scoring(t *testing.T) {
	f, sess, host, player := startedGame(t, 2)
	ctx := context.Background()
	correct := f.correctAnswer(t, sess.ID, 0)

	out, err := f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: "  " + strings.ToUpper(correct) + " ",
	})
	require.NoError(t, err)
	assert.True(t, out.IsCorrect)
	assert.Equal(t, 1000, out.ScoreAwarded)
	assert.Equal(t, 1000, out.TotalScore)
	assert.Equal(t, correct, out.CorrectAnswer)

	f.clock.Advance(15 * time.Second)
	out, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 0, Answer: correct,
	})
	require.NoError(t, err)
	assert.Equal(t, 500, out.ScoreAwarded)

	gq, err := f.svc.GameQuestion(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{host.ID: 1000, player.ID: 500}, gq.Scores)
	assert.Len(t, f.history.Events(), 2)

	last := f.publisher.last()
	assert.Equal(t, game.EventAnswerSubmitted, last.Type)
	assert.Equal(t, game.AnswerSubmittedPayload{ParticipantID: player.ID, QuestionIndex: 0}, last.Payload)
}

func TestService_SubmitAnswer_IncorrectScoresZero(t *testing.T) {
	f, sess, host, _ := startedGame(t, 1)

	out, err := f.svc.SubmitAnswer(context.Background(), game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: "definitely wrong",
	})
	require.NoError(t, err)
	assert.False(t, out.IsCorrect)
	assert.Equal(t, 0, out.ScoreAwarded)
	assert.Equal(t, 0, out.TotalScore)
}

func TestService_SubmitAnswer_NoDoubleScoring(t *testing.T) {
	f, sess, host, _ := startedGame(t, 1)
	ctx := context.Background()
	correct := f.correctAnswer(t, sess.ID, 0)
	req := game.SubmitAnswerRequest{SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: correct}

	_, err := f.svc.SubmitAnswer(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, req)
	assert.ErrorIs(t, err, game.ErrConflict)

	participants, err := f.svc.Participants(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, participants[0].Score)
}

func TestService_SubmitAnswer_ConcurrentDuplicates(t *testing.T) {
	f, sess, host, _ := startedGame(t, 1)
	ctx := context.Background()
	correct := f.correctAnswer(t, sess.ID, 0)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
				SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: correct,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, game.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	p, err := f.svc.ParticipantForUser(ctx, sess.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, 1000, p.Score)
}

func TestService_SubmitAnswer_PhaseGating(t *testing.T) {
	f, sess, host, player := startedGame(t, 3)
	ctx := context.Background()

	for _, idx := range []int{1, 2, 7, -1} {
		_, err := f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
			SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: idx, Answer: "x",
		})
		assert.ErrorIs(t, err, game.ErrInvalidState, "index %d", idx)
	}

	_, err := f.svc.EndCurrentQuestion(ctx, sess.ID, "host")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 0, Answer: "x",
	})
	assert.ErrorIs(t, err, game.ErrInvalidState)
	assert.Contains(t, f.publisher.types(), game.EventQuestionEnded)

	// ending twice is a no-op
	_, err = f.svc.EndCurrentQuestion(ctx, sess.ID, "host")
	assert.NoError(t, err)
}

func TestService_SubmitAnswer_RequiresActiveSession(t *testing.T) {
	f := newFixture(t)
	f.addPack("pack", 2)
	ctx := context.Background()
	sess, host := f.create(t, 2, 2)

	_, err := f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: "x",
	})
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestService_SubmitAnswer_ForeignParticipant(t *testing.T) {
	f, sess, _, _ := startedGame(t, 1)
	ctx := context.Background()

	other, otherHost, err := f.svc.CreateSession(ctx, game.CreateSessionRequest{
		HostUserID: "someone", PackID: "pack", QuestionCount: 1,
	})
	require.NoError(t, err)
	require.NotEqual(t, sess.ID, other.ID)

	_, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: otherHost.ID, QuestionIndex: 0, Answer: "x",
	})
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestService_SubmitAnswer_HistoryFailureIsSwallowed(t *testing.T) {
	f, sess, host, _ := startedGame(t, 1)
	f.history.failRecord = true
	f.publisher.err = errBoom

	out, err := f.svc.SubmitAnswer(context.Background(), game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: f.correctAnswer(t, sess.ID, 0),
	})
	require.NoError(t, err)
	assert.True(t, out.IsCorrect)
}

func TestService_Advance(t *testing.T) {
	f, sess, _, player := startedGame(t, 2)
	ctx := context.Background()

	_, err := f.svc.Advance(ctx, sess.ID, "player")
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	f.clock.Advance(5 * time.Second)
	res, err := f.svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)
	assert.False(t, res.Completed)
	require.NotNil(t, res.Next)
	assert.Equal(t, 1, res.Next.Index)
	assert.Equal(t, 1, res.Session.CurrentQuestionIndex)
	assert.Len(t, res.Next.Options, 4)
	assert.Contains(t, res.Next.Options, res.Next.CorrectAnswer)

	prev, err := f.svc.GameQuestion(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, prev.EndedAt)
	assert.Equal(t, f.clock.Now(), *prev.EndedAt)

	_, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 0, Answer: "x",
	})
	assert.ErrorIs(t, err, game.ErrInvalidState)

	res, err = f.svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Nil(t, res.Next)
	assert.Equal(t, game.StatusCompleted, res.Session.Status)
	assert.Contains(t, f.publisher.types(), game.EventGameCompleted)

	_, err = f.svc.Advance(ctx, sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = f.svc.Cancel(ctx, sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, _, err = f.svc.Join(ctx, sess.JoinCode, "latecomer", "Eve")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = f.svc.Start(ctx, sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 1, Answer: f.correctAnswer(t, sess.ID, 1),
	})
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestService_Advance_CommittedDespiteQuestionLoadFailure(t *testing.T) {
	f, sess, _, _ := startedGame(t, 2)
	ctx := context.Background()
	svc := f.serviceOver(&failingLedgerStore{Store: f.store, index: 1})
	before := len(f.publisher.types())

	res, err := svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Nil(t, res.Next)
	assert.Equal(t, 1, res.Session.CurrentQuestionIndex)
	assert.NotContains(t, f.publisher.types()[before:], game.EventQuestionStarted)

	current, err := f.svc.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.CurrentQuestionIndex)
	payload, err := f.svc.PresentQuestion(ctx, sess.ID, 1, "host")
	require.NoError(t, err)
	assert.Equal(t, 1, payload.Index)
}

func TestService_SubmitAnswer_LosesRaceWithAdvance(t *testing.T) {
	for _, questions := range []int{1, 2} {
		t.Run(fmt.Sprintf("%d questions", questions), func(t *testing.T) {
			f, sess, _, player := startedGame(t, questions)
			ctx := context.Background()
			correct := f.correctAnswer(t, sess.ID, 0)

			// the host moves on between the phase check and the write
			racing := f.serviceOver(&hookedStore{Store: f.store, beforeRecord: func() {
				_, err := f.svc.Advance(ctx, sess.ID, "host")
				require.NoError(t, err)
			}})

			_, err := racing.SubmitAnswer(ctx, game.SubmitAnswerRequest{
				SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 0, Answer: correct,
			})
			assert.ErrorIs(t, err, game.ErrInvalidState)

			res, err := f.svc.Results(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, questions == 1, res.Final)
			for _, p := range res.Participants {
				assert.Zero(t, p.Score, p.UserID)
			}
			assert.Zero(t, res.Questions[0].AnswerCount)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.create(t, 2, 2)

	_, err := f.svc.Cancel(ctx, sess.ID, "intruder")
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	cancelled, err := f.svc.Cancel(ctx, sess.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, game.StatusCancelled, cancelled.Status)

	for _, call := range []func() error{
		func() error { _, err := f.svc.Cancel(ctx, sess.ID, "host"); return err },
		func() error { _, err := f.svc.Start(ctx, sess.ID, "host"); return err },
		func() error { _, _, err := f.svc.Join(ctx, sess.JoinCode, "u9", ""); return err },
	} {
		assert.ErrorIs(t, call(), game.ErrInvalidState)
	}
}

func TestService_CancelActive(t *testing.T) {
	f, sess, host, _ := startedGame(t, 2)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, sess.ID, "host")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: "x",
	})
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = f.svc.Advance(ctx, sess.ID, "host")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	assert.Contains(t, f.publisher.types(), game.EventGameCancelled)
}

func TestService_PresentQuestion(t *testing.T) {
	f, sess, _, _ := startedGame(t, 2)
	ctx := context.Background()

	hostView, err := f.svc.PresentQuestion(ctx, sess.ID, 1, "host")
	require.NoError(t, err)
	assert.NotEmpty(t, hostView.CorrectAnswer)

	_, err = f.svc.PresentQuestion(ctx, sess.ID, 1, "player")
	assert.ErrorIs(t, err, game.ErrInvalidState)

	playerView, err := f.svc.PresentQuestion(ctx, sess.ID, 0, "player")
	require.NoError(t, err)
	assert.Empty(t, playerView.CorrectAnswer)
	assert.Len(t, playerView.Options, 4)

	_, err = f.svc.PresentQuestion(ctx, sess.ID, 0, "outsider")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestService_EndToEnd(t *testing.T) {
	f, sess, host, player := startedGame(t, 3)
	ctx := context.Background()

	assert.Equal(t, game.StatusActive, sess.Status)
	for i := 0; i < 3; i++ {
		_, err := f.svc.GameQuestion(ctx, sess.ID, i)
		require.NoError(t, err)
	}

	// question 0: host right, player wrong
	out, err := f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: f.correctAnswer(t, sess.ID, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, out.ScoreAwarded)
	out, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 0, Answer: "nope",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ScoreAwarded)

	_, err = f.svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)

	// question 1: only the player answers, after 6 seconds
	f.clock.Advance(6 * time.Second)
	out, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
		SessionID: sess.ID, ParticipantID: player.ID, QuestionIndex: 1, Answer: f.correctAnswer(t, sess.ID, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 800, out.ScoreAwarded)

	_, err = f.svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)

	snapshot, err := f.svc.Results(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, snapshot.Final)

	res, err := f.svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)
	require.True(t, res.Completed)

	results, err := f.svc.Results(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, results.Final)
	assert.Equal(t, game.StatusCompleted, results.Session.Status)

	require.Len(t, results.Participants, 2)
	assert.Equal(t, host.ID, results.Participants[0].ParticipantID)
	assert.Equal(t, 1000, results.Participants[0].Score)
	assert.Equal(t, 1, results.Participants[0].Rank)
	assert.Equal(t, 1, results.Participants[0].CorrectCount)
	assert.Equal(t, player.ID, results.Participants[1].ParticipantID)
	assert.Equal(t, 800, results.Participants[1].Score)
	assert.Equal(t, 2, results.Participants[1].Rank)

	require.Len(t, results.Questions, 3)
	q0, q1, q2 := results.Questions[0], results.Questions[1], results.Questions[2]
	assert.Equal(t, 2, q0.AnswerCount)
	assert.Equal(t, 1, q0.CorrectCount)
	assert.Equal(t, 50.0, q0.CorrectPercent)
	assert.Equal(t, 100.0, q0.AnsweredPercent)
	assert.Equal(t, 1, q1.AnswerCount)
	assert.Equal(t, 1, q1.CorrectCount)
	assert.Equal(t, 50.0, q1.AnsweredPercent)
	assert.Equal(t, 0, q2.AnswerCount)
	assert.Equal(t, 0.0, q2.CorrectPercent)
}

func TestService_ResultsTiesKeepJoinOrder(t *testing.T) {
	f, sess, host, player := startedGame(t, 1)
	ctx := context.Background()

	_, err := f.svc.Advance(ctx, sess.ID, "host")
	require.NoError(t, err)

	results, err := f.svc.Results(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, results.Participants, 2)
	assert.Equal(t, host.ID, results.Participants[0].ParticipantID)
	assert.Equal(t, player.ID, results.Participants[1].ParticipantID)
}

func TestService_QuestionPayloadShufflesOptions(t *testing.T) {
	f, sess, _, _ := startedGame(t, 1)
	ctx := context.Background()

	payload, err := f.svc.QuestionPayload(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		payload.CorrectAnswer,
		strings.Replace(payload.CorrectAnswer, "answer", "wrong", 1) + "-a",
		strings.Replace(payload.CorrectAnswer, "answer", "wrong", 1) + "-b",
		strings.Replace(payload.CorrectAnswer, "answer", "wrong", 1) + "-c",
	}, payload.Options)
	assert.Empty(t, payload.Public().CorrectAnswer)
}

type recordingRecorder struct {
	results []*game.Results
	err     error
}

func (r *recordingRecorder) RecordResults(_ context.Context, res *game.Results) error {
	r.results = append(r.results, res)
	return r.err
}

func TestService_CompletionRecordsResults(t *testing.T) {
	for _, recErr := range []error{nil, errors.New("redis down")} {
		recorder := &recordingRecorder{err: recErr}
		f := newFixture(t, func(o *game.ServiceOptions) { o.Recorder = recorder })
		f.addPack("pack", 1)
		ctx := context.Background()

		sess, host := f.create(t, 2, 1)
		_, err := f.svc.Start(ctx, sess.ID, "host")
		require.NoError(t, err)
		_, err = f.svc.SubmitAnswer(ctx, game.SubmitAnswerRequest{
			SessionID: sess.ID, ParticipantID: host.ID, QuestionIndex: 0, Answer: f.correctAnswer(t, sess.ID, 0),
		})
		require.NoError(t, err)

		res, err := f.svc.Advance(ctx, sess.ID, "host")
		require.NoError(t, err, "recorder failures must not fail the transition")
		assert.True(t, res.Completed)

		require.Len(t, recorder.results, 1)
		got := recorder.results[0]
		assert.True(t, got.Final)
		require.Len(t, got.Participants, 1)
		assert.Equal(t, 1000, got.Participants[0].Score)
	}
}
