package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/trivia-live/internal/game/scoring"
)

const (
	defaultPlayerName      = "Player"
	playCountConcurrency   = 8
	maxDisplayNameLength   = 64
	defaultMaxParticipants = 8
)

// Service orchestrates the game session lifecycle, scoring and state transitions.
type Service struct {
	store         Store
	questions     QuestionSource
	history       HistoryStore
	identity      IdentityLookup
	publisher     Publisher
	selector      *Selector
	scoringEngine *scoring.Engine
	codes         *JoinCodeGenerator
	metrics       *Metrics
	recorder      ResultsRecorder
	now           func() time.Time
	shuffle       func(n int, swap func(i, j int))
	logger        zerolog.Logger
}

// ServiceOptions configures the game service.
type ServiceOptions struct {
	ScoringConfig    scoring.ScoringConfig
	HistoryPolicy    HistoryPolicy
	JoinCodeLength   int
	JoinCodeAttempts int
	Metrics          *Metrics
	Clock            func() time.Time
	// Recorder receives final results when a session completes. Optional.
	Recorder ResultsRecorder
}

// NewService creates a game service with all dependencies. identity and publisher may be nil.
func NewService(
	store Store,
	questions QuestionSource,
	history HistoryStore,
	identity IdentityLookup,
	publisher Publisher,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger = logger.With().Str("component", "game_service").Logger()

	return &Service{
		store:         store,
		questions:     questions,
		history:       history,
		identity:      identity,
		publisher:     publisher,
		selector:      NewSelector(questions, history, opts.HistoryPolicy, opts.Metrics, logger),
		scoringEngine: scoring.NewEngine(opts.ScoringConfig),
		codes:         NewJoinCodeGenerator(opts.JoinCodeLength, opts.JoinCodeAttempts),
		metrics:       opts.Metrics,
		recorder:      opts.Recorder,
		now:           clock,
		shuffle:       rand.Shuffle,
		logger:        logger,
	}
}

// CreateSession creates a pending session and its host participant.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (session *Session, host *Participant, err error) {
	const op = "create session"
	defer func() { s.metrics.observeOp("create", err) }()

	switch {
	case req.HostUserID == "":
		return nil, nil, newError(op, ErrInvalidInput, "host user id is required")
	case req.PackID == "":
		return nil, nil, newError(op, ErrInvalidInput, "pack id is required")
	case req.QuestionCount < 1:
		return nil, nil, newError(op, ErrInvalidInput, "question count must be at least 1")
	case req.TimeLimitSeconds < 0:
		return nil, nil, newError(op, ErrInvalidInput, "time limit must not be negative")
	}
	if req.MaxParticipants < 1 {
		req.MaxParticipants = defaultMaxParticipants
	}

	displayName := s.lookupDisplayName(ctx, req.HostUserID, DefaultDisplayName)
	taken := make(map[string]struct{})

	for attempt := 0; attempt < s.codes.maxAttempts; attempt++ {
		code, err := s.codes.Generate(ctx, s.store.JoinCodeInUse, taken)
		if err != nil {
			if errors.Is(err, ErrJoinCodeExhausted) {
				s.logger.Error().Err(err).Str("host_user_id", req.HostUserID).Msg("join code generation exhausted")
			}
			return nil, nil, &Error{Op: op, Kind: ErrDependency, Detail: "generate join code", Err: err}
		}

		now := s.now()
		session = &Session{
			ID:                   uuid.NewString(),
			JoinCode:             code,
			HostUserID:           req.HostUserID,
			PackID:               req.PackID,
			Status:               StatusPending,
			MaxParticipants:      req.MaxParticipants,
			QuestionCount:        req.QuestionCount,
			TimeLimitSeconds:     req.TimeLimitSeconds,
			CurrentQuestionIndex: 0,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		host = &Participant{
			ID:             uuid.NewString(),
			SessionID:      session.ID,
			UserID:         req.HostUserID,
			DisplayName:    displayName,
			IsHost:         true,
			JoinedAt:       now,
			LastActivityAt: now,
		}

		err = s.store.CreateSession(ctx, session, host)
		if errors.Is(err, ErrConflict) {
			// another session grabbed the code between check and insert
			taken[code] = struct{}{}
			continue
		}
		if err != nil {
			return nil, nil, storeError(op, err, "persist session")
		}

		s.logger.Info().
			Str("session_id", session.ID).
			Str("join_code", code).
			Str("host_user_id", req.HostUserID).
			Str("pack_id", req.PackID).
			Msg("game session created")
		return session, host, nil
	}

	s.logger.Error().Str("host_user_id", req.HostUserID).Msg("join code collisions exhausted attempts")
	return nil, nil, &Error{Op: op, Kind: ErrDependency, Detail: "generate join code", Err: ErrJoinCodeExhausted}
}

// Join adds a user to a pending session, or returns their existing seat on rejoin.
func (s *Service) Join(ctx context.Context, code, userID, displayName string) (session *Session, participant *Participant, err error) {
	const op = "join session"
	defer func() { s.metrics.observeOp("join", err) }()

	code = strings.ToUpper(strings.TrimSpace(code))
	displayName = normalizeDisplayName(displayName)
	if code == "" || userID == "" {
		return nil, nil, newError(op, ErrInvalidInput, "join code and user id are required")
	}

	session, err = s.store.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, nil, storeError(op, err, "join code %s", code)
	}
	if session.Status != StatusPending {
		return nil, nil, newError(op, ErrInvalidState, "session %s is %s and not accepting new players", session.ID, session.Status)
	}

	count, err := s.store.CountParticipants(ctx, session.ID)
	if err != nil {
		return nil, nil, storeError(op, err, "count participants of %s", session.ID)
	}
	if count >= session.MaxParticipants {
		return nil, nil, newError(op, ErrCapacityExceeded, "session %s has %d/%d participants", session.ID, count, session.MaxParticipants)
	}

	existing, err := s.store.GetParticipantByUser(ctx, session.ID, userID)
	switch {
	case err == nil:
		return session, s.rejoin(ctx, op, existing, displayName), nil
	case !errors.Is(err, ErrNotFound):
		return nil, nil, storeError(op, err, "lookup participant")
	}

	if displayName == "" {
		displayName = s.lookupDisplayName(ctx, userID, defaultPlayerName)
	}
	now := s.now()
	participant = &Participant{
		ID:             uuid.NewString(),
		SessionID:      session.ID,
		UserID:         userID,
		DisplayName:    displayName,
		JoinedAt:       now,
		LastActivityAt: now,
	}

	if err := s.store.AddParticipant(ctx, participant, session.MaxParticipants); err != nil {
		if errors.Is(err, ErrConflict) {
			// concurrent join by the same user won the insert
			existing, getErr := s.store.GetParticipantByUser(ctx, session.ID, userID)
			if getErr != nil {
				return nil, nil, storeError(op, getErr, "lookup participant after conflict")
			}
			return session, existing, nil
		}
		return nil, nil, storeError(op, err, "add participant to %s", session.ID)
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("user_id", userID).
		Str("participant_id", participant.ID).
		Int("participant_count", count+1).
		Msg("player joined session")
	s.publish(ctx, session.ID, EventParticipantJoined, participant)

	return session, participant, nil
}

func (s *Service) rejoin(ctx context.Context, op string, existing *Participant, displayName string) *Participant {
	if displayName == "" || displayName == existing.DisplayName {
		return existing
	}
	if err := s.store.UpdateDisplayName(ctx, existing.ID, displayName); err != nil {
		s.logger.Warn().Err(err).Str("participant_id", existing.ID).Str("op", op).Msg("failed to refresh display name on rejoin")
		s.metrics.sideEffectFailed("display_name")
		return existing
	}
	updated := *existing
	updated.DisplayName = displayName
	return &updated
}

// Start selects the session's questions, writes the ledger and makes question 0 live.
func (s *Service) Start(ctx context.Context, sessionID, hostUserID string) (session *Session, err error) {
	const op = "start session"
	defer func() { s.metrics.observeOp("start", err) }()

	session, err = s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", sessionID)
	}
	if session.HostUserID != hostUserID {
		return nil, newError(op, ErrUnauthorized, "user %s is not host of %s", hostUserID, sessionID)
	}
	if session.Status != StatusPending {
		return nil, newError(op, ErrInvalidState, "session %s is %s", sessionID, session.Status)
	}

	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "list participants")
	}
	if len(participants) == 0 {
		return nil, newError(op, ErrInvalidState, "session %s has no participants", sessionID)
	}
	userIDs := make([]string, len(participants))
	for i, p := range participants {
		userIDs[i] = p.UserID
	}

	selected, err := s.selector.Select(ctx, session.PackID, session.QuestionCount, userIDs)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, &Error{Op: op, Kind: ErrNoQuestions, Detail: "pack " + session.PackID}
	}
	if len(selected) < session.QuestionCount {
		s.logger.Info().
			Str("session_id", sessionID).
			Int("requested", session.QuestionCount).
			Int("available", len(selected)).
			Msg("pack has fewer questions than requested; reducing question count")
	}

	now := s.now()
	ledger := make([]GameQuestion, len(selected))
	for i, q := range selected {
		ledger[i] = GameQuestion{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			QuestionID: q.ID,
			Index:      i,
			Answers:    map[string]string{},
			Scores:     map[string]int{},
		}
	}

	session, err = s.store.ActivateSession(ctx, ActivateParams{
		SessionID:     sessionID,
		QuestionCount: len(ledger),
		Questions:     ledger,
		StartedAt:     now,
	})
	if err != nil {
		return nil, storeError(op, err, "activate session %s", sessionID)
	}

	s.incrementPlayCounts(ctx, session.PackID, userIDs)
	s.prefetch(ctx, sessionID, ledger)

	s.logger.Info().
		Str("session_id", sessionID).
		Int("question_count", session.QuestionCount).
		Int("participant_count", len(participants)).
		Msg("game started")
	s.publish(ctx, sessionID, EventGameStarted, session)
	s.publishQuestionStarted(ctx, session, 0)

	return session, nil
}

// incrementPlayCounts bumps every participant's pack play count concurrently.
// Failures are logged and never block the start.
func (s *Service) incrementPlayCounts(ctx context.Context, packID string, userIDs []string) {
	var g errgroup.Group
	g.SetLimit(playCountConcurrency)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if err := s.history.IncrementPlayCount(ctx, userID, packID); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Str("pack_id", packID).Msg("failed to increment play count")
				s.metrics.sideEffectFailed("play_count")
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) prefetch(ctx context.Context, sessionID string, ledger []GameQuestion) {
	p, ok := s.questions.(Prefetcher)
	if !ok {
		return
	}
	ids := make([]string, len(ledger))
	for i, gq := range ledger {
		ids[i] = gq.QuestionID
	}
	if err := p.Prefetch(ctx, ids); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("question prefetch failed")
		s.metrics.sideEffectFailed("prefetch")
	}
}

// SubmitAnswer validates, records and scores one participant's answer to the current question.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (outcome *AnswerOutcome, err error) {
	const op = "submit answer"
	defer func() { s.metrics.observeOp("submit", err) }()

	session, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", req.SessionID)
	}
	if session.Status != StatusActive {
		return nil, newError(op, ErrInvalidState, "session %s is %s", session.ID, session.Status)
	}

	participant, err := s.store.GetParticipant(ctx, req.ParticipantID)
	if err != nil {
		return nil, storeError(op, err, "participant %s", req.ParticipantID)
	}
	if participant.SessionID != session.ID {
		return nil, newError(op, ErrNotFound, "participant %s is not in session %s", participant.ID, session.ID)
	}

	if req.QuestionIndex != session.CurrentQuestionIndex {
		return nil, newError(op, ErrInvalidState, "question %d is not current (current %d)", req.QuestionIndex, session.CurrentQuestionIndex)
	}
	gq, err := s.store.GetGameQuestion(ctx, session.ID, req.QuestionIndex)
	if err != nil {
		return nil, storeError(op, err, "question %d of %s", req.QuestionIndex, session.ID)
	}
	if gq.StartedAt == nil {
		return nil, newError(op, ErrInvalidState, "question %d has not started", gq.Index)
	}
	if gq.EndedAt != nil {
		return nil, newError(op, ErrInvalidState, "question %d is closed", gq.Index)
	}
	if gq.Answered(participant.ID) {
		return nil, newError(op, ErrConflict, "participant %s already answered question %d", participant.ID, gq.Index)
	}

	question, err := s.questions.Get(ctx, gq.QuestionID)
	if err != nil {
		return nil, storeError(op, err, "question %s", gq.QuestionID)
	}

	now := s.now()
	correct := answersMatch(req.Answer, question.CorrectAnswer)
	points := s.scoringEngine.Score(correct, gq.StartedAt, now, session.TimeLimitSeconds)

	// the store rechecks that the question is still open and current
	total, err := s.store.RecordAnswer(ctx, AnswerRecord{
		GameQuestionID: gq.ID,
		ParticipantID:  participant.ID,
		Answer:         req.Answer,
		Score:          points,
		At:             now,
	})
	if err != nil {
		return nil, storeError(op, err, "record answer for question %d", gq.Index)
	}

	if err := s.history.RecordAnswerEvent(ctx, participant.UserID, question.ID, correct); err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", participant.UserID).
			Str("question_id", question.ID).
			Msg("failed to record answer history")
		s.metrics.sideEffectFailed("answer_history")
	}

	s.metrics.answer(correct)
	s.logger.Info().
		Str("session_id", session.ID).
		Str("participant_id", participant.ID).
		Int("question_index", gq.Index).
		Bool("correct", correct).
		Int("score", points).
		Msg("answer submitted")
	s.publish(ctx, session.ID, EventAnswerSubmitted, AnswerSubmittedPayload{
		ParticipantID: participant.ID,
		QuestionIndex: gq.Index,
	})

	return &AnswerOutcome{
		IsCorrect:     correct,
		CorrectAnswer: question.CorrectAnswer,
		ScoreAwarded:  points,
		TotalScore:    total,
	}, nil
}

// SubmitAnswerAsUser resolves userID's seat in the session and submits for it.
func (s *Service) SubmitAnswerAsUser(ctx context.Context, sessionID, userID string, questionIndex int, answer string) (*AnswerOutcome, error) {
	participant, err := s.store.GetParticipantByUser(ctx, sessionID, userID)
	if err != nil {
		s.metrics.observeOp("submit", err)
		return nil, storeError("submit answer", err, "user %s in %s", userID, sessionID)
	}
	return s.SubmitAnswer(ctx, SubmitAnswerRequest{
		SessionID:     sessionID,
		ParticipantID: participant.ID,
		QuestionIndex: questionIndex,
		Answer:        answer,
	})
}

// EndCurrentQuestion closes the current question without moving on. Closing an
// already closed question is a no-op.
func (s *Service) EndCurrentQuestion(ctx context.Context, sessionID, hostUserID string) (gq *GameQuestion, err error) {
	const op = "end question"
	defer func() { s.metrics.observeOp("end_question", err) }()

	session, err := s.activeSessionForHost(ctx, op, sessionID, hostUserID)
	if err != nil {
		return nil, err
	}
	gq, err = s.store.GetGameQuestion(ctx, sessionID, session.CurrentQuestionIndex)
	if err != nil {
		return nil, storeError(op, err, "question %d of %s", session.CurrentQuestionIndex, sessionID)
	}
	if !gq.Open() {
		return gq, nil
	}

	now := s.now()
	if err := s.store.EndQuestion(ctx, gq.ID, now); err != nil {
		return nil, storeError(op, err, "close question %d", gq.Index)
	}
	gq.EndedAt = &now
	s.publishQuestionEnded(ctx, session.ID, gq)
	return gq, nil
}

// Advance closes the current question and opens the next one, or completes the
// session after the last question.
func (s *Service) Advance(ctx context.Context, sessionID, hostUserID string) (result *AdvanceResult, err error) {
	const op = "advance session"
	defer func() { s.metrics.observeOp("advance", err) }()

	session, err := s.activeSessionForHost(ctx, op, sessionID, hostUserID)
	if err != nil {
		return nil, err
	}
	current := session.CurrentQuestionIndex
	gq, err := s.store.GetGameQuestion(ctx, sessionID, current)
	if err != nil {
		return nil, storeError(op, err, "question %d of %s", current, sessionID)
	}
	wasOpen := gq.Open()

	now := s.now()
	next := current + 1
	if next >= session.QuestionCount {
		completed, err := s.store.CompleteSession(ctx, sessionID, current, now)
		if err != nil {
			return nil, storeError(op, err, "complete session at question %d", current)
		}
		if wasOpen {
			s.publishQuestionEnded(ctx, sessionID, gq)
		}
		s.logger.Info().Str("session_id", sessionID).Msg("game completed")
		s.publish(ctx, sessionID, EventGameCompleted, completed)
		s.recordResults(ctx, sessionID)
		return &AdvanceResult{Session: completed, Completed: true}, nil
	}

	advanced, err := s.store.AdvanceSession(ctx, sessionID, current, now)
	if err != nil {
		return nil, storeError(op, err, "advance from question %d", current)
	}
	if wasOpen {
		s.publishQuestionEnded(ctx, sessionID, gq)
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("question_index", next).
		Msg("advanced to next question")

	payload, err := s.nextPayload(ctx, op, advanced, next)
	if err != nil {
		// the transition is committed; report it without the question
		s.logger.Warn().Err(err).
			Str("session_id", sessionID).
			Int("question_index", next).
			Msg("failed to load next question after advancing")
		s.metrics.sideEffectFailed("question_started")
		return &AdvanceResult{Session: advanced}, nil
	}
	s.publish(ctx, sessionID, EventQuestionStarted, payload.Public())

	return &AdvanceResult{Session: advanced, Next: payload}, nil
}

func (s *Service) nextPayload(ctx context.Context, op string, session *Session, index int) (*QuestionPayload, error) {
	gq, err := s.store.GetGameQuestion(ctx, session.ID, index)
	if err != nil {
		return nil, storeError(op, err, "question %d of %s", index, session.ID)
	}
	return s.buildPayload(ctx, op, session, gq)
}

// Cancel ends a pending or active session for good.
func (s *Service) Cancel(ctx context.Context, sessionID, hostUserID string) (session *Session, err error) {
	const op = "cancel session"
	defer func() { s.metrics.observeOp("cancel", err) }()

	session, err = s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", sessionID)
	}
	if session.HostUserID != hostUserID {
		return nil, newError(op, ErrUnauthorized, "user %s is not host of %s", hostUserID, sessionID)
	}
	if session.Status.Terminal() {
		return nil, newError(op, ErrInvalidState, "session %s is already %s", sessionID, session.Status)
	}

	session, err = s.store.CancelSession(ctx, sessionID, s.now())
	if err != nil {
		return nil, storeError(op, err, "cancel %s", sessionID)
	}

	s.logger.Info().Str("session_id", sessionID).Msg("game cancelled")
	s.publish(ctx, sessionID, EventGameCancelled, session)
	return session, nil
}

// Session returns a session by id.
func (s *Service) Session(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError("get session", err, "session %s", sessionID)
	}
	return session, nil
}

// SessionByCode returns the most recent session using a join code.
func (s *Service) SessionByCode(ctx context.Context, code string) (*Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	session, err := s.store.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, storeError("get session by code", err, "join code %s", code)
	}
	return session, nil
}

// Participants lists a session's participants in join order.
func (s *Service) Participants(ctx context.Context, sessionID string) ([]Participant, error) {
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, storeError("list participants", err, "session %s", sessionID)
	}
	return participants, nil
}

// ParticipantForUser returns userID's seat in a session.
func (s *Service) ParticipantForUser(ctx context.Context, sessionID, userID string) (*Participant, error) {
	p, err := s.store.GetParticipantByUser(ctx, sessionID, userID)
	if err != nil {
		return nil, storeError("get participant", err, "user %s in %s", userID, sessionID)
	}
	return p, nil
}

// GameQuestion returns the ledger row at index.
func (s *Service) GameQuestion(ctx context.Context, sessionID string, index int) (*GameQuestion, error) {
	gq, err := s.store.GetGameQuestion(ctx, sessionID, index)
	if err != nil {
		return nil, storeError("get game question", err, "question %d of %s", index, sessionID)
	}
	return gq, nil
}

// Question returns a canonical question by id.
func (s *Service) Question(ctx context.Context, questionID string) (*Question, error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return nil, storeError("get question", err, "question %s", questionID)
	}
	return q, nil
}

// QuestionPayload composes the question at index with shuffled options. The option
// order is not persisted and differs between calls.
func (s *Service) QuestionPayload(ctx context.Context, sessionID string, index int) (*QuestionPayload, error) {
	const op = "question payload"
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", sessionID)
	}
	gq, err := s.store.GetGameQuestion(ctx, sessionID, index)
	if err != nil {
		return nil, storeError(op, err, "question %d of %s", index, sessionID)
	}
	return s.buildPayload(ctx, op, session, gq)
}

// PresentQuestion returns the question at index as userID may see it: the host gets
// the full payload, other participants only started questions without the answer.
func (s *Service) PresentQuestion(ctx context.Context, sessionID string, index int, userID string) (*QuestionPayload, error) {
	const op = "present question"
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", sessionID)
	}
	if _, err := s.store.GetParticipantByUser(ctx, sessionID, userID); err != nil {
		return nil, storeError(op, err, "user %s in %s", userID, sessionID)
	}
	gq, err := s.store.GetGameQuestion(ctx, sessionID, index)
	if err != nil {
		return nil, storeError(op, err, "question %d of %s", index, sessionID)
	}
	isHost := session.HostUserID == userID
	if !isHost && gq.StartedAt == nil {
		return nil, newError(op, ErrInvalidState, "question %d has not started", index)
	}

	payload, err := s.buildPayload(ctx, op, session, gq)
	if err != nil {
		return nil, err
	}
	if !isHost && gq.EndedAt == nil {
		public := payload.Public()
		return &public, nil
	}
	return payload, nil
}

func (s *Service) buildPayload(ctx context.Context, op string, session *Session, gq *GameQuestion) (*QuestionPayload, error) {
	question, err := s.questions.Get(ctx, gq.QuestionID)
	if err != nil {
		return nil, storeError(op, err, "question %s", gq.QuestionID)
	}
	distractors, err := s.questions.IncorrectAnswers(ctx, gq.QuestionID)
	if err != nil {
		return nil, storeError(op, err, "incorrect answers for %s", gq.QuestionID)
	}

	options := make([]string, 0, len(distractors)+1)
	options = append(options, question.CorrectAnswer)
	options = append(options, distractors...)
	s.shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return &QuestionPayload{
		SessionID:        session.ID,
		GameQuestionID:   gq.ID,
		QuestionID:       question.ID,
		Index:            gq.Index,
		QuestionCount:    session.QuestionCount,
		Text:             question.Text,
		Options:          options,
		CorrectAnswer:    question.CorrectAnswer,
		TimeLimitSeconds: session.TimeLimitSeconds,
		StartedAt:        gq.StartedAt,
	}, nil
}

func (s *Service) activeSessionForHost(ctx context.Context, op, sessionID, hostUserID string) (*Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", sessionID)
	}
	if session.HostUserID != hostUserID {
		return nil, newError(op, ErrUnauthorized, "user %s is not host of %s", hostUserID, sessionID)
	}
	if session.Status != StatusActive {
		return nil, newError(op, ErrInvalidState, "session %s is %s", sessionID, session.Status)
	}
	return session, nil
}

// lookupDisplayName never fails: lookup errors and empty names yield fallback.
func (s *Service) lookupDisplayName(ctx context.Context, userID, fallback string) string {
	if s.identity == nil {
		return fallback
	}
	name, err := s.identity.DisplayName(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("display name lookup failed")
			s.metrics.sideEffectFailed("display_name")
		}
		return fallback
	}
	if name = normalizeDisplayName(name); name == "" {
		return fallback
	}
	return name
}

func (s *Service) publish(ctx context.Context, sessionID, eventType string, payload any) {
	evt := Event{
		Type:       eventType,
		SessionID:  sessionID,
		Payload:    payload,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, sessionID, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("session_id", sessionID).
			Str("event", eventType).
			Msg("failed to publish event")
		s.metrics.sideEffectFailed("notify")
	}
}

func (s *Service) publishQuestionStarted(ctx context.Context, session *Session, index int) {
	gq, err := s.store.GetGameQuestion(ctx, session.ID, index)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Int("question_index", index).Msg("failed to load started question for broadcast")
		return
	}
	payload, err := s.buildPayload(ctx, "broadcast question", session, gq)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Int("question_index", index).Msg("failed to build started question for broadcast")
		return
	}
	s.publish(ctx, session.ID, EventQuestionStarted, payload.Public())
}

func (s *Service) publishQuestionEnded(ctx context.Context, sessionID string, gq *GameQuestion) {
	payload := QuestionEndedPayload{QuestionIndex: gq.Index}
	if q, err := s.questions.Get(ctx, gq.QuestionID); err == nil {
		payload.CorrectAnswer = q.CorrectAnswer
	}
	s.publish(ctx, sessionID, EventQuestionEnded, payload)
}

func answersMatch(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

func normalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxDisplayNameLength {
		name = string(runes[:maxDisplayNameLength])
	}
	return name
}
