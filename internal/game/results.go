package game

import (
	"context"
	"math"
	"sort"
)

// Results aggregates scores and per-question statistics from the ledger. Any status
// is accepted; only completed sessions yield Final results.
func (s *Service) Results(ctx context.Context, sessionID string) (res *Results, err error) {
	defer func() { s.metrics.observeOp("results", err) }()

	res, err = s.results(ctx, "get results", sessionID)
	if err != nil {
		return nil, err
	}
	if !res.Final {
		s.logger.Warn().
			Str("session_id", sessionID).
			Str("status", string(res.Session.Status)).
			Msg("results requested before completion; returning snapshot")
	}
	return res, nil
}

func (s *Service) results(ctx context.Context, op, sessionID string) (*Results, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "session %s", sessionID)
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "list participants")
	}
	questions, err := s.store.ListGameQuestions(ctx, sessionID)
	if err != nil {
		return nil, storeError(op, err, "list game questions")
	}

	return &Results{
		Session:      session,
		Final:        session.Status == StatusCompleted,
		Participants: rankParticipants(participants, questions),
		Questions:    summarizeQuestions(questions, len(participants)),
	}, nil
}

// rankParticipants orders by score descending. Equal scores keep join order, so the
// host wins ties against later joiners.
func rankParticipants(participants []Participant, questions []GameQuestion) []ParticipantResult {
	correct := make(map[string]int, len(participants))
	for _, gq := range questions {
		for pid, score := range gq.Scores {
			if score > 0 {
				correct[pid]++
			}
		}
	}

	rows := make([]ParticipantResult, len(participants))
	for i, p := range participants {
		rows[i] = ParticipantResult{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			IsHost:        p.IsHost,
			CorrectCount:  correct[p.ID],
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func summarizeQuestions(questions []GameQuestion, participantCount int) []QuestionSummary {
	summaries := make([]QuestionSummary, 0, len(questions))
	for _, gq := range questions {
		sum := QuestionSummary{
			Index:       gq.Index,
			QuestionID:  gq.QuestionID,
			AnswerCount: len(gq.Answers),
		}
		for _, score := range gq.Scores {
			if score > 0 {
				sum.CorrectCount++
			}
		}
		sum.CorrectPercent = percent(sum.CorrectCount, participantCount)
		sum.AnsweredPercent = percent(sum.AnswerCount, participantCount)
		summaries = append(summaries, sum)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Index < summaries[j].Index })
	return summaries
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(whole)) / 10
}

// recordResults hands final results to the configured recorder. Failures are logged.
func (s *Service) recordResults(ctx context.Context, sessionID string) {
	if s.recorder == nil {
		return
	}
	res, err := s.results(ctx, "record results", sessionID)
	if err == nil {
		err = s.recorder.RecordResults(ctx, res)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to record final results")
		s.metrics.sideEffectFailed("results_recorder")
	}
}
