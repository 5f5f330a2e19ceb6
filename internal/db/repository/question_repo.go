package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/trivia-live/internal/game"
	"github.com/gokatarajesh/trivia-live/internal/question"
)

// QuestionRepository reads curated packs and their distractors.
type QuestionRepository struct {
	db DBTX
}

var _ question.Repository = (*QuestionRepository)(nil)

func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListByPack returns the pack's questions in authoring order.
func (r *QuestionRepository) ListByPack(ctx context.Context, packID string) ([]game.Question, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, pack_id, text, correct_answer FROM questions
		WHERE pack_id = $1
		ORDER BY created_at, id`, packID)
	if err != nil {
		return nil, mapError(err, "list pack %s", packID)
	}
	qs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[game.Question])
	if err != nil {
		return nil, mapError(err, "scan pack %s", packID)
	}
	return qs, nil
}

// Get fetches one question.
func (r *QuestionRepository) Get(ctx context.Context, questionID string) (*game.Question, error) {
	var q game.Question
	err := r.db.QueryRow(ctx,
		`SELECT id, pack_id, text, correct_answer FROM questions WHERE id = $1`, questionID).
		Scan(&q.ID, &q.PackID, &q.Text, &q.CorrectAnswer)
	if err != nil {
		return nil, mapError(err, "question %s", questionID)
	}
	return &q, nil
}

// IncorrectAnswers returns the distractors of a question.
func (r *QuestionRepository) IncorrectAnswers(ctx context.Context, questionID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT answer FROM incorrect_answers WHERE question_id = $1 ORDER BY id`, questionID)
	if err != nil {
		return nil, mapError(err, "distractors of %s", questionID)
	}
	answers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err, "scan distractors of %s", questionID)
	}
	return answers, nil
}

// PackImport is a pack with its questions as authored in a seed file.
type PackImport struct {
	ID        string
	Name      string
	Questions []QuestionImport
}

// QuestionImport is one question and its distractors.
type QuestionImport struct {
	ID               string
	Text             string
	CorrectAnswer    string
	IncorrectAnswers []string
}

// ImportPacks upserts packs and replaces their questions in one transaction.
func ImportPacks(ctx context.Context, db TxBeginner, packs []PackImport) error {
	return inTx(ctx, db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range packs {
			batch.Queue(`
				INSERT INTO packs (id, name) VALUES ($1, $2)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, p.ID, p.Name)
			batch.Queue(`DELETE FROM questions WHERE pack_id = $1`, p.ID)
			for _, q := range p.Questions {
				batch.Queue(`
					INSERT INTO questions (id, pack_id, text, correct_answer)
					VALUES ($1, $2, $3, $4)`, q.ID, p.ID, q.Text, q.CorrectAnswer)
				for _, answer := range q.IncorrectAnswers {
					batch.Queue(`INSERT INTO incorrect_answers (question_id, answer) VALUES ($1, $2)`, q.ID, answer)
				}
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return mapError(err, "import %d packs", len(packs))
		}
		return nil
	})
}
