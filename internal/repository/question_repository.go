package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// QuestionRepository handles questions and their answer options.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves all questions of a test with their options, both
// ordered by order_num.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.test_id, q.prompt, q.media_kind, q.media_url, q.order_num,
		        o.id, o.text, o.is_correct, o.order_num
		 FROM questions q
		 LEFT JOIN answer_options o ON o.question_id = q.id
		 WHERE q.test_id = $1
		 ORDER BY q.order_num, o.order_num`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var (
			q        model.Question
			optID    *uuid.UUID
			optText  *string
			optOK    *bool
			optOrder *int
		)
		if err := rows.Scan(&q.ID, &q.TestID, &q.Prompt, &q.MediaKind, &q.MediaURL, &q.OrderNum,
			&optID, &optText, &optOK, &optOrder); err != nil {
			return nil, err
		}

		n := len(questions)
		if n == 0 || questions[n-1].ID != q.ID {
			questions = append(questions, q)
			n++
		}
		if optID != nil {
			questions[n-1].Options = append(questions[n-1].Options, model.AnswerOption{
				ID:         *optID,
				QuestionID: q.ID,
				Text:       *optText,
				IsCorrect:  *optOK,
				OrderNum:   *optOrder,
			})
		}
	}
	return questions, rows.Err()
}

// ReplaceForTest deletes every question of testID and inserts qs in order,
// in one transaction. Generated ids are written back into qs.
func (r *QuestionRepository) ReplaceForTest(ctx context.Context, testID uuid.UUID, qs []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, testID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for i := range qs {
		q := &qs[i]
		q.TestID = testID
		q.OrderNum = i
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (test_id, prompt, media_kind, media_url, order_num)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			testID, q.Prompt, q.MediaKind, q.MediaURL, q.OrderNum,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}

		if err := insertOptions(ctx, tx, q); err != nil {
			return fmt.Errorf("insert options of question %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE tests SET updated_at = NOW() WHERE id = $1`, testID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertOptions(ctx context.Context, tx pgx.Tx, q *model.Question) error {
	batch := &pgx.Batch{}
	for j := range q.Options {
		o := &q.Options[j]
		o.QuestionID = q.ID
		o.OrderNum = j
		batch.Queue(
			`INSERT INTO answer_options (question_id, text, is_correct, order_num)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			q.ID, o.Text, o.IsCorrect, o.OrderNum,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&o.ID)
		})
	}
	return tx.SendBatch(ctx, batch).Close()
}
