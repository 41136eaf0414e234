package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// ResultRepository persists finished test results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Insert stores a single result. A result whose session was already stored
// is ignored.
func (r *ResultRepository) Insert(ctx context.Context, res *model.TestResult) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO test_results
		   (session_id, test_id, user_id, score, total, percentage, passed,
		    finish_reason, elapsed_seconds, answers, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id) DO NOTHING`,
		res.SessionID, res.TestID, res.UserID, res.Score, res.Total, res.Percentage, res.Passed,
		res.FinishReason, res.ElapsedSeconds, answers, res.FinishedAt,
	)
	return err
}

// InsertBatch stores many results in one statement using UNNEST.
func (r *ResultRepository) InsertBatch(ctx context.Context, batch []*model.TestResult) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	sessionIDs := make([]uuid.UUID, n)
	testIDs := make([]uuid.UUID, n)
	userIDs := make([]int, n)
	scores := make([]int, n)
	totals := make([]int, n)
	percentages := make([]int, n)
	passed := make([]*bool, n)
	reasons := make([]string, n)
	elapsed := make([]int, n)
	answers := make([]string, n)
	finishedAts := make([]time.Time, n)

	for i, res := range batch {
		raw, err := json.Marshal(res.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers of %s: %w", res.SessionID, err)
		}
		sessionIDs[i] = res.SessionID
		testIDs[i] = res.TestID
		userIDs[i] = res.UserID
		scores[i] = res.Score
		totals[i] = res.Total
		percentages[i] = res.Percentage
		passed[i] = res.Passed
		reasons[i] = res.FinishReason
		elapsed[i] = res.ElapsedSeconds
		answers[i] = string(raw)
		finishedAts[i] = res.FinishedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO test_results
			(session_id, test_id, user_id, score, total, percentage, passed,
			 finish_reason, elapsed_seconds, answers, finished_at)
		SELECT u.session_id, u.test_id, u.user_id, u.score, u.total, u.percentage, u.passed,
		       u.finish_reason, u.elapsed_seconds, u.answers::jsonb, u.finished_at
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int[],
			$4::int[],
			$5::int[],
			$6::int[],
			$7::bool[],
			$8::text[],
			$9::int[],
			$10::text[],
			$11::timestamptz[]
		) AS u (session_id, test_id, user_id, score, total, percentage, passed,
		        finish_reason, elapsed_seconds, answers, finished_at)
		ON CONFLICT (session_id) DO NOTHING`,
		sessionIDs, testIDs, userIDs, scores, totals, percentages, passed,
		reasons, elapsed, answers, finishedAts,
	)
	return err
}

const resultColumns = `r.id, r.session_id, r.test_id, r.user_id, r.score, r.total, r.percentage,
	r.passed, r.finish_reason, r.elapsed_seconds, r.answers, r.finished_at, u.name, t.title`

func scanResultRow(row pgx.Row, out *model.TestResultRow) error {
	var raw []byte
	if err := row.Scan(&out.ID, &out.SessionID, &out.TestID, &out.UserID, &out.Score, &out.Total,
		&out.Percentage, &out.Passed, &out.FinishReason, &out.ElapsedSeconds, &raw, &out.FinishedAt,
		&out.UserName, &out.TestTitle); err != nil {
		return err
	}
	return json.Unmarshal(raw, &out.Answers)
}

func (r *ResultRepository) list(ctx context.Context, column string, value any, limit, offset int) ([]model.TestResultRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_results r WHERE r.`+column+` = $1`, value,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM test_results r
		 JOIN users u ON u.id = r.user_id
		 JOIN tests t ON t.id = r.test_id
		 WHERE r.`+column+` = $1
		 ORDER BY r.finished_at DESC
		 LIMIT $2 OFFSET $3`, value, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.TestResultRow{}
	for rows.Next() {
		var row model.TestResultRow
		if err := scanResultRow(rows, &row); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// ListByUser returns a learner's results, newest first.
func (r *ResultRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.TestResultRow, int, error) {
	return r.list(ctx, "user_id", userID, limit, offset)
}

// ListByTest returns every learner's results for a test, newest first.
func (r *ResultRepository) ListByTest(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.TestResultRow, int, error) {
	return r.list(ctx, "test_id", testID, limit, offset)
}
