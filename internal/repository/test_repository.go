package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// TestRepository handles test catalog data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// TestFilter narrows catalog listings. Zero values mean no filter.
type TestFilter struct {
	Status   model.TestStatus
	Subject  string
	AuthorID int
}

const testColumns = `t.id, t.title, t.subject, t.description, t.difficulty, t.duration_seconds,
	t.passing_score, t.author_id, t.status, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id)`

func scanTest(row pgx.Row, t *model.Test) error {
	return row.Scan(&t.ID, &t.Title, &t.Subject, &t.Description, &t.Difficulty, &t.DurationSeconds,
		&t.PassingScore, &t.AuthorID, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.QuestionCount)
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	row := r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests t WHERE t.id = $1`, id)
	if err := scanTest(row, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns a page of tests matching f, newest first, and the total count.
func (r *TestRepository) List(ctx context.Context, f TestFilter, limit, offset int) ([]model.Test, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.Subject != "" {
		args = append(args, f.Subject)
		where = append(where, fmt.Sprintf("LOWER(t.subject) = LOWER($%d)", len(args)))
	}
	if f.AuthorID > 0 {
		args = append(args, f.AuthorID)
		where = append(where, fmt.Sprintf("t.author_id = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tests t`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM tests t%s ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d`,
		testColumns, clause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// ListPublishedIDs returns the ids of every published test.
// Used for cache prewarming on application startup.
func (r *TestRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM tests WHERE status = $1 ORDER BY created_at DESC`, model.TestStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new draft test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, subject, description, difficulty, duration_seconds, passing_score, author_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Subject, t.Description, t.Difficulty, t.DurationSeconds, t.PassingScore, t.AuthorID, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update writes the editable metadata of t.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, subject = $2, description = $3, difficulty = $4,
		     duration_seconds = $5, passing_score = $6, updated_at = NOW()
		 WHERE id = $7`,
		t.Title, t.Subject, t.Description, t.Difficulty, t.DurationSeconds, t.PassingScore, t.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus updates a test's status.
func (r *TestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tests SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a test with its questions and results.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
