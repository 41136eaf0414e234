package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// DashboardCounts are the headline numbers of the admin dashboard.
type DashboardCounts struct {
	Learners  int `json:"learners"`
	Tests     int `json:"tests"`
	Questions int `json:"questions"`
	Results   int `json:"results"`
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (DashboardCounts, error) {
	var c DashboardCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = $1),
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM test_results)`,
		model.RoleLearner,
	).Scan(&c.Learners, &c.Tests, &c.Questions, &c.Results)
	return c, err
}

// GetTestStatusCounts retrieves the distribution of tests by status.
func (r *DashboardRepository) GetTestStatusCounts(ctx context.Context) (map[model.TestStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.TestStatus]int)
	for rows.Next() {
		var status model.TestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// GetPercentageHistogram returns how many results landed on each whole
// percentage.
func (r *DashboardRepository) GetPercentageHistogram(ctx context.Context) (map[int]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT percentage, COUNT(*) FROM test_results GROUP BY percentage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hist := make(map[int]int)
	for rows.Next() {
		var pct, count int
		if err := rows.Scan(&pct, &count); err != nil {
			return nil, err
		}
		hist[pct] = count
	}
	return hist, rows.Err()
}

// DashboardTestActivity summarizes the results of one test.
type DashboardTestActivity struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Subject           string     `json:"subject"`
	Attempts          int        `json:"attempts"`
	AveragePercentage *float64   `json:"average_percentage"`
	PassRate          *float64   `json:"pass_rate"`
	LastFinishedAt    *time.Time `json:"last_finished_at"`
}

// GetRecentTestActivity retrieves the N tests with the most recent results.
// Pass rate only counts results that carry a verdict.
func (r *DashboardRepository) GetRecentTestActivity(ctx context.Context, limit int) ([]DashboardTestActivity, error) {
	query := `
		SELECT
			t.id,
			t.title,
			t.subject,
			COUNT(r.id) AS attempts,
			AVG(r.percentage)::float8 AS average_percentage,
			(AVG(CASE WHEN r.passed THEN 1.0 WHEN NOT r.passed THEN 0.0 END) * 100)::float8 AS pass_rate,
			MAX(r.finished_at) AS last_finished_at
		FROM tests t
		JOIN test_results r ON r.test_id = t.id
		GROUP BY t.id, t.title, t.subject
		ORDER BY last_finished_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DashboardTestActivity
	for rows.Next() {
		var a DashboardTestActivity
		if err := rows.Scan(&a.ID, &a.Title, &a.Subject, &a.Attempts, &a.AveragePercentage, &a.PassRate, &a.LastFinishedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if out == nil {
		out = []DashboardTestActivity{}
	}
	return out, rows.Err()
}
