package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/config"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/response"
)

type resultStore interface {
	ListByUser(ctx context.Context, userID, limit, offset int) ([]model.TestResultRow, int, error)
	ListByTest(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.TestResultRow, int, error)
}

// ResultService queues finished results for persistence and serves result
// history.
type ResultService struct {
	rdb     *redis.Client
	results resultStore
	log     zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(rdb *redis.Client, results resultStore, log zerolog.Logger) *ResultService {
	return &ResultService{
		rdb:     rdb,
		results: results,
		log:     log.With().Str("component", "result_service").Logger(),
	}
}

// Enqueue pushes res onto the persistence queue drained by the result worker.
func (s *ResultService) Enqueue(ctx context.Context, res *model.TestResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	s.log.Debug().
		Str("session_id", res.SessionID.String()).
		Int("user_id", res.UserID).
		Msg("Result queued")
	return nil
}

// ListByUser pages through a learner's result history.
func (s *ResultService) ListByUser(ctx context.Context, userID, page, perPage int) ([]model.TestResultRow, *response.Pagination, error) {
	p := response.NewPage(page, perPage)
	rows, total, err := s.results.ListByUser(ctx, userID, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	return rows, p.Of(total), nil
}

// ListByTest pages through every result of a test.
func (s *ResultService) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]model.TestResultRow, *response.Pagination, error) {
	p := response.NewPage(page, perPage)
	rows, total, err := s.results.ListByTest(ctx, testID, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	return rows, p.Of(total), nil
}
