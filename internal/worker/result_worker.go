package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/config"
	"github.com/stemsi/exstem-testflow/internal/model"
)

const (
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ErrQueueEmpty is returned by Queue.Pop when nothing arrived in time.
var ErrQueueEmpty = errors.New("queue empty")

// Queue is the list the session service pushes finished results to.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Push(ctx context.Context, raw []byte) error
}

// RedisQueue is a Queue on a Redis list.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: config.WorkerKey.PersistResultsQueue}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	item, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrQueueEmpty
		}
		return "", err
	}
	if len(item) < 2 {
		return "", ErrQueueEmpty
	}
	return item[1], nil
}

func (q *RedisQueue) Push(ctx context.Context, raw []byte) error {
	return q.rdb.RPush(ctx, q.key, raw).Err()
}

// ResultWriter stores results in Postgres.
type ResultWriter interface {
	InsertBatch(ctx context.Context, batch []*model.TestResult) error
	Insert(ctx context.Context, res *model.TestResult) error
}

// ResultWorker drains the result queue into Postgres in batches.
type ResultWorker struct {
	queue     Queue
	store     ResultWriter
	batchSize int
	log       zerolog.Logger
}

func NewResultWorker(queue Queue, store ResultWriter, batchSize int, log zerolog.Logger) *ResultWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ResultWorker{
		queue:     queue,
		store:     store,
		batchSize: batchSize,
		log:       log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Int("batch_size", w.batchSize).Msg("ResultWorker started")

	batch := make([]*model.TestResult, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= ResultBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("remaining", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return
		default:
		}

		raw, err := w.queue.Pop(ctx, ResultPollTimeout)
		if err != nil {
			if !errors.Is(err, ErrQueueEmpty) && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Queue pop error")
				time.Sleep(ResultPollTimeout)
			}
			continue
		}

		var res model.TestResult
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			w.log.Error().Err(err).Msg("Invalid JSON payload, dropped")
			continue
		}
		batch = append(batch, &res)
	}
}

// flushSafe writes the batch in one statement and falls back to single
// inserts. Results that still fail go back on the queue unless the database
// rejected the row itself.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.TestResult) {
	if len(batch) == 0 {
		return
	}

	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Results persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, using fallback")

	for _, res := range batch {
		if err := w.store.Insert(ctx, res); err != nil {
			if permanent(err) {
				w.log.Error().Err(err).
					Str("session_id", res.SessionID.String()).
					Str("test_id", res.TestID.String()).
					Int("user_id", res.UserID).
					Msg("Result rejected by database, dropped")
				continue
			}
			w.log.Error().Err(err).Str("session_id", res.SessionID.String()).Msg("Insert failed, requeueing")
			raw, _ := json.Marshal(res)
			if err := w.queue.Push(ctx, raw); err != nil {
				w.log.Error().Err(err).Str("session_id", res.SessionID.String()).Msg("Requeue failed, result lost")
			}
		}
	}
}

// permanent reports whether retrying err can never succeed: data exceptions
// (class 22) and integrity violations (class 23), such as a result whose test
// or learner was deleted meanwhile.
func permanent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}
