package testsession

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// newDefinition builds n questions with three options each; option 0 is correct.
func newDefinition(n, durationSeconds int) *model.TestDefinition {
	def := &model.TestDefinition{
		Test: model.Test{
			ID:              uuid.New(),
			Title:           "Sample",
			DurationSeconds: durationSeconds,
		},
	}
	for i := 0; i < n; i++ {
		q := model.Question{ID: uuid.New(), Prompt: fmt.Sprintf("Question %d", i+1), OrderNum: i}
		for j := 0; j < 3; j++ {
			q.Options = append(q.Options, model.AnswerOption{
				ID:         uuid.New(),
				QuestionID: q.ID,
				Text:       fmt.Sprintf("Option %d", j+1),
				IsCorrect:  j == 0,
				OrderNum:   j,
			})
		}
		def.Questions = append(def.Questions, q)
	}
	return def
}

func correct(q model.Question) uuid.UUID { return q.Options[0].ID }
func wrong(q model.Question) uuid.UUID   { return q.Options[1].ID }

// fakeClock hands out manually driven tickers and a settable wall clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

func (c *fakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire delivers one tick and fails the test if nobody is listening.
func (t *fakeTicker) Fire(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Time{}:
	case <-time.After(time.Second):
		tb.Fatal("ticker has no reader")
	}
}

// TryFire reports whether a reader accepted a tick within a short window.
func (t *fakeTicker) TryFire() bool {
	select {
	case t.ch <- time.Time{}:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}
