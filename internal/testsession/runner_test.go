package testsession

import (
	"sync"
	"testing"
	"time"
)

type completions struct {
	mu      sync.Mutex
	results []*Result
	ch      chan *Result
}

func newCompletions() *completions {
	return &completions{ch: make(chan *Result, 8)}
}

func (c *completions) record(_ int, res *Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	c.ch <- res
}

func (c *completions) wait(t *testing.T) *Result {
	t.Helper()
	select {
	case res := <-c.ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

func (c *completions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func TestRunner_TimerExpiryCompilesPartialResult(t *testing.T) {
	clock := newFakeClock()
	done := newCompletions()
	def := newDefinition(5, 60)

	r, err := NewRunner(def, 7, Options{Now: clock.Now, NewTicker: clock.NewTicker, OnComplete: done.record})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i := 0; i < 3; i++ {
		q := def.Questions[i]
		if !r.SelectAnswer(q.ID, correct(q)) {
			t.Fatalf("select %d rejected", i)
		}
	}

	tk := clock.Ticker(0)
	for i := 0; i < 60; i++ {
		clock.Advance(time.Second)
		tk.Fire(t)
	}

	res := done.wait(t)
	snap := r.Snapshot()

	if !snap.Completed || snap.Reason != FinishReasonExpired {
		t.Fatalf("completed=%v reason=%s, want expired completion", snap.Completed, snap.Reason)
	}
	if res.Total != 5 || res.Score != 3 || res.AnsweredCount != 3 {
		t.Fatalf("result %d/%d answered %d, want 3/5 answered 3", res.Score, res.Total, res.AnsweredCount)
	}
	for _, i := range []int{3, 4} {
		if res.Questions[i].IsCorrect {
			t.Errorf("unanswered question %d marked correct", i+1)
		}
	}
	if snap.Navigation.AnsweredCount != 3 {
		t.Errorf("answeredCount = %d, want 3", snap.Navigation.AnsweredCount)
	}
	if res.Elapsed != 60*time.Second {
		t.Errorf("elapsed = %s, want 1m0s", res.Elapsed)
	}
	if snap.TimerState != TimerExpired || snap.Remaining != 0 {
		t.Errorf("timer %s remaining %d, want EXPIRED 0", snap.TimerState, snap.Remaining)
	}

	q := def.Questions[4]
	if r.SelectAnswer(q.ID, correct(q)) {
		t.Error("answer accepted after expiry")
	}
}

func TestRunner_FinishStopsTimer(t *testing.T) {
	clock := newFakeClock()
	done := newCompletions()
	def := newDefinition(3, 120)

	r, _ := NewRunner(def, 1, Options{Now: clock.Now, NewTicker: clock.NewTicker, OnComplete: done.record})
	defer r.Close()

	if _, ok := r.Finish(); ok {
		t.Fatal("Finish accepted with no answers")
	}
	for _, q := range def.Questions {
		r.SelectAnswer(q.ID, correct(q))
	}
	res, ok := r.Finish()
	if !ok {
		t.Fatal("Finish rejected with all answers")
	}
	if res.Score != 3 || res.Percentage != 100 {
		t.Errorf("score %d (%d%%), want 3 (100%%)", res.Score, res.Percentage)
	}
	if got := done.wait(t); got != res {
		t.Error("OnComplete received a different result")
	}

	tk := clock.Ticker(0)
	if !tk.Stopped() {
		t.Error("ticker still held after Finish")
	}
	if tk.TryFire() {
		t.Error("timer still ticking after Finish")
	}
	if r.Snapshot().TimerState != TimerStopped {
		t.Errorf("timer state = %s, want STOPPED", r.Snapshot().TimerState)
	}
	if done.count() != 1 {
		t.Errorf("OnComplete called %d times, want 1", done.count())
	}
}

func TestRunner_RestartDiscardsOldTimer(t *testing.T) {
	clock := newFakeClock()
	done := newCompletions()
	def := newDefinition(2, 5)

	r, _ := NewRunner(def, 1, Options{Now: clock.Now, NewTicker: clock.NewTicker, OnComplete: done.record})
	defer r.Close()

	first := r.Snapshot().SessionID
	for _, q := range def.Questions {
		r.SelectAnswer(q.ID, correct(q))
	}
	r.Next()
	if _, ok := r.Finish(); !ok {
		t.Fatal("Finish rejected")
	}
	done.wait(t)

	if !r.Restart() {
		t.Fatal("Restart rejected")
	}

	snap := r.Snapshot()
	if snap.SessionID == first {
		t.Fatal("Restart kept the old session")
	}
	if snap.Completed || snap.Navigation.AnsweredCount != 0 || snap.Navigation.Index != 0 {
		t.Fatalf("fresh session not empty: completed=%v answered=%d index=%d",
			snap.Completed, snap.Navigation.AnsweredCount, snap.Navigation.Index)
	}
	if snap.Remaining != 5 || snap.TimerState != TimerRunning {
		t.Errorf("new timer %s remaining %d, want RUNNING 5", snap.TimerState, snap.Remaining)
	}

	old := clock.Ticker(0)
	for i := 0; i < 10; i++ {
		if old.TryFire() {
			t.Fatal("discarded timer still ticking")
		}
	}
	if r.Snapshot().Completed {
		t.Fatal("stale timer finished the new session")
	}
	if done.count() != 1 {
		t.Errorf("completions = %d, want 1", done.count())
	}
}

func TestRunner_RestartMidSessionCancelsRunningTimer(t *testing.T) {
	clock := newFakeClock()
	done := newCompletions()
	def := newDefinition(2, 3)

	r, _ := NewRunner(def, 1, Options{Now: clock.Now, NewTicker: clock.NewTicker, OnComplete: done.record})
	defer r.Close()

	old := clock.Ticker(0)
	old.Fire(t)
	old.Fire(t)

	r.Restart()

	if !old.Stopped() || old.TryFire() {
		t.Fatal("old timer not released by Restart")
	}

	fresh := clock.Ticker(1)
	fresh.Fire(t)
	fresh.Fire(t)
	if r.Snapshot().Completed {
		t.Fatal("new session expired early; old ticks leaked into it")
	}
	fresh.Fire(t)
	res := done.wait(t)
	if res.Reason != FinishReasonExpired || res.SessionID != r.Snapshot().SessionID {
		t.Errorf("unexpected completion %+v", res)
	}
}

func TestRunner_CloseReleasesTimerAndSubscribers(t *testing.T) {
	clock := newFakeClock()
	r, _ := NewRunner(newDefinition(1, 30), 1, Options{Now: clock.Now, NewTicker: clock.NewTicker})
	events, cancel := r.Subscribe()
	defer cancel()

	r.Close()

	if !clock.Ticker(0).Stopped() {
		t.Error("ticker not released by Close")
	}
	if r.Restart() || r.Next() {
		t.Error("closed runner accepted actions")
	}

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 1 || kinds[0] != EventClosed {
		t.Errorf("events = %v, want [closed]", kinds)
	}

	r.Close() // idempotent
}

func TestRunner_SubscribeReceivesTicks(t *testing.T) {
	clock := newFakeClock()
	r, _ := NewRunner(newDefinition(1, 10), 1, Options{Now: clock.Now, NewTicker: clock.NewTicker})
	defer r.Close()

	events, cancel := r.Subscribe()
	clock.Ticker(0).Fire(t)

	select {
	case ev := <-events:
		if ev.Kind != EventTick || ev.Remaining != 9 {
			t.Errorf("event = %+v, want tick with 9 remaining", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick event")
	}

	cancel()
	if _, open := <-events; open {
		t.Error("channel still open after cancel")
	}
}

func TestRunner_UntimedNeverExpires(t *testing.T) {
	clock := newFakeClock()
	r, err := NewRunner(newDefinition(2, 0), 1, Options{Now: clock.Now, NewTicker: clock.NewTicker})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	snap := r.Snapshot()
	if snap.TimerState != TimerIdle || clock.TickerCount() != 0 {
		t.Errorf("untimed runner started a timer: %s", snap.TimerState)
	}
}

func TestRunner_SnapshotSelected(t *testing.T) {
	def := newDefinition(2, 0)
	r, _ := NewRunner(def, 1, Options{})
	defer r.Close()

	q := def.Questions[0]
	r.SelectAnswer(q.ID, wrong(q))

	snap := r.Snapshot()
	if snap.Selected == nil || *snap.Selected != wrong(q) {
		t.Fatal("snapshot does not carry the current selection")
	}
	if snap.Question.ID != q.ID {
		t.Errorf("current question = %v, want %v", snap.Question.ID, q.ID)
	}

	r.Next()
	if r.Snapshot().Selected != nil {
		t.Error("unanswered question shows a selection")
	}
}
