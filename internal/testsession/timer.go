package testsession

import (
	"fmt"
	"sync"
	"time"
)

// TickInterval is the period of the countdown.
const TickInterval = time.Second

// TimerState is the lifecycle state of a Timer.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerExpired
	TimerStopped
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "IDLE"
	case TimerRunning:
		return "RUNNING"
	case TimerExpired:
		return "EXPIRED"
	case TimerStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s TimerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TimerState) UnmarshalText(b []byte) error {
	for _, st := range []TimerState{TimerIdle, TimerRunning, TimerExpired, TimerStopped} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown timer state %q", b)
}

// Ticker is the subset of *time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker is the production TickerFunc backed by time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Timer counts a session's remaining seconds down one tick at a time and
// calls onExpire when it reaches zero. The ticker goroutine is owned by the
// Timer and released by Stop or expiry.
type Timer struct {
	mu        sync.Mutex
	duration  int
	remaining int
	state     TimerState
	newTicker TickerFunc

	stop chan struct{}
	done chan struct{}
}

// NewTimer builds an idle timer. A non-positive duration makes the timer a
// no-op: the session is untimed.
func NewTimer(durationSeconds int, newTicker TickerFunc) *Timer {
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	return &Timer{
		duration:  durationSeconds,
		remaining: durationSeconds,
		newTicker: newTicker,
	}
}

// Start moves Idle to Running. onTick receives the remaining seconds after
// every decrement; onExpire runs once when the countdown hits zero. Both are
// called from the timer goroutine without the timer lock held.
func (t *Timer) Start(onTick func(remaining int), onExpire func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerIdle || t.duration <= 0 {
		return false
	}

	t.remaining = t.duration
	t.state = TimerRunning
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(t.newTicker(TickInterval), t.stop, t.done, onTick, onExpire)
	return true
}

func (t *Timer) run(tk Ticker, stop <-chan struct{}, done chan<- struct{}, onTick func(int), onExpire func()) {
	defer close(done)
	defer tk.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tk.C():
			remaining, running, expired := t.tick()
			if !running {
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
			if expired {
				if onExpire != nil {
					onExpire()
				}
				return
			}
		}
	}
}

func (t *Timer) tick() (remaining int, running, expired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerRunning {
		return t.remaining, false, false
	}
	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.state = TimerExpired
		return 0, true, true
	}
	return t.remaining, true, false
}

// Stop halts a running countdown and waits for its goroutine to exit, so no
// callback fires after Stop returns. Calling Stop from inside onExpire is
// allowed; it does not wait in that case. Stop is idempotent.
func (t *Timer) Stop() {
	t.mu.Lock()
	var done chan struct{}
	switch t.state {
	case TimerRunning:
		t.state = TimerStopped
		close(t.stop)
		done = t.done
	case TimerIdle:
		t.state = TimerStopped
	}
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Remaining returns the seconds left on the countdown.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// State returns the current lifecycle state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Duration returns the configured countdown length in seconds.
func (t *Timer) Duration() int {
	return t.duration
}
