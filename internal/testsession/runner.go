package testsession

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// EventKind tags events published to runner subscribers.
type EventKind string

const (
	EventTick      EventKind = "tick"
	EventCompleted EventKind = "completed"
	EventRestarted EventKind = "restarted"
	EventClosed    EventKind = "closed"
)

// Event is pushed to subscribers whenever the runner changes on its own
// (timer ticks, expiry) or through a lifecycle action.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID uuid.UUID `json:"session_id"`
	Remaining int       `json:"remaining"`
	Result    *Result   `json:"result,omitempty"`
}

// Options configure how a Runner reads time and reports completion.
type Options struct {
	Now        func() time.Time
	NewTicker  TickerFunc
	OnComplete func(owner int, res *Result)
}

// Snapshot is a consistent copy of the runner's visible state.
type Snapshot struct {
	RunnerID   uuid.UUID
	SessionID  uuid.UUID
	Owner      int
	Test       model.Test
	Question   model.Question
	Selected   *uuid.UUID
	Answers    map[uuid.UUID]uuid.UUID
	Navigation Navigation
	Remaining  int
	TimerState TimerState
	StartedAt  time.Time
	Completed  bool
	Reason     FinishReason
	Result     *Result
}

// Runner owns one live Session and its Timer for the lifetime of a learner's
// test screen. All mutations go through its mutex, so timer ticks and user
// actions interleave but never overlap.
type Runner struct {
	id    uuid.UUID
	owner int
	def   *model.TestDefinition
	opts  Options

	mu       sync.Mutex
	session  *Session
	timer    *Timer
	closed   bool
	lastSeen time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewRunner seeds the first session for def and starts its timer.
func NewRunner(def *model.TestDefinition, owner int, opts Options) (*Runner, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewRealTicker
	}

	r := &Runner{
		id:    uuid.New(),
		owner: owner,
		def:   def,
		opts:  opts,
		subs:  make(map[int]chan Event),
	}

	sess, err := NewSession(def, opts.Now)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.session = sess
	r.timer = NewTimer(def.DurationSeconds, opts.NewTicker)
	r.lastSeen = opts.Now()
	r.startTimerLocked()
	r.mu.Unlock()

	return r, nil
}

func (r *Runner) ID() uuid.UUID     { return r.id }
func (r *Runner) Owner() int        { return r.owner }
func (r *Runner) TestID() uuid.UUID { return r.def.ID }

// startTimerLocked binds the timer callbacks to the current session so a
// timer that outlives its session can never touch the next one.
func (r *Runner) startTimerLocked() {
	sess, timer := r.session, r.timer
	timer.Start(
		func(remaining int) {
			r.publish(Event{Kind: EventTick, SessionID: sess.ID(), Remaining: remaining})
		},
		func() { r.expire(sess) },
	)
}

func (r *Runner) expire(sess *Session) {
	r.mu.Lock()
	if r.closed || r.session != sess {
		r.mu.Unlock()
		return
	}
	res, ok := sess.ForceFinish()
	r.mu.Unlock()

	if ok {
		r.completed(res)
	}
}

func (r *Runner) completed(res *Result) {
	if r.opts.OnComplete != nil {
		r.opts.OnComplete(r.owner, res)
	}
	r.publish(Event{Kind: EventCompleted, SessionID: res.SessionID, Result: res})
}

// touch records user activity. Caller holds r.mu.
func (r *Runner) touch() {
	r.lastSeen = r.opts.Now()
}

// Touch records activity that does not change the session, such as a read
// or a message from an attached stream.
func (r *Runner) Touch() {
	r.mu.Lock()
	r.touch()
	r.mu.Unlock()
}

// SelectAnswer forwards to the current session.
func (r *Runner) SelectAnswer(questionID, answerID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.touch()
	return r.session.SelectAnswer(questionID, answerID)
}

// GoTo forwards to the current session.
func (r *Runner) GoTo(index int) bool {
	return r.navigate(func(s *Session) bool { return s.GoTo(index) })
}

// Next forwards to the current session.
func (r *Runner) Next() bool {
	return r.navigate((*Session).Next)
}

// Previous forwards to the current session.
func (r *Runner) Previous() bool {
	return r.navigate((*Session).Previous)
}

func (r *Runner) navigate(move func(*Session) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.touch()
	return move(r.session)
}

// Finish completes the session when all questions are answered and stops
// the countdown.
func (r *Runner) Finish() (*Result, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false
	}
	r.touch()
	res, ok := r.session.Finish()
	timer := r.timer
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	timer.Stop()
	r.completed(res)
	return res, true
}

// ForceFinish completes the session immediately, as timer expiry would.
func (r *Runner) ForceFinish() (*Result, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false
	}
	r.touch()
	res, ok := r.session.ForceFinish()
	timer := r.timer
	r.mu.Unlock()

	if !ok {
		return res, false
	}
	timer.Stop()
	r.completed(res)
	return res, true
}

// Restart discards the current session and seeds a fresh one from the same
// definition. The previous timer is fully stopped before the new session
// exists.
func (r *Runner) Restart() bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	old := r.timer
	r.mu.Unlock()

	old.Stop()

	sess, err := NewSession(r.def, r.opts.Now)
	if err != nil {
		return false
	}

	r.mu.Lock()
	if r.closed || r.timer != old {
		// closed meanwhile, or a concurrent restart already replaced old
		r.mu.Unlock()
		return false
	}
	r.session = sess
	r.timer = NewTimer(r.def.DurationSeconds, r.opts.NewTicker)
	r.touch()
	r.startTimerLocked()
	r.mu.Unlock()

	r.publish(Event{Kind: EventRestarted, SessionID: sess.ID(), Remaining: r.def.DurationSeconds})
	return true
}

// Close releases the timer and detaches all subscribers. Further actions
// are ignored.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	timer := r.timer
	sessID := r.session.ID()
	r.mu.Unlock()

	timer.Stop()

	r.publish(Event{Kind: EventClosed, SessionID: sessID})

	r.subMu.Lock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.subMu.Unlock()
}

// Closed reports whether Close has been called.
func (r *Runner) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// LastSeen is the time of the most recent user action.
func (r *Runner) LastSeen() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// idleSince reports when the runner last saw activity, counting completion
// as activity, and whether its session is completed. It does not touch.
func (r *Runner) idleSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	since := r.lastSeen
	res := r.session.Result()
	if res != nil && res.FinishedAt.After(since) {
		since = res.FinishedAt
	}
	return since, r.session.Completed()
}

// Watched reports whether any stream is subscribed.
func (r *Runner) Watched() bool {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs) > 0
}

// Result returns the compiled result of the current session, or nil while
// it is still in progress.
func (r *Runner) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Result()
}

// Snapshot copies the visible state of the current session. Reading counts
// as activity.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	s := r.session
	cur := *s.Current()
	cur.Options = append([]model.AnswerOption(nil), cur.Options...)

	snap := Snapshot{
		RunnerID:   r.id,
		SessionID:  s.ID(),
		Owner:      r.owner,
		Test:       r.def.Test,
		Question:   cur,
		Answers:    s.Answers(),
		Navigation: Navigate(s),
		Remaining:  r.timer.Remaining(),
		TimerState: r.timer.State(),
		StartedAt:  s.StartedAt(),
		Completed:  s.Completed(),
		Reason:     s.Reason(),
		Result:     s.Result(),
	}
	if a, ok := s.AnswerFor(cur.ID); ok {
		snap.Selected = &a
	}
	return snap
}

// Subscribe registers a buffered event channel. The returned cancel func
// detaches it; the channel is closed on cancel or runner Close.
func (r *Runner) Subscribe() (<-chan Event, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	ch := make(chan Event, 16)
	if r.Closed() {
		close(ch)
		return ch, func() {}
	}

	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch

	return ch, func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if c, ok := r.subs[id]; ok {
			close(c)
			delete(r.subs, id)
		}
	}
}

// publish fans ev out without blocking; slow subscribers drop ticks.
func (r *Runner) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
