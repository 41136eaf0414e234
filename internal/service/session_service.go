package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/testsession"
)

// DefinitionSource loads the definition a session is seeded from.
type DefinitionSource interface {
	Definition(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error)
}

// ResultSink accepts finished results for persistence.
type ResultSink interface {
	Enqueue(ctx context.Context, res *model.TestResult) error
}

// Navigation actions accepted by Navigate.
const (
	NavNext     = "next"
	NavPrevious = "previous"
	NavGoTo     = "goto"
)

const submitTimeout = 5 * time.Second

// SessionService runs learners' test sessions in memory and hands finished
// results to the sink. Results the sink refused are kept and retried.
type SessionService struct {
	defs     DefinitionSource
	sink     ResultSink
	registry *testsession.Registry
	now      func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*model.TestResult
}

// NewSessionService creates a SessionService. opts.OnComplete is replaced;
// Now and NewTicker are kept so tests can drive time.
func NewSessionService(defs DefinitionSource, sink ResultSink, opts testsession.Options, log zerolog.Logger) *SessionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &SessionService{
		defs:    defs,
		sink:    sink,
		now:     opts.Now,
		log:     log.With().Str("component", "session_service").Logger(),
		pending: make(map[uuid.UUID]*model.TestResult),
	}
	opts.OnComplete = s.persist
	s.registry = testsession.NewRegistry(opts)
	return s
}

// Start seeds a fresh session of testID for userID, replacing any live
// session the user has on the same test.
func (s *SessionService) Start(ctx context.Context, userID int, testID uuid.UUID) (testsession.Snapshot, error) {
	def, err := s.defs.Definition(ctx, testID)
	if err != nil {
		return testsession.Snapshot{}, err
	}

	r, err := s.registry.Start(def, userID)
	if err != nil {
		if errors.Is(err, testsession.ErrNoQuestions) {
			return testsession.Snapshot{}, ErrNoQuestions
		}
		return testsession.Snapshot{}, err
	}

	s.log.Info().
		Str("session_id", r.ID().String()).
		Str("test_id", testID.String()).
		Int("user_id", userID).
		Int("duration_seconds", def.DurationSeconds).
		Msg("Session started")
	return r.Snapshot(), nil
}

// Runner returns the live runner sessionID if userID owns it.
func (s *SessionService) Runner(userID int, sessionID uuid.UUID) (*testsession.Runner, error) {
	r, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if r.Owner() != userID {
		return nil, ErrNotSessionOwner
	}
	return r, nil
}

// Get returns the current state of a session.
func (s *SessionService) Get(userID int, sessionID uuid.UUID) (testsession.Snapshot, error) {
	r, err := s.Runner(userID, sessionID)
	if err != nil {
		return testsession.Snapshot{}, err
	}
	return r.Snapshot(), nil
}

// SelectAnswer records an answer on the session.
func (s *SessionService) SelectAnswer(userID int, sessionID, questionID, answerID uuid.UUID) (testsession.Snapshot, error) {
	r, err := s.Runner(userID, sessionID)
	if err != nil {
		return testsession.Snapshot{}, err
	}
	if r.SelectAnswer(questionID, answerID) {
		return r.Snapshot(), nil
	}

	snap := r.Snapshot()
	if snap.Completed {
		return snap, ErrSessionCompleted
	}
	return snap, ErrInvalidAnswer
}

// Navigate moves the current question. next and previous at the edges, and
// any move after completion, leave the session unchanged. An out-of-range
// goto is reported as ErrInvalidNavigation.
func (s *SessionService) Navigate(userID int, sessionID uuid.UUID, action string, index int) (testsession.Snapshot, error) {
	r, err := s.Runner(userID, sessionID)
	if err != nil {
		return testsession.Snapshot{}, err
	}

	switch action {
	case NavNext:
		r.Next()
	case NavPrevious:
		r.Previous()
	case NavGoTo:
		if !r.GoTo(index) {
			snap := r.Snapshot()
			if !snap.Completed && (index < 0 || index >= snap.Navigation.Total) {
				return snap, ErrInvalidNavigation
			}
			return snap, nil
		}
	default:
		return testsession.Snapshot{}, fmt.Errorf("%w: unknown action %q", ErrInvalidNavigation, action)
	}
	return r.Snapshot(), nil
}

// Finish completes a fully answered session. Calling it again on a completed
// session returns the same result and retries a failed submission.
func (s *SessionService) Finish(userID int, sessionID uuid.UUID) (*testsession.Result, error) {
	r, err := s.Runner(userID, sessionID)
	if err != nil {
		return nil, err
	}

	if res, ok := r.Finish(); ok {
		if s.isPending(res.SessionID) {
			return res, ErrSubmissionFailed
		}
		return res, nil
	}

	snap := r.Snapshot()
	if !snap.Completed {
		return nil, ErrNotAllAnswered
	}
	if err := s.retry(snap.Result.SessionID); err != nil {
		return snap.Result, ErrSubmissionFailed
	}
	return snap.Result, nil
}

// Restart discards the session state and starts over on the same test.
func (s *SessionService) Restart(userID int, sessionID uuid.UUID) (testsession.Snapshot, error) {
	r, err := s.Runner(userID, sessionID)
	if err != nil {
		return testsession.Snapshot{}, err
	}
	if !r.Restart() {
		return testsession.Snapshot{}, ErrSessionNotFound
	}
	snap := r.Snapshot()
	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("attempt_id", snap.SessionID.String()).
		Msg("Session restarted")
	return snap, nil
}

// Result returns the compiled result and the test it belongs to.
func (s *SessionService) Result(userID int, sessionID uuid.UUID) (*testsession.Result, model.Test, error) {
	r, err := s.Runner(userID, sessionID)
	if err != nil {
		return nil, model.Test{}, err
	}
	snap := r.Snapshot()
	if !snap.Completed {
		return nil, snap.Test, ErrSessionNotCompleted
	}
	return snap.Result, snap.Test, nil
}

// Close tears a session down and releases its timer.
func (s *SessionService) Close(userID int, sessionID uuid.UUID) error {
	if _, err := s.Runner(userID, sessionID); err != nil {
		return err
	}
	s.registry.Remove(sessionID)
	return nil
}

// Submit grades an answer map without a live session, for clients that keep
// their own state. The map may be partial, as from a client whose time ran
// out; questions missing from it count as incorrect. Unknown question or
// answer ids are rejected. The test is returned alongside the result for
// presentation.
func (s *SessionService) Submit(ctx context.Context, userID int, testID uuid.UUID, answers map[string]string, elapsedSeconds int) (*testsession.Result, model.Test, error) {
	def, err := s.defs.Definition(ctx, testID)
	if err != nil {
		return nil, model.Test{}, err
	}

	parsed := make(map[uuid.UUID]uuid.UUID, len(answers))
	for qs, as := range answers {
		qid, err := uuid.Parse(qs)
		if err != nil {
			return nil, def.Test, ErrInvalidAnswer
		}
		aid, err := uuid.Parse(as)
		if err != nil {
			return nil, def.Test, ErrInvalidAnswer
		}
		q, ok := def.QuestionByID(qid)
		if !ok {
			return nil, def.Test, ErrInvalidAnswer
		}
		if _, ok := q.OptionByID(aid); !ok {
			return nil, def.Test, ErrInvalidAnswer
		}
		parsed[qid] = aid
	}

	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	if def.DurationSeconds > 0 && elapsedSeconds > def.DurationSeconds {
		elapsedSeconds = def.DurationSeconds
	}

	finished := s.now()
	res := testsession.Compile(def, parsed, finished.Add(-time.Duration(elapsedSeconds)*time.Second), finished)
	res.SessionID = uuid.New()
	res.Reason = testsession.FinishReasonSubmitted

	if err := s.sink.Enqueue(ctx, ToRecord(userID, res)); err != nil {
		s.log.Error().Err(err).Str("test_id", testID.String()).Int("user_id", userID).Msg("Submit failed")
		return res, def.Test, ErrSubmissionFailed
	}
	return res, def.Test, nil
}

// Live returns the number of sessions held in memory.
func (s *SessionService) Live() int {
	return s.registry.Len()
}

// RunReaper closes idle completed sessions and retries pending submissions every
// interval until ctx is done.
func (s *SessionService) RunReaper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.Reap(s.now(), idle); n > 0 {
				s.log.Info().Int("reaped", n).Int("live", s.registry.Len()).Msg("Idle sessions closed")
			}
			s.RetryPending()
		}
	}
}

// Pending returns the number of results waiting for a successful submission.
func (s *SessionService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown closes every live session.
func (s *SessionService) Shutdown() {
	s.registry.CloseAll()
}

// ToRecord converts a compiled result into its persisted form.
func ToRecord(userID int, res *testsession.Result) *model.TestResult {
	answers := make(map[string]string, res.AnsweredCount)
	for _, q := range res.Questions {
		if q.SelectedAnswerID != nil {
			answers[q.QuestionID.String()] = q.SelectedAnswerID.String()
		}
	}
	return &model.TestResult{
		SessionID:      res.SessionID,
		TestID:         res.TestID,
		UserID:         userID,
		Score:          res.Score,
		Total:          res.Total,
		Percentage:     res.Percentage,
		Passed:         res.Passed,
		FinishReason:   string(res.Reason),
		ElapsedSeconds: int(res.Elapsed / time.Second),
		Answers:        answers,
		FinishedAt:     res.FinishedAt,
	}
}

// persist is the completion hook of every runner.
func (s *SessionService) persist(owner int, res *testsession.Result) {
	rec := ToRecord(owner, res)

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if err := s.sink.Enqueue(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", res.SessionID.String()).
			Int("user_id", owner).
			Msg("Result submission failed, keeping for retry")
		s.mu.Lock()
		s.pending[res.SessionID] = rec
		s.mu.Unlock()
		return
	}

	s.log.Info().
		Str("attempt_id", res.SessionID.String()).
		Str("reason", string(res.Reason)).
		Int("score", res.Score).
		Int("total", res.Total).
		Msg("Session completed")
}

func (s *SessionService) isPending(attemptID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[attemptID]
	return ok
}

// retry resubmits one pending result. A result that is not pending is
// already submitted.
func (s *SessionService) retry(attemptID uuid.UUID) error {
	s.mu.Lock()
	rec, ok := s.pending[attemptID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := s.sink.Enqueue(ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.pending, attemptID)
	s.mu.Unlock()
	return nil
}

// RetryPending resubmits every result the sink refused earlier.
func (s *SessionService) RetryPending() {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.retry(id); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Pending result still not accepted")
		}
	}
}
