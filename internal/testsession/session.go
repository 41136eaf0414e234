// Package testsession implements the state of a single test attempt: answer
// tracking, navigation, the countdown timer and result compilation.
//
// Operations that are not allowed in the current state are ignored and report
// false. They never return errors.
package testsession

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// ErrNoQuestions is returned when a session is seeded from a definition
// without questions.
var ErrNoQuestions = errors.New("test definition has no questions")

// FinishReason records how a session reached completion.
type FinishReason string

const (
	FinishReasonSubmitted FinishReason = "SUBMITTED"
	FinishReasonExpired   FinishReason = "EXPIRED"
)

// Session is the in-memory state of one attempt. It is not safe for
// concurrent use; Runner serialises access.
type Session struct {
	id        uuid.UUID
	def       *model.TestDefinition
	index     int
	answers   map[uuid.UUID]uuid.UUID
	positions map[uuid.UUID]int
	startedAt time.Time
	now       func() time.Time

	completed  bool
	reason     FinishReason
	finishedAt time.Time
	result     *Result
}

// NewSession seeds an empty attempt for def, starting at now().
func NewSession(def *model.TestDefinition, now func() time.Time) (*Session, error) {
	if def == nil || len(def.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if now == nil {
		now = time.Now
	}

	positions := make(map[uuid.UUID]int, len(def.Questions))
	for i, q := range def.Questions {
		positions[q.ID] = i
	}

	return &Session{
		id:        uuid.New(),
		def:       def,
		answers:   make(map[uuid.UUID]uuid.UUID, len(def.Questions)),
		positions: positions,
		startedAt: now(),
		now:       now,
	}, nil
}

func (s *Session) ID() uuid.UUID                     { return s.id }
func (s *Session) Definition() *model.TestDefinition { return s.def }
func (s *Session) Index() int                        { return s.index }
func (s *Session) Total() int                        { return len(s.def.Questions) }
func (s *Session) StartedAt() time.Time              { return s.startedAt }
func (s *Session) Completed() bool                   { return s.completed }
func (s *Session) Reason() FinishReason              { return s.reason }
func (s *Session) Result() *Result                   { return s.result }

// Current returns the question at the current index.
func (s *Session) Current() *model.Question {
	return &s.def.Questions[s.index]
}

// AnswerFor returns the selected answer for a question, if any.
func (s *Session) AnswerFor(questionID uuid.UUID) (uuid.UUID, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// AnsweredCount is the number of questions with a selected answer.
func (s *Session) AnsweredCount() int {
	return len(s.answers)
}

// AllAnswered reports whether every question has a selected answer.
func (s *Session) AllAnswered() bool {
	return len(s.answers) == len(s.def.Questions)
}

// Answers returns a copy of the answer map.
func (s *Session) Answers() map[uuid.UUID]uuid.UUID {
	out := make(map[uuid.UUID]uuid.UUID, len(s.answers))
	for q, a := range s.answers {
		out[q] = a
	}
	return out
}

// SelectAnswer records answerID as the single selection for questionID,
// replacing any earlier selection. Ignored once the session is completed or
// when either id does not belong to the test.
func (s *Session) SelectAnswer(questionID, answerID uuid.UUID) bool {
	if s.completed {
		return false
	}
	pos, ok := s.positions[questionID]
	if !ok {
		return false
	}
	if _, ok := s.def.Questions[pos].OptionByID(answerID); !ok {
		return false
	}
	s.answers[questionID] = answerID
	return true
}

// GoTo moves to index. Out-of-range targets are ignored.
func (s *Session) GoTo(index int) bool {
	if s.completed || index < 0 || index >= len(s.def.Questions) {
		return false
	}
	s.index = index
	return true
}

func (s *Session) Next() bool     { return s.GoTo(s.index + 1) }
func (s *Session) Previous() bool { return s.GoTo(s.index - 1) }

// Finish completes the session when every question has been answered.
func (s *Session) Finish() (*Result, bool) {
	if s.completed || !s.AllAnswered() {
		return nil, false
	}
	return s.complete(FinishReasonSubmitted), true
}

// ForceFinish completes the session regardless of unanswered questions. A
// session that is already completed keeps its original result.
func (s *Session) ForceFinish() (*Result, bool) {
	if s.completed {
		return s.result, false
	}
	return s.complete(FinishReasonExpired), true
}

func (s *Session) complete(reason FinishReason) *Result {
	s.completed = true
	s.reason = reason
	s.finishedAt = s.now()

	res := Compile(s.def, s.answers, s.startedAt, s.finishedAt)
	res.SessionID = s.id
	res.Reason = reason
	s.result = res
	return res
}
