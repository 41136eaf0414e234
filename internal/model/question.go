package model

import (
	"github.com/google/uuid"
)

// MediaKind discriminates the optional media attached to a question.
type MediaKind string

const (
	MediaKindNone  MediaKind = ""
	MediaKindPhoto MediaKind = "PHOTO"
	MediaKindVideo MediaKind = "VIDEO"
)

// Question is a single test question with its ordered answer options.
type Question struct {
	ID        uuid.UUID      `json:"id"`
	TestID    uuid.UUID      `json:"test_id"`
	Prompt    string         `json:"prompt"`
	MediaKind MediaKind      `json:"media_kind,omitempty"`
	MediaURL  string         `json:"media_url,omitempty"`
	OrderNum  int            `json:"order_num"`
	Options   []AnswerOption `json:"options"`
}

// OptionByID returns the answer option with the given id.
func (q *Question) OptionByID(id uuid.UUID) (*AnswerOption, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// CorrectOption returns the first option flagged as correct.
func (q *Question) CorrectOption() (*AnswerOption, bool) {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// AnswerOption is one selectable answer. IsCorrect is withheld from learners
// until the session is graded.
type AnswerOption struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
	OrderNum   int       `json:"order_num"`
}

// OptionInput is one answer option in a question payload.
type OptionInput struct {
	Text      string `json:"text" binding:"required,min=1,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionInput is one question in a bulk replace payload.
type QuestionInput struct {
	Prompt    string        `json:"prompt" binding:"required,min=1,max=4000"`
	MediaKind string        `json:"media_kind" binding:"omitempty,oneof=PHOTO VIDEO"`
	MediaURL  string        `json:"media_url" binding:"required_with=MediaKind,omitempty,max=1000"`
	Options   []OptionInput `json:"options" binding:"required,min=2,max=10,dive"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a test's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}
