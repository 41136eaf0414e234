package model

import (
	"time"

	"github.com/google/uuid"
)

// TestResult is the persisted outcome of one finished session.
type TestResult struct {
	ID             int64             `json:"id"`
	SessionID      uuid.UUID         `json:"session_id"`
	TestID         uuid.UUID         `json:"test_id"`
	UserID         int               `json:"user_id"`
	Score          int               `json:"score"`
	Total          int               `json:"total"`
	Percentage     int               `json:"percentage"`
	Passed         *bool             `json:"passed,omitempty"`
	FinishReason   string            `json:"finish_reason"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Answers        map[string]string `json:"answers"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// TestResultRow is a result joined with the learner and test names for listings.
type TestResultRow struct {
	TestResult
	UserName  string `json:"user_name"`
	TestTitle string `json:"test_title"`
}

// SelectAnswerRequest is the payload for choosing an answer option.
type SelectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	AnswerID   string `json:"answer_id" binding:"required,uuid"`
}

// NavigateRequest moves the current question pointer.
type NavigateRequest struct {
	Action string `json:"action" binding:"required,oneof=next previous goto"`
	Index  *int   `json:"index" binding:"required_if=Action goto,omitempty,min=0"`
}

// SubmitRequest carries a complete answer map for stateless server grading.
type SubmitRequest struct {
	Answers        map[string]string `json:"answers" binding:"required"`
	ElapsedSeconds int               `json:"elapsed_seconds" binding:"min=0"`
}
