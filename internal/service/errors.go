package service

import "errors"

// Catalog errors.
var (
	ErrTestNotFound     = errors.New("test not found")
	ErrTestUnavailable  = errors.New("test definition could not be loaded")
	ErrTestNotPublished = errors.New("test status is not PUBLISHED")
	ErrTestNotDraft     = errors.New("test status is not DRAFT")
	ErrNoQuestions      = errors.New("test has no questions")
	ErrInvalidAnswerKey = errors.New("every question needs exactly one correct option")
)

// Session errors.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotSessionOwner     = errors.New("session belongs to another user")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrSessionNotCompleted = errors.New("session not completed")
	ErrNotAllAnswered      = errors.New("not every question has an answer")
	ErrInvalidAnswer       = errors.New("question or answer does not belong to the test")
	ErrInvalidNavigation   = errors.New("navigation target out of range")
	ErrSubmissionFailed    = errors.New("result submission failed")
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)
