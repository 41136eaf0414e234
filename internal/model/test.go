package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the lifecycle states of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// Difficulty is a catalog label shown next to a test.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Test is the metadata of a test in the catalog.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description"`
	Difficulty      Difficulty `json:"difficulty"`
	DurationSeconds int        `json:"duration_seconds"`
	PassingScore    *int       `json:"passing_score,omitempty"`
	QuestionCount   int        `json:"question_count"`
	AuthorID        int        `json:"author_id"`
	Status          TestStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TestDefinition is a test together with its ordered questions, including
// the correctness flags. It never leaves the server.
type TestDefinition struct {
	Test
	Questions []Question `json:"questions"`
}

// QuestionByID returns the question with the given id.
func (d *TestDefinition) QuestionByID(id uuid.UUID) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i], true
		}
	}
	return nil, false
}

// CreateTestRequest is the payload for creating a draft test.
type CreateTestRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Subject         string `json:"subject" binding:"required,min=2,max=100"`
	Description     string `json:"description" binding:"omitempty,max=2000"`
	Difficulty      string `json:"difficulty" binding:"required,oneof=EASY MEDIUM HARD"`
	DurationSeconds int    `json:"duration_seconds" binding:"min=0,max=28800"`
	PassingScore    *int   `json:"passing_score" binding:"omitempty,min=1,max=100"`
}

// UpdateTestRequest is the payload for updating a draft test.
type UpdateTestRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	Subject         string `json:"subject" binding:"omitempty,min=2,max=100"`
	Description     string `json:"description" binding:"omitempty,max=2000"`
	Difficulty      string `json:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD"`
	DurationSeconds *int   `json:"duration_seconds" binding:"omitempty,min=0,max=28800"`
	PassingScore    *int   `json:"passing_score" binding:"omitempty,min=1,max=100"`
}
