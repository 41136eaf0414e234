package testsession

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	QuestionID       uuid.UUID            `json:"question_id"`
	Prompt           string               `json:"prompt"`
	Options          []model.AnswerOption `json:"options"`
	SelectedAnswerID *uuid.UUID           `json:"selected_answer_id"`
	IsCorrect        bool                 `json:"is_correct"`
}

// Result is the compiled summary of a finished attempt. It is built once and
// never modified afterwards.
type Result struct {
	SessionID     uuid.UUID        `json:"session_id"`
	TestID        uuid.UUID        `json:"test_id"`
	Score         int              `json:"score"`
	Total         int              `json:"total"`
	Percentage    int              `json:"percentage"`
	PassingScore  *int             `json:"passing_score,omitempty"`
	Passed        *bool            `json:"passed,omitempty"`
	AnsweredCount int              `json:"answered_count"`
	Elapsed       time.Duration    `json:"elapsed"`
	Reason        FinishReason     `json:"reason"`
	FinishedAt    time.Time        `json:"finished_at"`
	Questions     []QuestionResult `json:"questions"`
}

// Compile grades answers against the correctness flags held in def.
// Unanswered questions count as incorrect. A non-positive passing score
// leaves Passed unset.
func Compile(def *model.TestDefinition, answers map[uuid.UUID]uuid.UUID, startedAt, finishedAt time.Time) *Result {
	res := &Result{
		TestID:     def.ID,
		Total:      len(def.Questions),
		FinishedAt: finishedAt,
		Elapsed:    finishedAt.Sub(startedAt),
		Questions:  make([]QuestionResult, 0, len(def.Questions)),
	}
	if res.Elapsed < 0 {
		res.Elapsed = 0
	}

	for _, q := range def.Questions {
		qr := QuestionResult{
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Options:    append([]model.AnswerOption(nil), q.Options...),
		}

		if selected, ok := answers[q.ID]; ok {
			id := selected
			qr.SelectedAnswerID = &id
			res.AnsweredCount++
			if opt, ok := q.OptionByID(selected); ok && opt.IsCorrect {
				qr.IsCorrect = true
				res.Score++
			}
		}

		res.Questions = append(res.Questions, qr)
	}

	res.Percentage = Percentage(res.Score, res.Total)

	if def.PassingScore != nil && *def.PassingScore > 0 {
		threshold := *def.PassingScore
		passed := res.Percentage >= threshold
		res.PassingScore = &threshold
		res.Passed = &passed
	}

	return res
}

// Percentage returns score/total as a whole percent, rounded half away from zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// GradeBand is the presentation bucket for a percentage.
type GradeBand struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var (
	BandExcellent = GradeBand{Label: "excellent", Color: "green"}
	BandGood      = GradeBand{Label: "good", Color: "blue"}
	BandAverage   = GradeBand{Label: "average", Color: "yellow"}
	BandPoor      = GradeBand{Label: "poor", Color: "red"}
)

// Band maps a percentage onto one of four fixed grade bands.
func Band(percentage int) GradeBand {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 75:
		return BandGood
	case percentage >= 50:
		return BandAverage
	default:
		return BandPoor
	}
}
