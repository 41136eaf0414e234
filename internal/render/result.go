package render

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/testsession"
)

// ReviewStatus marks how a single question was answered.
type ReviewStatus string

const (
	ReviewCorrect    ReviewStatus = "CORRECT"
	ReviewIncorrect  ReviewStatus = "INCORRECT"
	ReviewUnanswered ReviewStatus = "UNANSWERED"
)

type ReviewOption struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	HTML      string    `json:"html"`
	IsCorrect bool      `json:"is_correct"`
	Selected  bool      `json:"selected"`
}

// ReviewItem is one row of the answer review list.
type ReviewItem struct {
	Number          int            `json:"number"`
	QuestionID      uuid.UUID      `json:"question_id"`
	PromptHTML      string         `json:"prompt_html"`
	Options         []ReviewOption `json:"options"`
	CorrectAnswerID *uuid.UUID     `json:"correct_answer_id"`
	CorrectAnswer   string         `json:"correct_answer"`
	LearnerAnswerID *uuid.UUID     `json:"learner_answer_id"`
	LearnerAnswer   string         `json:"learner_answer"`
	Status          ReviewStatus   `json:"status"`
}

// ResultView is the score summary plus answer review shown after a test.
type ResultView struct {
	SessionID      uuid.UUID                `json:"session_id"`
	TestID         uuid.UUID                `json:"test_id"`
	TestTitle      string                   `json:"test_title"`
	Score          int                      `json:"score"`
	Total          int                      `json:"total"`
	Percentage     int                      `json:"percentage"`
	AnsweredCount  int                      `json:"answered_count"`
	PassingScore   *int                     `json:"passing_score,omitempty"`
	Passed         *bool                    `json:"passed,omitempty"`
	Band           testsession.GradeBand    `json:"band"`
	ElapsedSeconds int                      `json:"elapsed_seconds"`
	Elapsed        string                   `json:"elapsed"`
	Reason         testsession.FinishReason `json:"finish_reason"`
	FinishedAt     time.Time                `json:"finished_at"`
	Review         []ReviewItem             `json:"review"`
}

// Result renders a compiled result for testTitle.
func (r *Renderer) Result(testTitle string, res *testsession.Result) ResultView {
	view := ResultView{
		SessionID:      res.SessionID,
		TestID:         res.TestID,
		TestTitle:      testTitle,
		Score:          res.Score,
		Total:          res.Total,
		Percentage:     res.Percentage,
		AnsweredCount:  res.AnsweredCount,
		PassingScore:   res.PassingScore,
		Passed:         res.Passed,
		Band:           testsession.Band(res.Percentage),
		ElapsedSeconds: int(res.Elapsed / time.Second),
		Elapsed:        Clock(res.Elapsed),
		Reason:         res.Reason,
		FinishedAt:     res.FinishedAt,
		Review:         make([]ReviewItem, 0, len(res.Questions)),
	}

	for i, qr := range res.Questions {
		item := ReviewItem{
			Number:          i + 1,
			QuestionID:      qr.QuestionID,
			PromptHTML:      r.md.Block(qr.Prompt),
			LearnerAnswerID: qr.SelectedAnswerID,
			Options:         make([]ReviewOption, 0, len(qr.Options)),
		}

		for j, o := range qr.Options {
			selected := qr.SelectedAnswerID != nil && *qr.SelectedAnswerID == o.ID
			html := r.md.Inline(o.Text)
			item.Options = append(item.Options, ReviewOption{
				ID:        o.ID,
				Label:     OptionLabel(j),
				HTML:      html,
				IsCorrect: o.IsCorrect,
				Selected:  selected,
			})
			if o.IsCorrect && item.CorrectAnswerID == nil {
				id := o.ID
				item.CorrectAnswerID = &id
				item.CorrectAnswer = html
			}
			if selected {
				item.LearnerAnswer = html
			}
		}

		switch {
		case qr.SelectedAnswerID == nil:
			item.Status = ReviewUnanswered
		case qr.IsCorrect:
			item.Status = ReviewCorrect
		default:
			item.Status = ReviewIncorrect
		}

		view.Review = append(view.Review, item)
	}

	return view
}
