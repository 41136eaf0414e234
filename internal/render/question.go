package render

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/testsession"
)

// Media is the optional attachment of a question. It is either a PhotoView or
// a VideoView; a question without media carries nil.
type Media interface {
	Kind() model.MediaKind
	media()
}

type PhotoView struct {
	Type model.MediaKind `json:"kind"`
	URL  string          `json:"url"`
	Alt  string          `json:"alt"`
}

func (PhotoView) Kind() model.MediaKind { return model.MediaKindPhoto }
func (PhotoView) media()                {}

type VideoView struct {
	Type     model.MediaKind `json:"kind"`
	URL      string          `json:"url"`
	Controls bool            `json:"controls"`
}

func (VideoView) Kind() model.MediaKind { return model.MediaKindVideo }
func (VideoView) media()                {}

// MediaFor builds the media variant of q, or nil when q has none.
func MediaFor(q model.Question) Media {
	if q.MediaURL == "" {
		return nil
	}
	switch q.MediaKind {
	case model.MediaKindPhoto:
		return PhotoView{Type: model.MediaKindPhoto, URL: q.MediaURL, Alt: fmt.Sprintf("Ilustrasi soal %d", q.OrderNum+1)}
	case model.MediaKindVideo:
		return VideoView{Type: model.MediaKindVideo, URL: q.MediaURL, Controls: true}
	default:
		return nil
	}
}

// OptionView is an answer option as the learner sees it. It never carries
// the correctness flag.
type OptionView struct {
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	HTML     string    `json:"html"`
	Selected bool      `json:"selected"`
}

// QuestionView is everything needed to draw the current question screen.
type QuestionView struct {
	SessionID      uuid.UUID                `json:"session_id"`
	AttemptID      uuid.UUID                `json:"attempt_id"`
	TestID         uuid.UUID                `json:"test_id"`
	TestTitle      string                   `json:"test_title"`
	QuestionID     uuid.UUID                `json:"question_id"`
	Number         int                      `json:"number"`
	PromptHTML     string                   `json:"prompt_html"`
	Media          Media                    `json:"media,omitempty"`
	Options        []OptionView             `json:"options"`
	Navigation     testsession.Navigation   `json:"navigation"`
	Timed          bool                     `json:"timed"`
	Remaining      int                      `json:"remaining_seconds"`
	RemainingClock string                   `json:"remaining_clock"`
	TimerState     testsession.TimerState   `json:"timer_state"`
	Completed      bool                     `json:"completed"`
	Reason         testsession.FinishReason `json:"finish_reason,omitempty"`
}

// Renderer builds learner-facing views.
type Renderer struct {
	md *Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{md: NewMarkdown()}
}

// Question renders the current question of snap.
func (r *Renderer) Question(snap testsession.Snapshot) QuestionView {
	q := snap.Question

	opts := make([]OptionView, 0, len(q.Options))
	for i, o := range q.Options {
		opts = append(opts, OptionView{
			ID:       o.ID,
			Label:    OptionLabel(i),
			HTML:     r.md.Inline(o.Text),
			Selected: snap.Selected != nil && *snap.Selected == o.ID,
		})
	}

	return QuestionView{
		SessionID:      snap.RunnerID,
		AttemptID:      snap.SessionID,
		TestID:         snap.Test.ID,
		TestTitle:      snap.Test.Title,
		QuestionID:     q.ID,
		Number:         snap.Navigation.Index + 1,
		PromptHTML:     r.md.Block(q.Prompt),
		Media:          MediaFor(q),
		Options:        opts,
		Navigation:     snap.Navigation,
		Timed:          snap.Test.DurationSeconds > 0,
		Remaining:      snap.Remaining,
		RemainingClock: Clock(time.Duration(snap.Remaining) * time.Second),
		TimerState:     snap.TimerState,
		Completed:      snap.Completed,
		Reason:         snap.Reason,
	}
}

// OptionLabel returns A, B, C ... for option position i.
func OptionLabel(i int) string {
	if i < 0 {
		return ""
	}
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%d", i+1)
}

// Clock formats d as mm:ss. Minutes are not wrapped into hours.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
