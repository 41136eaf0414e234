package testsession

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCompile_AllCorrect(t *testing.T) {
	def := newDefinition(3, 0)
	answers := map[uuid.UUID]uuid.UUID{}
	for _, q := range def.Questions {
		answers[q.ID] = correct(q)
	}
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	res := Compile(def, answers, start, start.Add(95*time.Second))

	if res.Score != 3 || res.Total != 3 || res.Percentage != 100 {
		t.Fatalf("got %d/%d (%d%%), want 3/3 (100%%)", res.Score, res.Total, res.Percentage)
	}
	if res.Elapsed != 95*time.Second {
		t.Errorf("elapsed = %s, want 1m35s", res.Elapsed)
	}
	if res.Passed != nil {
		t.Error("passed should be unset without a threshold")
	}
	for i, qr := range res.Questions {
		if !qr.IsCorrect {
			t.Errorf("question %d marked incorrect", i)
		}
		if qr.SelectedAnswerID == nil || *qr.SelectedAnswerID != correct(def.Questions[i]) {
			t.Errorf("question %d selected answer not carried over", i)
		}
	}
}

func TestCompile_UnansweredCountsAsIncorrect(t *testing.T) {
	def := newDefinition(5, 0)
	answers := map[uuid.UUID]uuid.UUID{
		def.Questions[0].ID: correct(def.Questions[0]),
		def.Questions[1].ID: wrong(def.Questions[1]),
		def.Questions[2].ID: correct(def.Questions[2]),
	}
	now := time.Now()

	res := Compile(def, answers, now, now)

	if res.Score != 2 || res.AnsweredCount != 3 || res.Total != 5 {
		t.Fatalf("score %d answered %d total %d, want 2/3/5", res.Score, res.AnsweredCount, res.Total)
	}
	if res.Percentage != 40 {
		t.Errorf("percentage = %d, want 40", res.Percentage)
	}
	for _, i := range []int{3, 4} {
		qr := res.Questions[i]
		if qr.IsCorrect || qr.SelectedAnswerID != nil {
			t.Errorf("question %d: unanswered should be incorrect with no selection", i)
		}
	}
}

func TestCompile_PassingThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		correct   int
		want      bool
	}{
		{name: "above", threshold: 50, correct: 3, want: true},
		{name: "exactly at threshold", threshold: 75, correct: 3, want: true},
		{name: "below", threshold: 80, correct: 3, want: false},
		{name: "zero correct", threshold: 1, correct: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := newDefinition(4, 0)
			threshold := tt.threshold
			def.PassingScore = &threshold
			answers := map[uuid.UUID]uuid.UUID{}
			for i := 0; i < tt.correct; i++ {
				answers[def.Questions[i].ID] = correct(def.Questions[i])
			}

			res := Compile(def, answers, time.Time{}, time.Time{})
			if res.Passed == nil {
				t.Fatal("passed unset with a threshold")
			}
			if *res.Passed != tt.want {
				t.Errorf("passed = %v at %d%%, want %v", *res.Passed, res.Percentage, tt.want)
			}
			if res.PassingScore == nil || *res.PassingScore != tt.threshold {
				t.Errorf("passing score not carried over")
			}
		})
	}
}

func TestCompile_NoThreshold(t *testing.T) {
	zero := 0
	for _, ps := range []*int{nil, &zero} {
		def := newDefinition(2, 0)
		def.PassingScore = ps
		res := Compile(def, nil, time.Time{}, time.Time{})
		if res.Passed != nil || res.PassingScore != nil {
			t.Errorf("passing score %v produced a verdict", ps)
		}
	}
}

func TestCompile_ResultIsDetachedFromInputs(t *testing.T) {
	def := newDefinition(2, 0)
	answers := map[uuid.UUID]uuid.UUID{def.Questions[0].ID: correct(def.Questions[0])}

	res := Compile(def, answers, time.Time{}, time.Time{})
	answers[def.Questions[0].ID] = wrong(def.Questions[0])
	def.Questions[0].Options[0].Text = "changed"

	if *res.Questions[0].SelectedAnswerID != correct(def.Questions[0]) {
		t.Error("result follows later answer map changes")
	}
	if res.Questions[0].Options[0].Text == "changed" {
		t.Error("result shares option storage with the definition")
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{3, 3, 100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		pct  int
		want GradeBand
	}{
		{100, BandExcellent},
		{90, BandExcellent},
		{89, BandGood},
		{75, BandGood},
		{74, BandAverage},
		{50, BandAverage},
		{49, BandPoor},
		{0, BandPoor},
	}
	for _, tt := range tests {
		if got := Band(tt.pct); got != tt.want {
			t.Errorf("Band(%d) = %s, want %s", tt.pct, got.Label, tt.want.Label)
		}
	}
}
