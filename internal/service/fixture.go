package service

import (
	"context"
	"fmt"
	"io"

	"github.com/stemsi/exstem-testflow/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixture is a YAML catalog used to seed tests.
type Fixture struct {
	Tests []FixtureTest `yaml:"tests"`
}

type FixtureTest struct {
	Title           string            `yaml:"title"`
	Subject         string            `yaml:"subject"`
	Description     string            `yaml:"description"`
	Difficulty      string            `yaml:"difficulty"`
	DurationSeconds int               `yaml:"duration_seconds"`
	PassingScore    *int              `yaml:"passing_score"`
	Publish         bool              `yaml:"publish"`
	Questions       []FixtureQuestion `yaml:"questions"`
}

type FixtureQuestion struct {
	Prompt string `yaml:"prompt"`
	Media  *struct {
		Kind string `yaml:"kind"`
		URL  string `yaml:"url"`
	} `yaml:"media"`
	Options []struct {
		Text    string `yaml:"text"`
		Correct bool   `yaml:"correct"`
	} `yaml:"options"`
}

// ParseFixture decodes a fixture and rejects unknown fields.
func ParseFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i, t := range fx.Tests {
		if t.Title == "" || t.Subject == "" {
			return nil, fmt.Errorf("test %d: title and subject are required", i)
		}
		switch model.Difficulty(t.Difficulty) {
		case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		default:
			return nil, fmt.Errorf("test %q: unknown difficulty %q", t.Title, t.Difficulty)
		}
	}
	return &fx, nil
}

// Inputs converts the fixture questions into the admin payload shape.
func (t FixtureTest) Inputs() []model.QuestionInput {
	out := make([]model.QuestionInput, 0, len(t.Questions))
	for _, q := range t.Questions {
		in := model.QuestionInput{Prompt: q.Prompt}
		if q.Media != nil {
			in.MediaKind = q.Media.Kind
			in.MediaURL = q.Media.URL
		}
		for _, o := range q.Options {
			in.Options = append(in.Options, model.OptionInput{Text: o.Text, IsCorrect: o.Correct})
		}
		out = append(out, in)
	}
	return out
}

// Import creates every fixture test as authorID and publishes the ones
// marked for it. Tests without questions stay empty drafts. It stops at the
// first failure and reports how many tests were imported completely.
func (s *TestService) Import(ctx context.Context, authorID int, fx *Fixture) (int, error) {
	for i, ft := range fx.Tests {
		t, err := s.Create(ctx, authorID, &model.CreateTestRequest{
			Title:           ft.Title,
			Subject:         ft.Subject,
			Description:     ft.Description,
			Difficulty:      ft.Difficulty,
			DurationSeconds: ft.DurationSeconds,
			PassingScore:    ft.PassingScore,
		})
		if err != nil {
			return i, fmt.Errorf("test %q: %w", ft.Title, err)
		}
		if len(ft.Questions) > 0 {
			if _, err := s.ReplaceQuestions(ctx, t.ID, ft.Inputs()); err != nil {
				return i, fmt.Errorf("test %q: %w", ft.Title, err)
			}
		}
		if ft.Publish {
			if err := s.Publish(ctx, t.ID); err != nil {
				return i, fmt.Errorf("publish %q: %w", ft.Title, err)
			}
		}
	}
	return len(fx.Tests), nil
}
