package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/repository"
	"github.com/stemsi/exstem-testflow/internal/response"
)

type testStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	List(ctx context.Context, f repository.TestFilter, limit, offset int) ([]model.Test, int, error)
	ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error)
	Create(ctx context.Context, t *model.Test) error
	Update(ctx context.Context, t *model.Test) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type questionStore interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
	ReplaceForTest(ctx context.Context, testID uuid.UUID, qs []model.Question) error
}

// TestService manages the test catalog and keeps published definitions in
// the cache that sessions are seeded from.
type TestService struct {
	tests               testStore
	questions           questionStore
	cache               DefinitionCache
	defaultPassingScore int
	log                 zerolog.Logger
}

// NewTestService creates a new TestService. defaultPassingScore is applied
// to tests created without a threshold; zero leaves them ungraded.
func NewTestService(
	tests testStore,
	questions questionStore,
	cache DefinitionCache,
	defaultPassingScore int,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		tests:               tests,
		questions:           questions,
		cache:               cache,
		defaultPassingScore: defaultPassingScore,
		log:                 log.With().Str("component", "test_service").Logger(),
	}
}

func (s *TestService) get(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

// GetByID retrieves a test by id regardless of status.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.get(ctx, id)
}

// GetPublished retrieves a test visible in the learner catalog.
func (s *TestService) GetPublished(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TestStatusPublished {
		return nil, ErrTestNotFound
	}
	return t, nil
}

// ListPublished pages through the learner catalog, optionally by subject.
func (s *TestService) ListPublished(ctx context.Context, subject string, page, perPage int) ([]model.Test, *response.Pagination, error) {
	return s.list(ctx, repository.TestFilter{Status: model.TestStatusPublished, Subject: subject}, page, perPage)
}

// ListAll pages through every test for administrators.
func (s *TestService) ListAll(ctx context.Context, status model.TestStatus, page, perPage int) ([]model.Test, *response.Pagination, error) {
	return s.list(ctx, repository.TestFilter{Status: status}, page, perPage)
}

func (s *TestService) list(ctx context.Context, f repository.TestFilter, page, perPage int) ([]model.Test, *response.Pagination, error) {
	p := response.NewPage(page, perPage)
	tests, total, err := s.tests.List(ctx, f, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list tests: %w", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, p.Of(total), nil
}

// Create inserts a new draft test.
func (s *TestService) Create(ctx context.Context, authorID int, req *model.CreateTestRequest) (*model.Test, error) {
	t := &model.Test{
		Title:           req.Title,
		Subject:         req.Subject,
		Description:     req.Description,
		Difficulty:      model.Difficulty(req.Difficulty),
		DurationSeconds: req.DurationSeconds,
		PassingScore:    req.PassingScore,
		AuthorID:        authorID,
		Status:          model.TestStatusDraft,
	}
	if t.PassingScore == nil && s.defaultPassingScore > 0 {
		ps := s.defaultPassingScore
		t.PassingScore = &ps
	}

	if err := s.tests.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	s.log.Info().Str("test_id", t.ID.String()).Int("author_id", authorID).Msg("Test created")
	return t, nil
}

// Update modifies the metadata of a draft test.
func (s *TestService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateTestRequest) (*model.Test, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TestStatusDraft {
		return nil, ErrTestNotDraft
	}

	if req.Title != "" {
		t.Title = req.Title
	}
	if req.Subject != "" {
		t.Subject = req.Subject
	}
	if req.Description != "" {
		t.Description = req.Description
	}
	if req.Difficulty != "" {
		t.Difficulty = model.Difficulty(req.Difficulty)
	}
	if req.DurationSeconds != nil {
		t.DurationSeconds = *req.DurationSeconds
	}
	if req.PassingScore != nil {
		t.PassingScore = req.PassingScore
	}

	if err := s.tests.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return t, nil
}

// Delete removes a draft or archived test. Published tests must be archived
// first so running sessions keep a valid definition.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == model.TestStatusPublished {
		return ErrTestNotDraft
	}
	if err := s.tests.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	return nil
}

// Questions returns a test's questions with their answer key, for authors.
func (s *TestService) Questions(ctx context.Context, id uuid.UUID) ([]model.Question, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	qs, err := s.questions.ListByTest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return qs, nil
}

// ReplaceQuestions swaps the whole question list of a draft test.
func (s *TestService) ReplaceQuestions(ctx context.Context, id uuid.UUID, in []model.QuestionInput) ([]model.Question, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TestStatusDraft {
		return nil, ErrTestNotDraft
	}

	qs := make([]model.Question, 0, len(in))
	for _, qi := range in {
		q := model.Question{
			Prompt:    qi.Prompt,
			MediaKind: model.MediaKind(qi.MediaKind),
			MediaURL:  qi.MediaURL,
		}
		for _, oi := range qi.Options {
			q.Options = append(q.Options, model.AnswerOption{Text: oi.Text, IsCorrect: oi.IsCorrect})
		}
		qs = append(qs, q)
	}
	if err := validateAnswerKey(qs); err != nil {
		return nil, err
	}

	if err := s.questions.ReplaceForTest(ctx, id, qs); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	s.log.Info().Str("test_id", id.String()).Int("questions", len(qs)).Msg("Questions replaced")
	return qs, nil
}

// validateAnswerKey requires at least one question and exactly one correct
// option per question.
func validateAnswerKey(qs []model.Question) error {
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	for _, q := range qs {
		if len(q.Options) < 2 {
			return ErrInvalidAnswerKey
		}
		n := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				n++
			}
		}
		if n != 1 {
			return ErrInvalidAnswerKey
		}
	}
	return nil
}

// Publish validates a draft test, caches its definition and marks it
// PUBLISHED.
func (s *TestService) Publish(ctx context.Context, id uuid.UUID) error {
	t, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}

	t.Status = model.TestStatusPublished
	if _, err := s.warm(ctx, t); err != nil {
		return err
	}

	if err := s.tests.UpdateStatus(ctx, id, model.TestStatusPublished); err != nil {
		_ = s.cache.Delete(ctx, id)
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("test_id", id.String()).Msg("Test published")
	return nil
}

// Archive withdraws a published test from the catalog. Sessions already
// running keep their in-memory definition.
func (s *TestService) Archive(ctx context.Context, id uuid.UUID) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.tests.UpdateStatus(ctx, id, model.TestStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to evict archived test")
	}
	return nil
}

// RefreshCache re-caches the definition of a published test.
func (s *TestService) RefreshCache(ctx context.Context, id uuid.UUID) error {
	t, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}
	if _, err := s.warm(ctx, t); err != nil {
		return err
	}
	s.log.Info().Str("test_id", id.String()).Msg("Cache refreshed")
	return nil
}

// load builds the definition of t from the database.
func (s *TestService) load(ctx context.Context, t *model.Test) (*model.TestDefinition, error) {
	qs, err := s.questions.ListByTest(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if err := validateAnswerKey(qs); err != nil {
		return nil, err
	}

	def := &model.TestDefinition{Test: *t, Questions: qs}
	def.QuestionCount = len(qs)
	return def, nil
}

// warm loads t's definition into the cache.
func (s *TestService) warm(ctx context.Context, t *model.Test) (*model.TestDefinition, error) {
	def, err := s.load(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, def); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("test_id", t.ID.String()).
		Int("questions", len(def.Questions)).
		Msg("Cache warmed")
	return def, nil
}

// Definition returns the full definition a session is seeded from. It reads
// the cache first and falls back to the database, re-warming the cache.
// Database failures surface as ErrTestUnavailable so the caller can retry.
func (s *TestService) Definition(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	def, err := s.cache.Get(ctx, id)
	if err == nil {
		if len(def.Questions) == 0 {
			return nil, ErrNoQuestions
		}
		return def, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Cache read failed, using database")
	}

	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTestUnavailable, err)
	}
	if t.Status != model.TestStatusPublished {
		return nil, ErrTestNotPublished
	}

	def, err = s.load(ctx, t)
	switch {
	case errors.Is(err, ErrNoQuestions), errors.Is(err, ErrInvalidAnswerKey):
		return nil, ErrNoQuestions
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTestUnavailable, err)
	}

	if err := s.cache.Set(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to re-warm cache")
	}
	return def, nil
}

// PrewarmAll loads every published test into the cache on startup.
func (s *TestService) PrewarmAll(ctx context.Context) error {
	ids, err := s.tests.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		t, err := s.tests.GetByID(ctx, id)
		if err == nil {
			_, err = s.warm(ctx, t)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(ids)).Msg("Prewarming complete")
	return nil
}
