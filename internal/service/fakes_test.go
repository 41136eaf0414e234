package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/repository"
)

var nopLog = zerolog.New(io.Discard)

var errBoom = errors.New("boom")

type fakeTests struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.Test
	failGet error
}

func newFakeTests() *fakeTests {
	return &fakeTests{byID: make(map[uuid.UUID]*model.Test)}
}

func (f *fakeTests) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	t, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTests) List(_ context.Context, flt repository.TestFilter, limit, offset int) ([]model.Test, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Test
	for _, t := range f.byID {
		if flt.Status != "" && t.Status != flt.Status {
			continue
		}
		if flt.Subject != "" && t.Subject != flt.Subject {
			continue
		}
		out = append(out, *t)
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeTests) ListPublishedIDs(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, t := range f.byID {
		if t.Status == model.TestStatusPublished {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeTests) Create(_ context.Context, t *model.Test) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	cp := *t
	f.byID[t.ID] = &cp
	return nil
}

func (f *fakeTests) Update(_ context.Context, t *model.Test) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	f.byID[t.ID] = &cp
	return nil
}

func (f *fakeTests) UpdateStatus(_ context.Context, id uuid.UUID, status model.TestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	return nil
}

func (f *fakeTests) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

type fakeQuestions struct {
	mu     sync.Mutex
	byTest map[uuid.UUID][]model.Question
}

func newFakeQuestions() *fakeQuestions {
	return &fakeQuestions{byTest: make(map[uuid.UUID][]model.Question)}
}

func (f *fakeQuestions) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Question(nil), f.byTest[testID]...), nil
}

func (f *fakeQuestions) ReplaceForTest(_ context.Context, testID uuid.UUID, qs []model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range qs {
		qs[i].ID = uuid.New()
		qs[i].TestID = testID
		qs[i].OrderNum = i
		for j := range qs[i].Options {
			qs[i].Options[j].ID = uuid.New()
			qs[i].Options[j].QuestionID = qs[i].ID
			qs[i].Options[j].OrderNum = j
		}
	}
	f.byTest[testID] = append([]model.Question(nil), qs...)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	defs    map[uuid.UUID]*model.TestDefinition
	failGet error
	failSet error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{defs: make(map[uuid.UUID]*model.TestDefinition)}
}

func (c *fakeCache) Get(_ context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return nil, c.failGet
	}
	def, ok := c.defs[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	return def, nil
}

func (c *fakeCache) Set(_ context.Context, def *model.TestDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.failSet != nil {
		return c.failSet
	}
	c.defs[def.ID] = def
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.defs, id)
	return nil
}

func (c *fakeCache) has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.defs[id]
	return ok
}

// staticDefs serves fixed definitions.
type staticDefs map[uuid.UUID]*model.TestDefinition

func (d staticDefs) Definition(_ context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	def, ok := d[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	return def, nil
}

// recordingSink stores enqueued results and can be told to fail.
type recordingSink struct {
	mu      sync.Mutex
	fail    bool
	records []*model.TestResult
	got     chan *model.TestResult
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan *model.TestResult, 16)}
}

func (s *recordingSink) Enqueue(_ context.Context, res *model.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("enqueue: %w", errBoom)
	}
	s.records = append(s.records, res)
	s.got <- res
	return nil
}

func (s *recordingSink) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeUsers struct {
	byEmail map[string]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	u.ID = len(f.byEmail) + 1
	f.byEmail[u.Email] = u
	return nil
}

// definition builds n questions with three options; option 0 is correct.
func definition(n, durationSeconds int) *model.TestDefinition {
	def := &model.TestDefinition{Test: model.Test{
		ID:              uuid.New(),
		Title:           "Kimia",
		DurationSeconds: durationSeconds,
		Status:          model.TestStatusPublished,
	}}
	for i := 0; i < n; i++ {
		q := model.Question{ID: uuid.New(), Prompt: fmt.Sprintf("Q%d", i+1), OrderNum: i}
		for j := 0; j < 3; j++ {
			q.Options = append(q.Options, model.AnswerOption{ID: uuid.New(), QuestionID: q.ID, Text: fmt.Sprint(j), IsCorrect: j == 0, OrderNum: j})
		}
		def.Questions = append(def.Questions, q)
	}
	def.QuestionCount = n
	return def
}
