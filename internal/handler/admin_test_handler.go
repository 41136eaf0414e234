package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/middleware"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/response"
	"github.com/stemsi/exstem-testflow/internal/service"
	"github.com/stemsi/exstem-testflow/internal/validator"
)

// AdminTestHandler handles catalog management endpoints.
type AdminTestHandler struct {
	tests   *service.TestService
	results *service.ResultService
	log     zerolog.Logger
}

// NewAdminTestHandler creates a new AdminTestHandler.
func NewAdminTestHandler(tests *service.TestService, results *service.ResultService, log zerolog.Logger) *AdminTestHandler {
	return &AdminTestHandler{
		tests:   tests,
		results: results,
		log:     log.With().Str("component", "admin_test_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/admin/tests?status=&page=&per_page=
func (h *AdminTestHandler) ListTests(c *gin.Context) {
	page, perPage := pageQuery(c)
	status := model.TestStatus(c.Query("status"))

	switch status {
	case "", model.TestStatusDraft, model.TestStatusPublished, model.TestStatusArchived:
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"status": "status must be one of [DRAFT PUBLISHED ARCHIVED]",
		})
		return
	}

	tests, pagination, err := h.tests.ListAll(c.Request.Context(), status, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// CreateTest godoc
// POST /api/v1/admin/tests
// Creates a new draft test.
func (h *AdminTestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	t, err := h.tests.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": t})
}

// GetTest godoc
// GET /api/v1/admin/tests/:test_id
// Returns the test with its questions and answer key.
func (h *AdminTestHandler) GetTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	t, err := h.tests.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	qs, err := h.tests.Questions(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if qs == nil {
		qs = []model.Question{}
	}
	response.Success(c, http.StatusOK, gin.H{"test": t, "questions": qs})
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:test_id
func (h *AdminTestHandler) UpdateTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	t, err := h.tests.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": t})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:test_id
func (h *AdminTestHandler) DeleteTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	if err := h.tests.Delete(c.Request.Context(), id); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/tests/:test_id/questions
// Replaces every question and option of a draft test.
func (h *AdminTestHandler) ReplaceQuestions(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	qs, err := h.tests.ReplaceQuestions(c.Request.Context(), id, req.Questions)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": qs})
}

// PublishTest godoc
// POST /api/v1/admin/tests/:test_id/publish
// Validates the answer key, caches the definition and opens the test to learners.
func (h *AdminTestHandler) PublishTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	if err := h.tests.Publish(c.Request.Context(), id); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "test published successfully"})
}

// ArchiveTest godoc
// POST /api/v1/admin/tests/:test_id/archive
// Hides the test from the catalog. Live sessions keep their definition.
func (h *AdminTestHandler) ArchiveTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	if err := h.tests.Archive(c.Request.Context(), id); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "test archived successfully"})
}

// RefreshCache godoc
// POST /api/v1/admin/tests/:test_id/refresh-cache
// Rebuilds the cached definition of a published test.
func (h *AdminTestHandler) RefreshCache(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	if err := h.tests.RefreshCache(c.Request.Context(), id); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "test cache refreshed successfully"})
}

// GetResults godoc
// GET /api/v1/admin/tests/:test_id/results
// Returns paginated learner results for a test.
func (h *AdminTestHandler) GetResults(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}
	page, perPage := pageQuery(c)

	rows, pagination, err := h.results.ListByTest(c.Request.Context(), id, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if rows == nil {
		rows = []model.TestResultRow{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows}, pagination)
}
