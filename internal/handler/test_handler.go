package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/response"
	"github.com/stemsi/exstem-testflow/internal/service"
)

// TestHandler serves the learner catalog.
type TestHandler struct {
	tests *service.TestService
	log   zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(tests *service.TestService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		tests: tests,
		log:   log.With().Str("component", "test_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/tests?subject=&page=&per_page=
// Lists published tests. Only metadata is returned; questions stay on the server.
func (h *TestHandler) ListTests(c *gin.Context) {
	page, perPage := pageQuery(c)

	tests, pagination, err := h.tests.ListPublished(c.Request.Context(), c.Query("subject"), page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// GetTest godoc
// GET /api/v1/tests/:test_id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	t, err := h.tests.GetPublished(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": t})
}
