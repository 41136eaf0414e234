package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/middleware"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/render"
	"github.com/stemsi/exstem-testflow/internal/response"
	"github.com/stemsi/exstem-testflow/internal/service"
	"github.com/stemsi/exstem-testflow/internal/testsession"
	"github.com/stemsi/exstem-testflow/internal/validator"
)

// SessionHandler serves the learner's test-taking endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	results  *service.ResultService
	renderer *render.Renderer
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, results *service.ResultService, renderer *render.Renderer, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		results:  results,
		renderer: renderer,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/tests/:test_id/sessions
// Seeds a fresh session and starts its countdown. An existing live session
// of the learner on the same test is discarded.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	snap, err := h.sessions.Start(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": h.renderer.Question(snap)})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
// Returns the current question, navigation and remaining time.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	snap, err := h.sessions.Get(claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.renderer.Question(snap)})
}

// SelectAnswer godoc
// PUT /api/v1/sessions/:session_id/answers
// Records the learner's choice for one question, replacing an earlier one.
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessions.SelectAnswer(claims.UserID, id, uuid.MustParse(req.QuestionID), uuid.MustParse(req.AnswerID))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.renderer.Question(snap)})
}

// Navigate godoc
// POST /api/v1/sessions/:session_id/navigate
// Moves to the next, previous or a given question.
func (h *SessionHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	index := 0
	if req.Index != nil {
		index = *req.Index
	}

	snap, err := h.sessions.Navigate(claims.UserID, id, req.Action, index)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.renderer.Question(snap)})
}

// FinishSession godoc
// POST /api/v1/sessions/:session_id/finish
// Completes a fully answered session and returns the result view. When the
// result could not be submitted the view is still returned with
// SUBMISSION_FAILED so the client can offer a retry.
func (h *SessionHandler) FinishSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	res, err := h.sessions.Finish(claims.UserID, id)
	h.writeResult(c, claims.UserID, id, res, err)
}

// RestartSession godoc
// POST /api/v1/sessions/:session_id/restart
// Discards all answers and starts the same test again.
func (h *SessionHandler) RestartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	snap, err := h.sessions.Restart(claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.renderer.Question(snap)})
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	res, test, err := h.sessions.Result(claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": h.renderer.Result(test.Title, res)})
}

// CloseSession godoc
// DELETE /api/v1/sessions/:session_id
// Tears the session down; its timer stops immediately.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	if err := h.sessions.Close(claims.UserID, id); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// SubmitAnswers godoc
// POST /api/v1/tests/:test_id/submit
// Grades a complete answer map without a live session.
func (h *SessionHandler) SubmitAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, test, err := h.sessions.Submit(c.Request.Context(), claims.UserID, testID, req.Answers, req.ElapsedSeconds)
	if err != nil && res == nil {
		fail(c, h.log, err)
		return
	}

	view := h.renderer.Result(test.Title, res)
	if err != nil {
		status, code := errorStatus(err)
		response.FailWithData(c, status, code, gin.H{"result": view})
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"result": view})
}

// MyResults godoc
// GET /api/v1/me/results
// Lists the learner's persisted results, newest first.
func (h *SessionHandler) MyResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage := pageQuery(c)

	rows, pagination, err := h.results.ListByUser(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if rows == nil {
		rows = []model.TestResultRow{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows}, pagination)
}

func (h *SessionHandler) writeResult(c *gin.Context, userID int, id uuid.UUID, res *testsession.Result, err error) {
	if err != nil && (res == nil || !errors.Is(err, service.ErrSubmissionFailed)) {
		fail(c, h.log, err)
		return
	}

	snap, getErr := h.sessions.Get(userID, id)
	if getErr != nil {
		fail(c, h.log, getErr)
		return
	}
	view := h.renderer.Result(snap.Test.Title, res)

	if err != nil {
		status, code := errorStatus(err)
		response.FailWithData(c, status, code, gin.H{"result": view})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": view})
}
