package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/response"
	"github.com/stemsi/exstem-testflow/internal/service"
)

// errorStatus maps service errors onto HTTP status and API error code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrTestNotFound), errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrTestUnavailable):
		return http.StatusServiceUnavailable, response.ErrTestUnavailable
	case errors.Is(err, service.ErrTestNotPublished):
		return http.StatusConflict, response.ErrTestNotPublished
	case errors.Is(err, service.ErrTestNotDraft):
		return http.StatusConflict, response.ErrTestNotDraft
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, service.ErrInvalidAnswerKey):
		return http.StatusUnprocessableEntity, response.ErrInvalidAnswerKey

	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrNotSessionOwner):
		return http.StatusForbidden, response.ErrNotSessionOwner
	case errors.Is(err, service.ErrSessionCompleted):
		return http.StatusConflict, response.ErrSessionCompleted
	case errors.Is(err, service.ErrSessionNotCompleted):
		return http.StatusConflict, response.ErrSessionNotCompleted
	case errors.Is(err, service.ErrNotAllAnswered):
		return http.StatusConflict, response.ErrNotAllAnswered
	case errors.Is(err, service.ErrInvalidAnswer):
		return http.StatusUnprocessableEntity, response.ErrInvalidAnswer
	case errors.Is(err, service.ErrInvalidNavigation):
		return http.StatusUnprocessableEntity, response.ErrInvalidNavigation
	case errors.Is(err, service.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response.ErrConflict
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes the error envelope for err. Unmapped errors are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(response.DefaultPerPage)))
	return page, perPage
}
