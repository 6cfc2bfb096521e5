package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// StatusFor maps service sentinels onto HTTP statuses for non-result endpoints.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrNoArticles):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrMisconfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrUpstreamUnavailable), errors.Is(err, apperr.ErrBadResponseShape), errors.Is(err, apperr.ErrSchemaInvalid):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
