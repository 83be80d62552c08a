package server

import (
	"errors"
	"net/http"

	"api-testgen/internal/executor"
	"api-testgen/internal/parser"
	"api-testgen/internal/store"
	"api-testgen/internal/workflow"

	"github.com/gin-gonic/gin"
)

// Error codes returned in the error envelope
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInvalidDoc    = "INVALID_DOCUMENT"
	ErrCodeInvalidInput  = "VALIDATION_ERROR"
	ErrCodeTransition    = "TRANSITION_REJECTED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Response is the envelope of every JSON reply
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func failure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: &ErrorInfo{Code: code, Message: message}})
}

// fail maps a domain error to its HTTP status
func fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		formatErr     *parser.FormatError
		versionErr    *parser.UnsupportedVersionError
		malformedErr  *parser.MalformedOperationError
		validationErr *workflow.ValidationError
		transitionErr *workflow.TransitionError
		notFoundErr   *workflow.NotFoundError
		caseErr       *executor.CaseNotFoundError
		runningErr    *executor.AlreadyRunningError
	)
	switch {
	case errors.As(err, &formatErr), errors.As(err, &versionErr), errors.As(err, &malformedErr):
		failure(c, http.StatusUnprocessableEntity, ErrCodeInvalidDoc, err.Error())
	case errors.As(err, &validationErr):
		failure(c, http.StatusUnprocessableEntity, ErrCodeInvalidInput, err.Error())
	case errors.As(err, &transitionErr):
		failure(c, http.StatusConflict, ErrCodeTransition, err.Error())
	case errors.As(err, &runningErr):
		failure(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.As(err, &notFoundErr), errors.As(err, &caseErr), errors.Is(err, store.ErrNotFound):
		failure(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		failure(c, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}
