// Package handlers defines the machine-readable error codes of the API.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// operation codes (send_failed, open_failed, ...) mark 5xx outcomes of one
// endpoint. Every error response carries a status and one of these codes:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "user not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-jobportal-chat/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Operation-specific:
	ErrCodeSendFailed   = "send_failed"
	ErrCodeOpenFailed   = "open_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeCountFailed  = "count_failed"
	ErrCodeDeleteFailed = "delete_failed"
)

// serviceError maps a service sentinel onto its response. Anything
// unrecognized becomes a 500 with opCode.
func serviceError(c *gin.Context, err error, opCode string) {
	switch {
	case errors.Is(err, services.ErrInvalidUser),
		errors.Is(err, services.ErrSelfMessage),
		errors.Is(err, services.ErrEmptyText),
		errors.Is(err, services.ErrTextTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, opCode, "internal error")
	}
}
