package dto

import (
	"errors"
	"net/http"

	"github.com/saaskit/scaffold/internal/domain/shared"
)

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// statusByCode maps domain error codes to HTTP status codes.
var statusByCode = map[string]int{
	shared.ErrNotFound.Code:            http.StatusNotFound,
	shared.ErrAlreadyExists.Code:       http.StatusConflict,
	shared.ErrInvalidInput.Code:        http.StatusBadRequest,
	shared.ErrConcurrencyConflict.Code: http.StatusConflict,
	shared.ErrUnauthorized.Code:        http.StatusUnauthorized,
	shared.ErrForbidden.Code:           http.StatusForbidden,
}

// FromError converts an error into an HTTP status and response envelope.
// Unrecognized errors map to 500 without leaking their message.
func FromError(err error) (int, Response) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status, ok := statusByCode[domainErr.Code]
		if !ok {
			status = http.StatusUnprocessableEntity
		}
		return status, NewErrorResponse(domainErr.Code, domainErr.Message)
	}
	return http.StatusInternalServerError, NewErrorResponse("INTERNAL", "Internal server error")
}
