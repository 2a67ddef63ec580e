package apierr

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeInvalidData     = "INVALID_AGGREGATION"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = New(fiber.StatusNotFound, CodeNotFound, "resource not found with given parameters")

	// ErrInvalidReq is returned when a request is invalid.
	ErrInvalidReq = New(fiber.StatusBadRequest, CodeInvalidRequest, "invalid request: some or all request parameters are invalid")

	// ErrInternalError is returned when an internal error occurs.
	ErrInternalError = New(fiber.StatusInternalServerError, CodeInternalError, "internal server error occurred")

	// ErrUpstream is returned when a module could not be reached or answered with a failure.
	ErrUpstream = New(fiber.StatusBadGateway, CodeUpstreamFailure, "upstream module request failed")

	// ErrInvalidAggregation is returned when a module delivered data that cannot be aggregated.
	ErrInvalidAggregation = New(fiber.StatusUnprocessableEntity, CodeInvalidData, "module data could not be aggregated")
)

type Extras map[string]interface{}

type Error struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Extras     *Extras
}

func New(statusCode int, errorCode string, message string) *Error {
	return &Error{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

func (e Error) Msg(format string, parts ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, parts...)
	return &e
}

func (e Error) WithExtras(extras Extras) *Error {
	e.Extras = &extras
	return &e
}

func NewInvalidViolations(violations interface{}) *Error {
	e := *ErrInvalidReq
	e.Extras = &Extras{
		"violations": violations,
	}
	return &e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}
