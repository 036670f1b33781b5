package wire

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/internal/validation"
)

// Code classifies a failed request.
type Code string

const (
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeArithmeticDomain Code = "ARITHMETIC_DOMAIN"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeInternal         Code = "INTERNAL"
)

// HTTPStatus returns the status code a server answers with for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeValidation:
		return http.StatusBadRequest
	case CodeArithmeticDomain:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error body returned for a failed request.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`

	err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// AsError classifies err. Errors that already are *Error are returned as is.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var we *Error
	if errors.As(err, &we) {
		return we
	}

	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve):
		return &Error{Code: CodeValidation, Message: ve.Error(), Fields: ve.Fields(), err: err}
	case errors.Is(err, fsrs.ErrArithmeticDomain):
		return &Error{Code: CodeArithmeticDomain, Message: err.Error(), err: err}
	case errors.Is(err, fsrs.ErrInvalidInput):
		return &Error{Code: CodeInvalidInput, Message: err.Error(), err: err}
	default:
		return &Error{Code: CodeInternal, Message: "internal error", err: err}
	}
}

func invalidInput(format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Code: CodeInvalidInput, Message: err.Error(), err: err}
}
