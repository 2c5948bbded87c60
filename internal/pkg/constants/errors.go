package constants

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CodedError is an error carrying the HTTP status the api layer answers with.
type CodedError struct {
	msg  string
	code int
}

func NewCodedError(msg string, code int) *CodedError {
	return &CodedError{msg: msg, code: code}
}

func (e *CodedError) Error() string {
	return e.msg
}

func (e *CodedError) Code() int {
	return e.code
}

var (
	ErrValidation       = NewCodedError("validation failed", http.StatusBadRequest)
	ErrPermissionDenied = NewCodedError("permission denied", http.StatusForbidden)
	ErrNotFound         = NewCodedError("not found", http.StatusNotFound)
	ErrDBNotFound       = NewCodedError("record not found", http.StatusNotFound)
	ErrInvalidState     = NewCodedError("invalid state", http.StatusUnprocessableEntity)
	ErrConflict         = NewCodedError("conflict", http.StatusConflict)
	ErrAlreadyExists    = NewCodedError("already exists", http.StatusConflict)
	ErrUnauthorized     = NewCodedError("unauthorized", http.StatusUnauthorized)
)

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(flds ...FieldError) error {
	return &ValidationError{Fields: flds}
}

// FieldInvalid is a shortcut for a single-field ValidationError.
func FieldInvalid(field, reason string) error {
	return NewValidationError(FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsNotFound reports whether err is either of the not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDBNotFound)
}

// FromValidator converts validator.ValidationErrors into a ValidationError and
// passes any other error through.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		flds = append(flds, FieldError{Field: fe.Field(), Reason: reason})
	}
	return NewValidationError(flds...)
}
