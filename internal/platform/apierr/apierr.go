package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeExtractionFailed  = "extraction_failed"
	CodeUnsupportedFormat = "unsupported_format"
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeMergeConflict     = "merge_conflict"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func ExtractionFailed(err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeExtractionFailed, err)
}

func UnsupportedFormat(format string) *Error {
	return New(http.StatusBadRequest, CodeUnsupportedFormat, fmt.Errorf("unsupported file format: %s", format))
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s not found", what))
}

func MergeConflict(err error) *Error {
	return New(http.StatusConflict, CodeMergeConflict, err)
}

// From unwraps err into an *Error, or wraps it as a generic internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
