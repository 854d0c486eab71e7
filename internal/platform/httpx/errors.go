package httpx

import (
	"errors"
	"net/http"
)

// Error is a failure that already knows its HTTP representation. Domain
// packages translate their own errors into *Error at the transport edge.
type Error struct {
	Status int
	Title  string
	Code   string
	Detail string
	Fields any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Title
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest builds a 400 error for malformed input.
func BadRequest(detail string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Title: "Bad Request", Code: "BAD_REQUEST", Detail: detail, Err: err}
}

// RespondError writes err as a problem response. Errors that are not *Error
// become a 500 without leaking their message.
func RespondError(w http.ResponseWriter, err error) {
	var httpErr *Error
	if !errors.As(err, &httpErr) {
		Problem(w, ProblemDetail{
			Title:  "Internal Error",
			Status: http.StatusInternalServerError,
			Code:   "INTERNAL_ERROR",
		})
		return
	}
	Problem(w, ProblemDetail{
		Title:  httpErr.Title,
		Status: httpErr.Status,
		Detail: httpErr.Detail,
		Code:   httpErr.Code,
		Errors: httpErr.Fields,
	})
}
