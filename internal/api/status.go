package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/kbcstorage/storage-go/errors"
)

// StatusError is a non-2xx answer from the Storage API.
type StatusError struct {
	Method      string
	Path        string
	StatusCode  int
	Message     string
	Code        string
	ExceptionID string
}

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Code        string `json:"code"`
	ExceptionID string `json:"exceptionId"`
}

func newStatusError(method, path string, resp *http.Response) *StatusError {
	se := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := sonic.Unmarshal(data, &body); err == nil {
		se.Message = body.Error
		if se.Message == "" {
			se.Message = body.Message
		}
		se.Code = body.Code
		se.ExceptionID = body.ExceptionID
	}
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}

	return se
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d: %s (%s)", e.Method, e.Path, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the status to the matching sentinel so errors.Is works on
// the transport error directly.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.ErrUnauthorized
	default:
		return nil
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
