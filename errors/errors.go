// Package errors provides error types and handling for Storage API file transfers.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a failed transfer operation with context about what failed.
// It wraps the underlying platform, object-store or filesystem error.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "export")
	Op string

	// FileID is the platform file id (if applicable)
	FileID int64

	// JobID is the platform job id (if applicable)
	JobID int64

	// Bucket is the object-store bucket (if applicable)
	Bucket string

	// Key is the object-store key or prefix (if applicable)
	Key string

	// StatusCode is the HTTP status returned by the platform (if applicable)
	StatusCode int

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("storage.")
	b.WriteString(e.Op)
	if e.FileID != 0 {
		fmt.Fprintf(&b, " file %d", e.FileID)
	}
	if e.JobID != 0 {
		fmt.Fprintf(&b, " job %d", e.JobID)
	}
	if e.Bucket != "" || e.Key != "" {
		fmt.Fprintf(&b, " s3://%s/%s", e.Bucket, e.Key)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithFileID adds file context to an existing error.
func (e *Error) WithFileID(id int64) *Error {
	e.FileID = id
	return e
}

// WithLocator adds object-store context to an existing error.
func (e *Error) WithLocator(bucket, key string) *Error {
	e.Bucket = bucket
	e.Key = key
	return e
}

// WithStatus adds the HTTP status code to an existing error.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewFileError creates a new Error with file context.
func NewFileError(op string, fileID int64, err error) *Error {
	return &Error{
		Op:     op,
		FileID: fileID,
		Err:    err,
	}
}

// NewJobError creates a new Error with job context.
func NewJobError(op string, jobID int64, err error) *Error {
	return &Error{
		Op:    op,
		JobID: jobID,
		Err:   err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrNotFound indicates the platform answered 404 for the resource
	ErrNotFound = errors.New("storage: not found")

	// ErrUnauthorized indicates the token lacks rights, including the right to federate
	ErrUnauthorized = errors.New("storage: unauthorized")

	// ErrAccessDenied indicates the object store rejected expired or invalid credentials
	ErrAccessDenied = errors.New("storage: access denied")

	// ErrObjectNotFound indicates the object does not exist in the object store
	ErrObjectNotFound = errors.New("storage: object not found")

	// ErrJobFailed indicates the server reported the job as failed
	ErrJobFailed = errors.New("storage: job failed")

	// ErrJobTimeout indicates the job was still running when the poll budget ran out
	ErrJobTimeout = errors.New("storage: job timeout")

	// ErrTransfer indicates a transient network fault during object-store I/O
	ErrTransfer = errors.New("storage: transfer error")

	// ErrCorruptManifest indicates a sliced file with no parts under its manifest prefix
	ErrCorruptManifest = errors.New("storage: corrupt manifest")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("storage: invalid input")

	// ErrInvalidResponse indicates the platform returned a payload that cannot be used
	ErrInvalidResponse = errors.New("storage: invalid response")
)

// IsNotFound reports whether err means the platform resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether err is a platform permission failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsAccessDenied reports whether the object store rejected the credentials.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsJobFailed reports whether an asynchronous job ended in the error state.
func IsJobFailed(err error) bool {
	return errors.Is(err, ErrJobFailed)
}

// IsJobTimeout reports whether polling gave up before the job finished.
func IsJobTimeout(err error) bool {
	return errors.Is(err, ErrJobTimeout)
}

// IsRetryable reports whether err may be retried with backoff.
// Only transient object-store faults qualify; permission, manifest and job
// failures never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransfer)
}

// JobFailure is the server-reported failure of an asynchronous job.
// It matches ErrJobFailed with errors.Is and carries the message verbatim.
type JobFailure struct {
	JobID   int64
	Message string
	Code    string
}

func (f *JobFailure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("job %d failed: %s (%s)", f.JobID, f.Message, f.Code)
	}
	return fmt.Sprintf("job %d failed: %s", f.JobID, f.Message)
}

// Is makes JobFailure match ErrJobFailed.
func (f *JobFailure) Is(target error) bool {
	return target == ErrJobFailed
}
