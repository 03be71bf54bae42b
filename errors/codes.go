package errors

import "errors"

// ErrorCode is a stable, string-based classification of a transfer failure.
// Codes are meant for logs, exit statuses and JSON output; use the sentinel
// errors with errors.Is for control flow.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates the file, job or table does not exist on the platform.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeObjectNotFound indicates the backing object is missing from the object store.
	CodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"

	// Permission errors.

	// CodeUnauthorized indicates the Storage API token lacks rights for the operation.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeAccessDenied indicates the object store rejected the delegated credentials.
	CodeAccessDenied ErrorCode = "ACCESS_DENIED"

	// Validation errors.

	// CodeInvalidInput indicates the caller supplied an invalid argument or option.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidResponse indicates the platform answered with an unusable payload.
	CodeInvalidResponse ErrorCode = "INVALID_RESPONSE"

	// Job errors.

	// CodeJobFailed indicates the asynchronous job finished with an error.
	CodeJobFailed ErrorCode = "JOB_FAILED"

	// CodeJobTimeout indicates the poll budget ran out before the job finished.
	CodeJobTimeout ErrorCode = "JOB_TIMEOUT"

	// Transfer errors.

	// CodeTransfer indicates a transient network fault during object-store I/O.
	CodeTransfer ErrorCode = "TRANSFER_ERROR"

	// CodeCorruptManifest indicates a sliced file whose manifest lists no parts.
	CodeCorruptManifest ErrorCode = "CORRUPT_MANIFEST"

	// CodeUnknown indicates an unclassified error.
	CodeUnknown ErrorCode = "UNKNOWN"
)

var codeBySentinel = []struct {
	sentinel error
	code     ErrorCode
}{
	{ErrNotFound, CodeNotFound},
	{ErrObjectNotFound, CodeObjectNotFound},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrAccessDenied, CodeAccessDenied},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrInvalidResponse, CodeInvalidResponse},
	{ErrJobFailed, CodeJobFailed},
	{ErrJobTimeout, CodeJobTimeout},
	{ErrTransfer, CodeTransfer},
	{ErrCorruptManifest, CodeCorruptManifest},
}

// Code returns the classification of err, or CodeUnknown when err matches
// none of the package sentinels. A nil error has no code.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range codeBySentinel {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return CodeUnknown
}
