package operations

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/kbcstorage/storage-go/errors"
)

var accessDeniedCodes = map[string]bool{
	"AccessDenied":          true,
	"AllAccessDisabled":     true,
	"ExpiredToken":          true,
	"InvalidAccessKeyId":    true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
	"TokenRefreshRequired":  true,
}

var notFoundCodes = map[string]bool{
	"NoSuchBucket": true,
	"NoSuchKey":    true,
	"NotFound":     true,
}

// transientCodes are client-fault codes that still clear up on retry.
var transientCodes = map[string]bool{
	"RequestTimeTooSkewed":     true,
	"RequestTimeout":           true,
	"SlowDown":                 true,
	"Throttling":               true,
	"ThrottlingException":      true,
	"TooManyRequests":          true,
	"TooManyRequestsException": true,
}

// Classify maps an object-store error onto the transfer sentinels while
// keeping the original error in the chain. Context errors pass through
// unchanged so cancellation is never mistaken for a transient fault.
// Requests the store rejects as malformed (client faults, 4xx) are not
// transient and map to ErrInvalidResponse.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case accessDeniedCodes[code]:
			return fmt.Errorf("%w: %w", errors.ErrAccessDenied, err)
		case notFoundCodes[code]:
			return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
		case transientCodes[code]:
			return fmt.Errorf("%w: %w", errors.ErrTransfer, err)
		case apiErr.ErrorFault() == smithy.FaultClient:
			return fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if stderrors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", errors.ErrAccessDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", errors.ErrTransfer, err)
		}
		if status := respErr.HTTPStatusCode(); status >= 400 && status < 500 {
			return fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err)
		}
	}

	return fmt.Errorf("%w: %w", errors.ErrTransfer, err)
}
