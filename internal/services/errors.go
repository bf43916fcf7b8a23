package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/ytsort/internal/shared"
	"google.golang.org/api/googleapi"
)

// RemoteError describes a failed YouTube Data API call.
//
// It unwraps to a sentinel from the shared package chosen by status and reason, so callers can
// branch with [errors.Is]: [shared.ErrQuotaExceeded], [shared.ErrRateLimited], [shared.ErrConflict],
// [shared.ErrNotFound], [shared.ErrAuthFailed], [shared.ErrServiceUnavailable] or [shared.ErrAPIRequest].
type RemoteError struct {
	Op      string
	Status  int
	Reason  string
	Message string

	retryAfter time.Duration
}

func (e *RemoteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s failed with status %d (%s): %s", e.Op, e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	switch {
	case e.Status == http.StatusForbidden && (e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded"):
		return shared.ErrQuotaExceeded
	case e.Status == http.StatusTooManyRequests,
		e.Status == http.StatusForbidden && (e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded"):
		return shared.ErrRateLimited
	case e.Status == http.StatusConflict:
		return shared.ErrConflict
	case e.Status == http.StatusNotFound:
		return shared.ErrNotFound
	case e.Status == http.StatusUnauthorized:
		return shared.ErrAuthFailed
	case e.Status >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// RetryAfter returns the delay requested by the server, or zero.
func (e *RemoteError) RetryAfter() time.Duration { return e.retryAfter }

// classify converts a client library error into a [RemoteError]. Context errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
	}

	remote := &RemoteError{Op: op, Status: gerr.Code, Message: gerr.Message}
	if len(gerr.Errors) > 0 {
		remote.Reason = gerr.Errors[0].Reason
		if remote.Message == "" {
			remote.Message = gerr.Errors[0].Message
		}
	}
	if secs, err := strconv.Atoi(gerr.Header.Get("Retry-After")); err == nil && secs > 0 {
		remote.retryAfter = time.Duration(secs) * time.Second
	}
	return remote
}
