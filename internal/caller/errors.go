package caller

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTimedOut              = errors.New("network call timed out")
	ErrRPCFailure            = errors.New("rpc failure")
	ErrBatchSubmissionFailed = errors.New("batch submission failed")
	ErrMissingFrom           = errors.New("caller address is required")
	ErrNotFound              = errors.New("not found")
	ErrUnsupportedAuth       = errors.New("unsupported authentication")
)

// BatchError reports the element at which batch resolution stopped.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch element %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// classify maps a network error onto ErrTimedOut or ErrRPCFailure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimedOut, err)
	default:
		return fmt.Errorf("%w: %w", ErrRPCFailure, err)
	}
}
