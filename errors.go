package openpose

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when a tensor's rank or dimensions do not
	// match the configured model topology
	ErrShapeMismatch = errors.New("tensor shape mismatch")
	// ErrEmptyResult is returned when the primary output of a RequestResult
	// is requested but the result has no outputs
	ErrEmptyResult = errors.New("request result has no outputs")
	// ErrPoolExhausted is returned by a fail fast RequestPool when no idle
	// request slot is available
	ErrPoolExhausted = errors.New("request pool exhausted")
	// ErrPoolClosed is returned when acquiring from a closed RequestPool
	ErrPoolClosed = errors.New("request pool closed")
)

// AsyncFailure wraps an error raised inside a completion callback.  It is
// captured on the executor's goroutine and returned by the next call made by
// the consumer of the Pipeline.
type AsyncFailure struct {
	// FrameID is the frame the failing request was processing
	FrameID int64
	// Err is the underlying cause
	Err error
}

// Error returns the failure description
func (a *AsyncFailure) Error() string {
	return fmt.Sprintf("async request for frame %d failed: %v", a.FrameID, a.Err)
}

// Unwrap returns the underlying cause
func (a *AsyncFailure) Unwrap() error {
	return a.Err
}
