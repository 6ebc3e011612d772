package openpose

import (
	"sort"
	"time"
)

// RequestResult holds the outputs of a completed request
type RequestResult struct {
	// FrameID is the ID assigned by Submit, -1 for an empty result
	FrameID int64
	// Outputs are the output tensors keyed by output name
	Outputs map[string]*Tensor
	// StartTime is the time the request was started
	StartTime time.Time
}

// emptyResult returns the sentinel used when no result is available yet
func emptyResult() RequestResult {
	return RequestResult{FrameID: -1}
}

// IsEmpty returns true if the result has no outputs
func (r RequestResult) IsEmpty() bool {
	return len(r.Outputs) == 0
}

// FirstOutput returns the output with the lowest name in lexical order.  Many
// models only have a single output so this saves looking it up by name.
func (r RequestResult) FirstOutput() (*Tensor, error) {

	if r.IsEmpty() {
		return nil, ErrEmptyResult
	}

	names := make([]string, 0, len(r.Outputs))

	for name := range r.Outputs {
		names = append(names, name)
	}

	sort.Strings(names)

	return r.Outputs[names[0]], nil
}

// PerformanceInfo is a snapshot of the Pipeline's performance counters
type PerformanceInfo struct {
	// FramesCount is the number of successfully completed requests
	FramesCount int64
	// LatencySum is the summed start to completion latency of all frames
	LatencySum time.Duration
	// StartTime is the time of the first submitted request
	StartTime time.Time
	// NumRequestsInUse is the number of busy request slots
	NumRequestsInUse int
	// FPS is the completed frame rate since StartTime
	FPS float64
}

// AverageLatency returns the mean latency per completed frame
func (p PerformanceInfo) AverageLatency() time.Duration {

	if p.FramesCount == 0 {
		return 0
	}

	return p.LatencySum / time.Duration(p.FramesCount)
}
