package openpose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PipelineConfig defines the construction time settings of a Pipeline
type PipelineConfig struct {
	// NumRequests is the number of request slots in the pool
	NumRequests int `koanf:"numrequests"`
	// PoolPolicy is what Submit does when all slots are busy, "block" or
	// "failfast"
	PoolPolicy string `koanf:"poolpolicy"`
	// OutputNames are the output tensors copied into each RequestResult.  An
	// empty list copies every model output.
	OutputNames []string `koanf:"outputnames"`
}

// DefaultPipelineConfig returns a PipelineConfig with two blocking request
// slots that copies all model outputs
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		NumRequests: 2,
		PoolPolicy:  "block",
	}
}

// Option configures optional Pipeline settings
type Option func(*Pipeline)

// WithLogger sets the logger used by the Pipeline
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock overrides the time source used for latency and FPS counters
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline dispatches inference requests asynchronously and returns their
// results in submission order
type Pipeline struct {
	exec Executor
	pool *RequestPool

	// mu guards every field below as well as the request pool bitmap
	mu sync.Mutex
	// dataCond is broadcast whenever a request completes
	dataCond *sync.Cond
	// completed results waiting to be retrieved keyed by frame ID
	completed map[int64]*RequestResult
	// skipped holds frame IDs that will never produce a result
	skipped map[int64]struct{}
	perf    PerformanceInfo
	// inputFrameID is the last frame ID handed out by Submit
	inputFrameID int64
	// outputFrameID is the last frame ID returned by GetResult
	outputFrameID int64
	// callbackErr is the first failure captured on a callback goroutine
	callbackErr error
	// failedFrameID is the frame of callbackErr, earlier frames are still
	// delivered
	failedFrameID int64

	outputNames []string
	logger      *zap.Logger
	now         func() time.Time
}

// NewPipeline creates a Pipeline dispatching to exec
func NewPipeline(exec Executor, cfg PipelineConfig, opts ...Option) (*Pipeline, error) {

	policy, err := ParsePoolPolicy(cfg.PoolPolicy)

	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		exec:      exec,
		completed: make(map[int64]*RequestResult),
		skipped:   make(map[int64]struct{}),
		logger:    zap.NewNop(),
		now:       time.Now,
	}

	p.dataCond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	p.outputNames, err = resolveOutputNames(exec.OutputAttrs(), cfg.OutputNames)

	if err != nil {
		return nil, err
	}

	// a result without outputs can not be told apart from the empty result
	if len(p.outputNames) == 0 {
		return nil, fmt.Errorf("%w: executor has no outputs", ErrShapeMismatch)
	}

	p.pool, err = newRequestPool(exec, cfg.NumRequests, policy, &p.mu)

	if err != nil {
		return nil, fmt.Errorf("error creating request pool: %w", err)
	}

	p.logger.Debug("pipeline created",
		zap.Int("requests", cfg.NumRequests),
		zap.String("policy", policy.String()),
		zap.Strings("outputs", p.outputNames))

	return p, nil
}

// resolveOutputNames checks the wanted output names exist in the model
func resolveOutputNames(attrs []TensorAttr, wanted []string) ([]string, error) {

	if len(wanted) == 0 {
		names := make([]string, len(attrs))

		for i, attr := range attrs {
			names[i] = attr.Name
		}

		return names, nil
	}

	known := make(map[string]bool, len(attrs))

	for _, attr := range attrs {
		known[attr.Name] = true
	}

	for _, name := range wanted {
		if !known[name] {
			return nil, fmt.Errorf("%w: model has no output named %q",
				ErrShapeMismatch, name)
		}
	}

	return append([]string(nil), wanted...), nil
}

// Submit a request with the given named input tensors.  It acquires a request
// slot, which may block when the pool is saturated, starts the request and
// returns the frame ID assigned to it without waiting for completion.
func (p *Pipeline) Submit(ctx context.Context, inputs map[string]*Tensor) (int64, error) {

	p.mu.Lock()
	err := p.callbackErr
	p.mu.Unlock()

	if err != nil {
		return -1, err
	}

	slot, err := p.pool.Acquire(ctx)

	if err != nil {
		if errors.Is(err, ErrPoolExhausted) {
			p.logger.Debug("no idle request slot")
		}

		return -1, err
	}

	if err := slot.Request.SetInputs(inputs); err != nil {
		p.pool.Release(slot)
		return -1, fmt.Errorf("error setting inputs: %w", err)
	}

	p.mu.Lock()
	p.inputFrameID++
	frameID := p.inputFrameID

	if p.perf.StartTime.IsZero() {
		p.perf.StartTime = p.now()
	}

	p.perf.NumRequestsInUse = p.pool.inUseLocked()
	p.mu.Unlock()

	start := p.now()

	err = slot.Request.StartAsync(func(runErr error) {
		p.onCompleted(frameID, slot, start, runErr)
	})

	if err != nil {
		// the frame will never complete, mark it so ordered retrieval moves
		// past it
		p.mu.Lock()
		p.skipped[frameID] = struct{}{}
		p.pool.releaseLocked(slot)
		p.perf.NumRequestsInUse = p.pool.inUseLocked()
		p.dataCond.Broadcast()
		p.mu.Unlock()

		return frameID, fmt.Errorf("error starting request for frame %d: %w", frameID, err)
	}

	p.logger.Debug("request submitted", zap.Int64("frame", frameID))

	return frameID, nil
}

// onCompleted is called on the executor's goroutine when a request finishes
func (p *Pipeline) onCompleted(frameID int64, slot *Slot, start time.Time, runErr error) {

	var res *RequestResult
	err := runErr

	if err == nil {
		res, err = p.extractOutputs(frameID, slot, start)
	}

	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if p.callbackErr == nil {
			p.callbackErr = &AsyncFailure{FrameID: frameID, Err: err}
			p.failedFrameID = frameID
		}

		p.skipped[frameID] = struct{}{}
		p.logger.Error("request failed", zap.Int64("frame", frameID), zap.Error(err))

	} else {
		p.completed[frameID] = res
		p.perf.FramesCount++
		p.perf.LatencySum += now.Sub(start)
		p.logger.Debug("request completed", zap.Int64("frame", frameID),
			zap.Duration("latency", now.Sub(start)))
	}

	p.pool.releaseLocked(slot)
	p.perf.NumRequestsInUse = p.pool.inUseLocked()
	p.dataCond.Broadcast()
}

// extractOutputs copies the outputs out of the request so the slot can be
// reused.  A panic raised by the executor is converted to an error as it
// must not escape the executor's goroutine.
func (p *Pipeline) extractOutputs(frameID int64, slot *Slot,
	start time.Time) (res *RequestResult, err error) {

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic extracting outputs: %v", r)
		}
	}()

	outputs := make(map[string]*Tensor, len(p.outputNames))

	for _, name := range p.outputNames {
		t, err := slot.Request.Output(name)

		if err != nil {
			return nil, fmt.Errorf("error reading output %s: %w", name, err)
		}

		outputs[name] = t.Clone()
	}

	return &RequestResult{
		FrameID:   frameID,
		Outputs:   outputs,
		StartTime: start,
	}, nil
}

// skipLocked advances past frames that will never produce a result, mu must
// be held
func (p *Pipeline) skipLocked() {
	for {
		next := p.outputFrameID + 1

		if _, ok := p.skipped[next]; !ok {
			return
		}

		delete(p.skipped, next)
		p.outputFrameID = next
	}
}

// readyLocked reports whether the next expected frame has completed, mu must
// be held
func (p *Pipeline) readyLocked() bool {
	p.skipLocked()
	_, ok := p.completed[p.outputFrameID+1]
	return ok
}

// deliverableLocked reports whether the next expected frame can be returned.
// Once a failure is captured only frames submitted before the failing one are
// delivered.  mu must be held.
func (p *Pipeline) deliverableLocked() bool {

	if !p.readyLocked() {
		return false
	}

	return p.callbackErr == nil || p.outputFrameID+1 < p.failedFrameID
}

// GetResult returns the result of the next frame in submission order if it has
// completed, otherwise an empty RequestResult.  Results that complete out of
// order are held until their predecessors have been retrieved.  Once a
// failure is captured on a callback goroutine the frames before it are still
// returned, after which the failure is returned on every call.
func (p *Pipeline) GetResult() (RequestResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.deliverableLocked() {
		return emptyResult(), p.callbackErr
	}

	next := p.outputFrameID + 1
	res := p.completed[next]
	delete(p.completed, next)
	p.outputFrameID = next

	return *res, nil
}

// WaitForData blocks until the next frame's result is available.  It returns
// a captured callback failure once no frame before the failing one is ready,
// the ctx error if ctx is done first, and nil immediately if no request is
// outstanding.
func (p *Pipeline) WaitForData(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.dataCond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for {
		if p.deliverableLocked() {
			return nil
		}

		if p.callbackErr != nil {
			return p.callbackErr
		}

		if p.outputFrameID >= p.inputFrameID {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		p.dataCond.Wait()
	}
}

// WaitForTotalCompletion blocks until all submitted requests have completed
// or ctx is done
func (p *Pipeline) WaitForTotalCompletion(ctx context.Context) error {
	return p.pool.WaitForTotalCompletion(ctx)
}

// PerformanceInfo returns a snapshot of the performance counters
func (p *Pipeline) PerformanceInfo() PerformanceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := p.perf
	info.NumRequestsInUse = p.pool.inUseLocked()

	if !info.StartTime.IsZero() {
		elapsed := p.now().Sub(info.StartTime).Seconds()

		if elapsed > 0 {
			info.FPS = float64(info.FramesCount) / elapsed
		}
	}

	return info
}

// Close waits for all running requests to complete then closes the request
// pool
func (p *Pipeline) Close() error {

	if err := p.pool.WaitForTotalCompletion(context.Background()); err != nil {
		return err
	}

	return p.pool.Close()
}
