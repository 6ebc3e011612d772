package openpose

import (
	"errors"
	"fmt"
	"sync"
)

// InferenceFunc computes the named output tensors from the named input tensors
type InferenceFunc func(inputs map[string]*Tensor) (map[string]*Tensor, error)

// LocalExecutor is an Executor that runs a Go InferenceFunc.  Each run is
// executed on its own goroutine so completion callbacks fire concurrently
// with, and independently of, the submitting goroutine.
type LocalExecutor struct {
	fn          InferenceFunc
	inputAttrs  []TensorAttr
	outputAttrs []TensorAttr
}

// NewLocalExecutor returns a LocalExecutor running fn.  The attributes are
// reported through InputAttrs and OutputAttrs.
func NewLocalExecutor(fn InferenceFunc, inputs, outputs []TensorAttr) *LocalExecutor {
	return &LocalExecutor{
		fn:          fn,
		inputAttrs:  inputs,
		outputAttrs: outputs,
	}
}

// NewRequest creates a new request
func (e *LocalExecutor) NewRequest() (Request, error) {
	return &localRequest{exec: e}, nil
}

// InputAttrs returns the input tensor attributes
func (e *LocalExecutor) InputAttrs() []TensorAttr {
	return e.inputAttrs
}

// OutputAttrs returns the output tensor attributes
func (e *LocalExecutor) OutputAttrs() []TensorAttr {
	return e.outputAttrs
}

// localRequest is a Request of a LocalExecutor
type localRequest struct {
	exec *LocalExecutor

	mu      sync.Mutex
	inputs  map[string]*Tensor
	outputs map[string]*Tensor
	running bool
	closed  bool
}

// SetInputs binds the inputs for the next run
func (r *localRequest) SetInputs(inputs map[string]*Tensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("request is running")
	}

	r.inputs = inputs
	return nil
}

// StartAsync runs the inference function on a new goroutine
func (r *localRequest) StartAsync(done CompletionFunc) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return errors.New("request is closed")
	}

	if r.running {
		r.mu.Unlock()
		return errors.New("request is already running")
	}

	r.running = true
	inputs := r.inputs
	r.mu.Unlock()

	go func() {
		outputs, err := r.exec.fn(inputs)

		r.mu.Lock()
		r.outputs = outputs
		r.running = false
		r.mu.Unlock()

		done(err)
	}()

	return nil
}

// Output returns the named output of the last run
func (r *localRequest) Output(name string) (*Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.outputs[name]

	if !ok {
		return nil, fmt.Errorf("output %q not produced", name)
	}

	return t, nil
}

// Close the request
func (r *localRequest) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.inputs = nil
	r.outputs = nil
	return nil
}
