package openpose

// CompletionFunc is invoked by an Executor when an asynchronous run finishes.
// It is called on a goroutine owned by the Executor, never on the goroutine
// that started the run.  err is non nil if the run failed.
type CompletionFunc func(err error)

// Executor is the tensor runtime a Pipeline dispatches work to.  It loads the
// model, binds it to a device and creates reusable requests.
type Executor interface {
	// NewRequest creates a reusable inference request
	NewRequest() (Request, error)
	// InputAttrs returns the model's input tensor attributes
	InputAttrs() []TensorAttr
	// OutputAttrs returns the model's output tensor attributes
	OutputAttrs() []TensorAttr
}

// Request is a single reusable computation handle created by an Executor.  A
// Request runs one computation at a time.
type Request interface {
	// SetInputs binds the named input tensors for the next run
	SetInputs(inputs map[string]*Tensor) error
	// StartAsync starts the computation and returns immediately.  done is
	// called exactly once when the computation completes or fails.
	StartAsync(done CompletionFunc) error
	// Output returns the named output tensor of the last completed run.  The
	// returned tensor may share memory with the request.
	Output(name string) (*Tensor, error)
	// Close releases the resources held by the request
	Close() error
}
