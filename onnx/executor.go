package onnx

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/swdee/go-openpose"
	ort "github.com/yalue/onnxruntime_go"
)

// InitEnvironment loads the ONNX Runtime shared library at libPath and
// initializes the runtime environment
func InitEnvironment(libPath string) error {

	if ort.IsInitialized() {
		return nil
	}

	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	return nil
}

// DestroyEnvironment releases the ONNX Runtime environment
func DestroyEnvironment() error {
	return ort.DestroyEnvironment()
}

// Options defines the settings used when creating an Executor
type Options struct {
	// InputNames and OutputNames select the model tensors to bind.  When
	// empty all model inputs or outputs are used.
	InputNames  []string
	OutputNames []string
	// IntraOpThreads and InterOpThreads set the ONNX Runtime thread counts,
	// zero leaves the runtime default
	IntraOpThreads int
	InterOpThreads int
	// Shapes fills in the dynamic dimensions of named tensors, fixed model
	// dimensions are kept
	Shapes map[string][]int64
}

// Executor runs an ONNX model.  Each request owns its own session and
// pre-allocated tensors so requests can run concurrently.
type Executor struct {
	modelPath   string
	opts        Options
	inputAttrs  []openpose.TensorAttr
	outputAttrs []openpose.TensorAttr
}

// NewExecutor reads the input and output tensor information of the model at
// modelPath
func NewExecutor(modelPath string, opts Options) (*Executor, error) {

	// check file exists in Go, before passing to C
	info, err := os.Stat(modelPath)

	if err != nil {
		return nil, fmt.Errorf("model file does not exist at %s, error: %w",
			modelPath, err)
	}

	if info.IsDir() {
		return nil, errors.New("model file is a directory")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)

	if err != nil {
		return nil, fmt.Errorf("error querying model tensors: %w", err)
	}

	e := &Executor{
		modelPath: modelPath,
		opts:      opts,
	}

	e.inputAttrs, err = selectAttrs(inputs, opts.InputNames, opts.Shapes)

	if err != nil {
		return nil, fmt.Errorf("error selecting inputs: %w", err)
	}

	e.outputAttrs, err = selectAttrs(outputs, opts.OutputNames, opts.Shapes)

	if err != nil {
		return nil, fmt.Errorf("error selecting outputs: %w", err)
	}

	return e, nil
}

// selectAttrs converts the model tensor info into TensorAttr for the wanted
// names, applying any shape overrides
func selectAttrs(infos []ort.InputOutputInfo, wanted []string,
	shapes map[string][]int64) ([]openpose.TensorAttr, error) {

	byName := make(map[string]ort.InputOutputInfo, len(infos))
	order := make([]string, 0, len(infos))

	for _, info := range infos {
		byName[info.Name] = info
		order = append(order, info.Name)
	}

	if len(wanted) == 0 {
		wanted = order
	}

	attrs := make([]openpose.TensorAttr, 0, len(wanted))

	for i, name := range wanted {
		info, ok := byName[name]

		if !ok {
			return nil, fmt.Errorf("%w: model has no tensor named %q",
				openpose.ErrShapeMismatch, name)
		}

		dims := []int64(info.Dimensions)

		if override, ok := shapes[name]; ok {
			dims = resolveDims(dims, override)
		}

		tensorType := openpose.TensorFloat32

		if info.DataType == ort.TensorElementDataTypeFloat16 {
			tensorType = openpose.TensorFloat16
		}

		attrs = append(attrs, openpose.TensorAttr{
			Index: uint32(i),
			Name:  name,
			Dims:  append([]int64(nil), dims...),
			Type:  tensorType,
		})
	}

	return attrs, nil
}

// resolveDims replaces the dynamic dimensions, zero or negative, of model
// with those of override.  If the ranks differ the model dims are kept unless
// the model reports no dims at all.
func resolveDims(model, override []int64) []int64 {

	if len(model) == 0 {
		return override
	}

	if len(model) != len(override) {
		return model
	}

	dims := make([]int64, len(model))

	for i, d := range model {
		if d <= 0 {
			d = override[i]
		}

		dims[i] = d
	}

	return dims
}

// InputAttrs returns the bound input tensor attributes
func (e *Executor) InputAttrs() []openpose.TensorAttr {
	return e.inputAttrs
}

// OutputAttrs returns the bound output tensor attributes
func (e *Executor) OutputAttrs() []openpose.TensorAttr {
	return e.outputAttrs
}

// NewRequest creates a session with pre-allocated input and output tensors
func (e *Executor) NewRequest() (openpose.Request, error) {

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}

	defer options.Destroy()

	if e.opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(e.opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("error setting intra op threads: %w", err)
		}
	}

	if e.opts.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(e.opts.InterOpThreads); err != nil {
			return nil, fmt.Errorf("error setting inter op threads: %w", err)
		}
	}

	r := &request{
		inputs:  make(map[string]*ort.Tensor[float32], len(e.inputAttrs)),
		outputs: make(map[string]*ort.Tensor[float32], len(e.outputAttrs)),
	}

	inputNames, inputTensors, err := r.allocate(e.inputAttrs, r.inputs)

	if err != nil {
		r.destroyTensors()
		return nil, err
	}

	outputNames, outputTensors, err := r.allocate(e.outputAttrs, r.outputs)

	if err != nil {
		r.destroyTensors()
		return nil, err
	}

	r.session, err = ort.NewAdvancedSession(
		e.modelPath,
		inputNames,
		outputNames,
		inputTensors,
		outputTensors,
		options,
	)

	if err != nil {
		r.destroyTensors()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return r, nil
}

// request is a single ONNX Runtime session and its bound tensors
type request struct {
	session *ort.AdvancedSession
	inputs  map[string]*ort.Tensor[float32]
	outputs map[string]*ort.Tensor[float32]

	mu      sync.Mutex
	running bool
	closed  bool
}

// allocate creates an empty float32 tensor per attribute
func (r *request) allocate(attrs []openpose.TensorAttr,
	dst map[string]*ort.Tensor[float32]) ([]string, []ort.ArbitraryTensor, error) {

	names := make([]string, 0, len(attrs))
	tensors := make([]ort.ArbitraryTensor, 0, len(attrs))

	for _, attr := range attrs {
		if attr.Type != openpose.TensorFloat32 {
			return nil, nil, fmt.Errorf("tensor %s has unsupported type %s",
				attr.Name, attr.Type)
		}

		for _, d := range attr.Dims {
			if d <= 0 {
				return nil, nil, fmt.Errorf("%w: tensor %s has dynamic dims %v, set Options.Shapes",
					openpose.ErrShapeMismatch, attr.Name, attr.Dims)
			}
		}

		t, err := ort.NewEmptyTensor[float32](ort.NewShape(attr.Dims...))

		if err != nil {
			return nil, nil, fmt.Errorf("error creating tensor %s: %w", attr.Name, err)
		}

		dst[attr.Name] = t
		names = append(names, attr.Name)
		tensors = append(tensors, t)
	}

	return names, tensors, nil
}

// SetInputs copies the input data into the session's input tensors
func (r *request) SetInputs(inputs map[string]*openpose.Tensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("request is running")
	}

	for name, t := range inputs {
		dst, ok := r.inputs[name]

		if !ok {
			return fmt.Errorf("model has no input named %q", name)
		}

		buf := dst.GetData()
		data := t.Float32()

		if len(buf) != len(data) {
			return fmt.Errorf("%w: input %s expects %d elements, got %d",
				openpose.ErrShapeMismatch, name, len(buf), len(data))
		}

		copy(buf, data)
	}

	return nil
}

// StartAsync runs the session on a new goroutine
func (r *request) StartAsync(done openpose.CompletionFunc) error {
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
	r.mu.Unlock()

	go func() {
		err := r.session.Run()

		r.mu.Lock()
		r.running = false
		r.mu.Unlock()

		if err != nil {
			err = fmt.Errorf("error running session: %w", err)
		}

		done(err)
	}()

	return nil
}

// Output returns the named output tensor.  The data shares memory with the
// session and is overwritten by the next run.
func (r *request) Output(name string) (*openpose.Tensor, error) {

	t, ok := r.outputs[name]

	if !ok {
		return nil, fmt.Errorf("model has no output named %q", name)
	}

	shape := t.GetShape()
	dims := make([]int, len(shape))

	for i, d := range shape {
		dims[i] = int(d)
	}

	return openpose.NewTensor(name, dims, t.GetData())
}

// Close destroys the session and its tensors
func (r *request) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	var err error

	if r.session != nil {
		err = r.session.Destroy()
	}

	r.destroyTensors()

	return err
}

// destroyTensors releases all allocated tensors
func (r *request) destroyTensors() {

	for _, t := range r.inputs {
		t.Destroy()
	}

	for _, t := range r.outputs {
		t.Destroy()
	}
}
