package openpose

import (
	"fmt"
	"strings"
)

// TensorType is the element data type of a Tensor
type TensorType int

const (
	TensorFloat32 TensorType = 0
	TensorFloat16 TensorType = 1
)

// String returns a readable description of the TensorType
func (t TensorType) String() string {
	switch t {
	case TensorFloat32:
		return "FP32"
	case TensorFloat16:
		return "FP16"
	default:
		return "UNKNOW"
	}
}

// TensorAttr describes a model input or output tensor as reported by the
// Executor
type TensorAttr struct {
	Index uint32
	Name  string
	Dims  []int64
	Type  TensorType
}

// NElems returns the number of elements described by the attribute Dims.
// Dynamic dimensions (negative values) are counted as 1.
func (a TensorAttr) NElems() int {

	n := 1

	for _, d := range a.Dims {
		if d > 0 {
			n *= int(d)
		}
	}

	return n
}

// String returns the TensorAttr's attributes formatted as a string
func (a TensorAttr) String() string {

	dims := make([]string, len(a.Dims))

	for i, d := range a.Dims {
		dims[i] = fmt.Sprintf("%d", d)
	}

	return fmt.Sprintf("index=%d, name=%s, n_dims=%d, dims=[%s], type=%s",
		a.Index, a.Name, len(a.Dims), strings.Join(dims, ", "), a.Type.String())
}

// Tensor holds the data of a named tensor in NCHW layout
type Tensor struct {
	Name string
	Dims []int
	Type TensorType
	// BufFloat holds the data when Type is TensorFloat32
	BufFloat []float32
	// BufF16 holds the raw float16 bits when Type is TensorFloat16
	BufF16 []uint16
}

// NewTensor returns a float32 Tensor wrapping data.  The length of data must
// match the product of dims.
func NewTensor(name string, dims []int, data []float32) (*Tensor, error) {

	t := &Tensor{
		Name:     name,
		Dims:     append([]int(nil), dims...),
		Type:     TensorFloat32,
		BufFloat: data,
	}

	if t.NElems() != len(data) {
		return nil, fmt.Errorf("%w: tensor %s has dims %v but %d elements",
			ErrShapeMismatch, name, dims, len(data))
	}

	return t, nil
}

// NewFloat16Tensor returns a float16 Tensor wrapping the raw half precision bits
func NewFloat16Tensor(name string, dims []int, data []uint16) (*Tensor, error) {

	t := &Tensor{
		Name:   name,
		Dims:   append([]int(nil), dims...),
		Type:   TensorFloat16,
		BufF16: data,
	}

	if t.NElems() != len(data) {
		return nil, fmt.Errorf("%w: tensor %s has dims %v but %d elements",
			ErrShapeMismatch, name, dims, len(data))
	}

	return t, nil
}

// NElems returns the number of elements in the tensor
func (t *Tensor) NElems() int {

	if len(t.Dims) == 0 {
		return 0
	}

	n := 1

	for _, d := range t.Dims {
		n *= d
	}

	return n
}

// Float32 returns the tensor data as float32, converting float16 data if
// required
func (t *Tensor) Float32() []float32 {

	if t.Type == TensorFloat16 {
		return convertFloat16BufferToFloat32(t.BufF16)
	}

	return t.BufFloat
}

// Clone returns a deep copy of the tensor so it no longer shares memory with
// the buffers of the request that produced it
func (t *Tensor) Clone() *Tensor {

	c := &Tensor{
		Name: t.Name,
		Dims: append([]int(nil), t.Dims...),
		Type: t.Type,
	}

	if t.BufFloat != nil {
		c.BufFloat = append([]float32(nil), t.BufFloat...)
	}

	if t.BufF16 != nil {
		c.BufF16 = append([]uint16(nil), t.BufF16...)
	}

	return c
}
