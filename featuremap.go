package openpose

import "fmt"

// FeatureMap is a single 2D channel of a model output tensor stored in row
// major order
type FeatureMap struct {
	Width  int
	Height int
	Data   []float32
}

// NewFeatureMap returns a zeroed FeatureMap of the given size
func NewFeatureMap(width, height int) FeatureMap {
	return FeatureMap{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// At returns the value at column x and row y
func (f FeatureMap) At(x, y int) float32 {
	return f.Data[y*f.Width+x]
}

// Set the value at column x and row y
func (f FeatureMap) Set(x, y int, val float32) {
	f.Data[y*f.Width+x] = val
}

// SameSize reports whether both feature maps have identical dimensions
func (f FeatureMap) SameSize(o FeatureMap) bool {
	return f.Width == o.Width && f.Height == o.Height
}

// FeatureMaps splits a 1xCxHxW tensor into C feature maps.  The returned maps
// share memory with the tensor unless it holds float16 data.
func (t *Tensor) FeatureMaps() ([]FeatureMap, error) {

	if len(t.Dims) != 4 || t.Dims[0] != 1 {
		return nil, fmt.Errorf("%w: tensor %s expected 1xCxHxW dims, got %v",
			ErrShapeMismatch, t.Name, t.Dims)
	}

	channels := t.Dims[1]
	height := t.Dims[2]
	width := t.Dims[3]
	size := width * height

	data := t.Float32()

	if len(data) != channels*size {
		return nil, fmt.Errorf("%w: tensor %s has %d elements, expected %d",
			ErrShapeMismatch, t.Name, len(data), channels*size)
	}

	maps := make([]FeatureMap, channels)

	for c := 0; c < channels; c++ {
		maps[c] = FeatureMap{
			Width:  width,
			Height: height,
			Data:   data[c*size : (c+1)*size : (c+1)*size],
		}
	}

	return maps, nil
}
