package openpose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNewTensorShapeMismatch(t *testing.T) {

	_, err := NewTensor("out", []int{1, 2, 2, 2}, make([]float32, 7))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewFloat16Tensor("out", []int{1, 2}, make([]uint16, 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFloat16Tensor(t *testing.T) {

	data := []uint16{
		float16.Fromfloat32(1.5).Bits(),
		float16.Fromfloat32(-2).Bits(),
		float16.Fromfloat32(0.25).Bits(),
	}

	tensor, err := NewFloat16Tensor("out", []int{1, 3}, data)
	require.NoError(t, err)

	assert.Equal(t, TensorFloat16, tensor.Type)
	assert.Equal(t, []float32{1.5, -2, 0.25}, tensor.Float32())
}

func TestTensorClone(t *testing.T) {

	tensor, err := NewTensor("out", []int{1, 2}, []float32{1, 2})
	require.NoError(t, err)

	clone := tensor.Clone()
	tensor.BufFloat[0] = 9
	tensor.Dims[1] = 5

	assert.Equal(t, []float32{1, 2}, clone.BufFloat)
	assert.Equal(t, []int{1, 2}, clone.Dims)
}

func TestFeatureMaps(t *testing.T) {

	// 1x2x2x3 tensor
	data := []float32{
		0, 1, 2,
		3, 4, 5,

		10, 11, 12,
		13, 14, 15,
	}

	tensor, err := NewTensor("heatmaps", []int{1, 2, 2, 3}, data)
	require.NoError(t, err)

	maps, err := tensor.FeatureMaps()
	require.NoError(t, err)
	require.Len(t, maps, 2)

	assert.Equal(t, 3, maps[0].Width)
	assert.Equal(t, 2, maps[0].Height)
	assert.Equal(t, float32(5), maps[0].At(2, 1))
	assert.Equal(t, float32(13), maps[1].At(0, 1))
	assert.True(t, maps[0].SameSize(maps[1]))

	// appending to a channel must not overwrite the next one
	_ = append(maps[0].Data, 99)
	assert.Equal(t, float32(10), maps[1].At(0, 0))
}

func TestFeatureMapsBadRank(t *testing.T) {

	tensor, err := NewTensor("heatmaps", []int{2, 3}, make([]float32, 6))
	require.NoError(t, err)

	_, err = tensor.FeatureMaps()
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestTensorAttrNElems(t *testing.T) {

	attr := TensorAttr{Name: "data", Dims: []int64{1, 3, 256, 456}, Type: TensorFloat32}

	assert.Equal(t, 3*256*456, attr.NElems())
	assert.Contains(t, attr.String(), "name=data")
}
