package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDims(t *testing.T) {

	tests := []struct {
		name     string
		model    []int64
		override []int64
		want     []int64
	}{
		{"fixed model kept", []int64{1, 19, 32, 57}, []int64{1, 19, 32, 43}, []int64{1, 19, 32, 57}},
		{"dynamic filled", []int64{-1, 3, 256, -1}, []int64{1, 3, 256, 344}, []int64{1, 3, 256, 344}},
		{"unknown rank", nil, []int64{1, 38, 32, 43}, []int64{1, 38, 32, 43}},
		{"rank differs", []int64{1, -1}, []int64{1, 3, 256, 456}, []int64{1, -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveDims(tc.model, tc.override))
		})
	}
}

func TestNewExecutorMissingModel(t *testing.T) {

	_, err := NewExecutor("/nonexistent/openpose.onnx", Options{})
	assert.Error(t, err)
}
