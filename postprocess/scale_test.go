package postprocess

import (
	"testing"

	"github.com/swdee/go-openpose/postprocess/result"
	"github.com/stretchr/testify/assert"
)

func TestRescale(t *testing.T) {

	o, err := NewOpenPose(OpenPoseCOCOParams())
	assert.NoError(t, err)

	pose := result.NewHumanPose(18)
	pose.KeyPoints[0] = result.KeyPoint{X: 15, Y: 20}
	pose.KeyPoints[1] = result.KeyPoint{X: 10, Y: 5}
	poses := []result.HumanPose{pose}

	// stride 8 and upsample 4 give a 100x50 map of a 200x100 input, with
	// padding that differs on every side
	pad := result.Padding{Top: 10, Left: 20, Bottom: 10, Right: 30}

	o.Rescale(poses, 100, 50, pad, 300, 160)

	assert.Equal(t, result.KeyPoint{X: 20, Y: 60}, poses[0].KeyPoints[0])
	assert.Equal(t, result.KeyPoint{X: 0, Y: 0}, poses[0].KeyPoints[1])
	assert.True(t, poses[0].KeyPoints[2].IsAbsent())
	assert.Equal(t, 2, poses[0].Present())
}
