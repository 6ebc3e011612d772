package postprocess

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/swdee/go-openpose"
	"github.com/swdee/go-openpose/postprocess/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoJointParams returns params for a skeleton of two keypoints joined by a
// single limb on feature maps used at full resolution
func twoJointParams() OpenPoseParams {
	p := OpenPoseCOCOParams()
	p.KeyPointsNumber = 2
	p.Limbs = []Limb{{From: 0, To: 1, PafX: 0, PafY: 1}}
	p.MinJointsNumber = 2
	p.Stride = 1
	p.UpsampleRatio = 1
	p.HeatmapOutput = "heatmaps"
	p.PAFOutput = "pafs"
	return p
}

// twoJointMaps returns empty heatmaps, including background, and PAFs whose x
// component is pafX everywhere
func twoJointMaps(width, height int, pafX float32) ([]openpose.FeatureMap, []openpose.FeatureMap) {

	heatmaps := []openpose.FeatureMap{
		openpose.NewFeatureMap(width, height),
		openpose.NewFeatureMap(width, height),
		openpose.NewFeatureMap(width, height),
	}

	pafs := []openpose.FeatureMap{
		openpose.NewFeatureMap(width, height),
		openpose.NewFeatureMap(width, height),
	}

	for i := range pafs[0].Data {
		pafs[0].Data[i] = pafX
	}

	return heatmaps, pafs
}

var approx = cmpopts.EquateApprox(0, 1e-5)

func newDecoder(t *testing.T, p OpenPoseParams) *OpenPose {
	o, err := NewOpenPose(p)
	require.NoError(t, err)
	return o
}

func TestDecodeSinglePose(t *testing.T) {

	o := newDecoder(t, twoJointParams())

	heatmaps, pafs := twoJointMaps(8, 8, 1)
	heatmaps[0].Set(1, 4, 0.9)
	heatmaps[1].Set(4, 4, 0.8)

	poses, err := o.Decode(heatmaps, pafs)
	require.NoError(t, err)

	want := []result.HumanPose{{
		KeyPoints: []result.KeyPoint{{X: 1.5, Y: 4.5}, {X: 4.5, Y: 4.5}},
		Score:     0.9 + 0.8 + 1,
	}}

	if diff := cmp.Diff(want, poses, approx); diff != "" {
		t.Errorf("unexpected poses (-want +got):\n%s", diff)
	}

	// decoding is deterministic
	again, err := o.Decode(heatmaps, pafs)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(poses, again))
}

func TestDecodeLongLimbPenalty(t *testing.T) {

	o := newDecoder(t, twoJointParams())

	// limb of length 8 on a map of height 4 is penalised by 2/8-1
	heatmaps, pafs := twoJointMaps(12, 4, 1)
	heatmaps[0].Set(1, 1, 0.9)
	heatmaps[1].Set(9, 1, 0.8)

	poses, err := o.Decode(heatmaps, pafs)
	require.NoError(t, err)
	require.Len(t, poses, 1)

	assert.InDelta(t, 0.9+0.8+0.25, poses[0].Score, 1e-5)
}

func TestDecodeTwoPoses(t *testing.T) {

	o := newDecoder(t, twoJointParams())

	heatmaps, pafs := twoJointMaps(10, 12, 1)
	heatmaps[0].Set(1, 2, 0.9)
	heatmaps[1].Set(4, 2, 0.8)
	heatmaps[0].Set(1, 8, 0.7)
	heatmaps[1].Set(4, 8, 0.6)

	poses, err := o.Decode(heatmaps, pafs)
	require.NoError(t, err)

	want := []result.HumanPose{
		{
			KeyPoints: []result.KeyPoint{{X: 1.5, Y: 2.5}, {X: 4.5, Y: 2.5}},
			Score:     0.9 + 0.8 + 1,
		},
		{
			KeyPoints: []result.KeyPoint{{X: 1.5, Y: 8.5}, {X: 4.5, Y: 8.5}},
			Score:     0.7 + 0.6 + 1,
		},
	}

	if diff := cmp.Diff(want, poses, approx); diff != "" {
		t.Errorf("unexpected poses (-want +got):\n%s", diff)
	}
}

func TestDecodeMisalignedPAF(t *testing.T) {

	o := newDecoder(t, twoJointParams())

	// the field points from keypoint 1 towards keypoint 0
	heatmaps, pafs := twoJointMaps(8, 8, -1)
	heatmaps[0].Set(1, 4, 0.9)
	heatmaps[1].Set(4, 4, 0.8)

	poses, err := o.Decode(heatmaps, pafs)
	require.NoError(t, err)
	assert.Empty(t, poses)
}

func TestDecodeFilters(t *testing.T) {

	heatmaps, pafs := twoJointMaps(8, 8, 1)
	heatmaps[0].Set(1, 4, 0.9)
	heatmaps[1].Set(4, 4, 0.8)

	tests := []struct {
		name   string
		modify func(p *OpenPoseParams)
		want   int
	}{
		{"passes", func(p *OpenPoseParams) {}, 1},
		{"too few joints", func(p *OpenPoseParams) { p.MinJointsNumber = 3 }, 0},
		{"score too low", func(p *OpenPoseParams) { p.MinSubsetScore = 3 }, 0},
		{"peaks below threshold", func(p *OpenPoseParams) { p.PeakThreshold = 0.95 }, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := twoJointParams()
			tc.modify(&p)

			poses, err := newDecoder(t, p).Decode(heatmaps, pafs)
			require.NoError(t, err)
			assert.Len(t, poses, tc.want)

			for _, pose := range poses {
				assert.GreaterOrEqual(t, pose.Present(), p.MinJointsNumber)
				assert.GreaterOrEqual(t, pose.Score, p.MinSubsetScore)
			}
		})
	}
}

func TestDecodeMergesChains(t *testing.T) {

	// a chain of three keypoints where the middle limb is connected last
	p := twoJointParams()
	p.KeyPointsNumber = 4
	p.Limbs = []Limb{
		{From: 0, To: 1, PafX: 0, PafY: 1},
		{From: 2, To: 3, PafX: 2, PafY: 3},
		{From: 1, To: 2, PafX: 4, PafY: 5},
	}
	p.MinJointsNumber = 4
	o := newDecoder(t, p)

	heatmaps := make([]openpose.FeatureMap, 5)
	pafs := make([]openpose.FeatureMap, 6)

	for i := range heatmaps {
		heatmaps[i] = openpose.NewFeatureMap(16, 16)
	}

	for i := range pafs {
		pafs[i] = openpose.NewFeatureMap(16, 16)
	}

	for _, ch := range []int{0, 2, 4} {
		for i := range pafs[ch].Data {
			pafs[ch].Data[i] = 1
		}
	}

	heatmaps[0].Set(1, 8, 0.9)
	heatmaps[1].Set(4, 8, 0.9)
	heatmaps[2].Set(7, 8, 0.9)
	heatmaps[3].Set(10, 8, 0.9)

	poses, err := o.Decode(heatmaps, pafs)
	require.NoError(t, err)
	require.Len(t, poses, 1)

	assert.Equal(t, 4, poses[0].Present())
	assert.InDelta(t, 4*0.9+3, poses[0].Score, 1e-5)
}

func TestDecodeNoPeaks(t *testing.T) {

	p := OpenPoseCOCOParams()
	p.KeyPointsNumber = 1
	p.Limbs = nil
	o := newDecoder(t, p)

	poses, err := o.Decode([]openpose.FeatureMap{
		openpose.NewFeatureMap(1, 1),
		openpose.NewFeatureMap(1, 1),
	}, nil)

	require.NoError(t, err)
	assert.Empty(t, poses)
}

func TestDecodeShapeMismatch(t *testing.T) {

	o := newDecoder(t, twoJointParams())

	heatmaps, pafs := twoJointMaps(8, 8, 1)

	_, err := o.Decode(heatmaps[:2], pafs)
	assert.ErrorIs(t, err, openpose.ErrShapeMismatch)

	_, err = o.Decode(heatmaps, pafs[:1])
	assert.ErrorIs(t, err, openpose.ErrShapeMismatch)

	odd := append([]openpose.FeatureMap{}, pafs...)
	odd[1] = openpose.NewFeatureMap(8, 7)

	_, err = o.Decode(heatmaps, odd)
	assert.ErrorIs(t, err, openpose.ErrShapeMismatch)
}

func TestNewOpenPoseInvalidTopology(t *testing.T) {

	p := OpenPoseCOCOParams()
	p.Limbs = append(p.Limbs, Limb{From: 0, To: 18, PafX: 0, PafY: 1})

	_, err := NewOpenPose(p)
	assert.ErrorIs(t, err, openpose.ErrShapeMismatch)

	p = OpenPoseCOCOParams()
	p.Limbs[0].PafY = 38

	_, err = NewOpenPose(p)
	assert.ErrorIs(t, err, openpose.ErrShapeMismatch)

	_, err = NewOpenPose(OpenPoseCOCOParams())
	assert.NoError(t, err)
}

func TestCOCOLimbsUseEveryPAFChannel(t *testing.T) {

	limbs := COCOLimbs()
	require.Len(t, limbs, 19)

	seen := make(map[int]bool)

	for _, l := range limbs {
		seen[l.PafX] = true
		seen[l.PafY] = true
	}

	assert.Len(t, seen, 38)
}

// mapsTensor packs feature maps into a 1xCxHxW tensor
func mapsTensor(t *testing.T, name string, maps []openpose.FeatureMap) *openpose.Tensor {

	data := make([]float32, 0)

	for _, m := range maps {
		data = append(data, m.Data...)
	}

	tensor, err := openpose.NewTensor(name,
		[]int{1, len(maps), maps[0].Height, maps[0].Width}, data)
	require.NoError(t, err)

	return tensor
}

func TestDetectPoses(t *testing.T) {

	p := twoJointParams()
	p.Stride = 2
	p.UpsampleRatio = 2
	o := newDecoder(t, p)

	heatmaps, pafs := twoJointMaps(8, 8, 1)
	heatmaps[0].Set(1, 4, 0.9)
	heatmaps[1].Set(4, 4, 0.8)

	res := openpose.RequestResult{
		FrameID: 1,
		Outputs: map[string]*openpose.Tensor{
			"heatmaps": mapsTensor(t, "heatmaps", heatmaps),
			"pafs":     mapsTensor(t, "pafs", pafs),
		},
	}

	_, err := o.DetectPoses(res, result.Padding{}, 8, 8)
	assert.Error(t, err, "upsampler required")

	calls := 0

	o.SetUpsampler(func(maps []openpose.FeatureMap, ratio int) ([]openpose.FeatureMap, error) {
		calls++
		assert.Equal(t, 2, ratio)
		return maps, nil
	})

	// stride and upsample ratio cancel out so an unpadded 16x16 image maps
	// the keypoints by a factor of 2
	poses, err := o.DetectPoses(res, result.Padding{}, 16, 16)
	require.NoError(t, err)
	require.Len(t, poses, 1)
	assert.Equal(t, 2, calls)

	want := []result.KeyPoint{{X: 3, Y: 9}, {X: 9, Y: 9}}

	if diff := cmp.Diff(want, poses[0].KeyPoints, approx); diff != "" {
		t.Errorf("unexpected keypoints (-want +got):\n%s", diff)
	}

	delete(res.Outputs, "pafs")

	_, err = o.DetectPoses(res, result.Padding{}, 16, 16)
	assert.ErrorIs(t, err, openpose.ErrShapeMismatch)
}

// chainMaps returns four heatmap channels and six PAF channels of 16x16 with
// the given keypoint peaks and a uniform field per limb
func chainMaps(peaks map[int][][2]int, fields [3][2]float32) ([]openpose.FeatureMap, []openpose.FeatureMap) {

	heatmaps := make([]openpose.FeatureMap, 4)
	pafs := make([]openpose.FeatureMap, 6)

	for i := range heatmaps {
		heatmaps[i] = openpose.NewFeatureMap(16, 16)
	}

	for i := range pafs {
		pafs[i] = openpose.NewFeatureMap(16, 16)
	}

	for kp, points := range peaks {
		for _, pt := range points {
			heatmaps[kp].Set(pt[0], pt[1], 0.9)
		}
	}

	for limb, field := range fields {
		for i := range pafs[2*limb].Data {
			pafs[2*limb].Data[i] = field[0]
			pafs[2*limb+1].Data[i] = field[1]
		}
	}

	return heatmaps, pafs
}

func TestDecodeChainConnections(t *testing.T) {

	p := twoJointParams()
	p.KeyPointsNumber = 3
	p.Limbs = []Limb{
		{From: 0, To: 1, PafX: 0, PafY: 1},
		{From: 1, To: 2, PafX: 2, PafY: 3},
		{From: 0, To: 2, PafX: 4, PafY: 5},
	}
	o := newDecoder(t, p)

	absent := result.Absent
	right := [2]float32{1, 0}
	down := [2]float32{0, 1}

	tests := []struct {
		name   string
		peaks  map[int][][2]int
		fields [3][2]float32
		want   []result.HumanPose
	}{
		{
			// the last limb joins two chains that both hold keypoint 1
			name: "merge of chains sharing a keypoint is refused",
			peaks: map[int][][2]int{
				0: {{1, 2}},
				1: {{4, 2}, {4, 10}},
				2: {{7, 10}},
			},
			fields: [3][2]float32{right, right, right},
			want: []result.HumanPose{
				{
					KeyPoints: []result.KeyPoint{{X: 1.5, Y: 2.5}, {X: 4.5, Y: 2.5}, absent},
					Score:     0.9 + 0.9 + 1,
				},
				{
					KeyPoints: []result.KeyPoint{absent, {X: 4.5, Y: 10.5}, {X: 7.5, Y: 10.5}},
					Score:     0.9 + 0.9 + 1,
				},
			},
		},
		{
			// the last limb reaches a second keypoint 2 peak while the chain
			// already holds one
			name: "attach into an occupied keypoint is dropped",
			peaks: map[int][][2]int{
				0: {{1, 2}},
				1: {{4, 2}},
				2: {{7, 2}, {7, 10}},
			},
			fields: [3][2]float32{right, right, down},
			want: []result.HumanPose{{
				KeyPoints: []result.KeyPoint{{X: 1.5, Y: 2.5}, {X: 4.5, Y: 2.5}, {X: 7.5, Y: 2.5}},
				Score:     3*0.9 + 2,
			}},
		},
		{
			name: "connection within one chain is ignored",
			peaks: map[int][][2]int{
				0: {{1, 2}},
				1: {{4, 2}},
				2: {{7, 2}},
			},
			fields: [3][2]float32{right, right, right},
			want: []result.HumanPose{{
				KeyPoints: []result.KeyPoint{{X: 1.5, Y: 2.5}, {X: 4.5, Y: 2.5}, {X: 7.5, Y: 2.5}},
				Score:     3*0.9 + 2,
			}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			heatmaps, pafs := chainMaps(tc.peaks, tc.fields)

			poses, err := o.Decode(heatmaps, pafs)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.want, poses, approx); diff != "" {
				t.Errorf("unexpected poses (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateModel(t *testing.T) {

	o := newDecoder(t, OpenPoseCOCOParams())

	input := func(dims ...int64) []openpose.TensorAttr {
		return []openpose.TensorAttr{{Index: 0, Name: "data", Dims: dims}}
	}

	outputs := func(heat, paf []int64) []openpose.TensorAttr {
		return []openpose.TensorAttr{
			{Index: 0, Name: "Mconv7_stage2_L1", Dims: paf},
			{Index: 1, Name: "Mconv7_stage2_L2", Dims: heat},
		}
	}

	tests := []struct {
		name    string
		inputs  []openpose.TensorAttr
		outputs []openpose.TensorAttr
		wantErr bool
	}{
		{
			name:    "matching model",
			inputs:  input(1, 3, 256, 456),
			outputs: outputs([]int64{1, 19, 32, 57}, []int64{1, 38, 32, 57}),
		},
		{
			name:    "dynamic dims",
			inputs:  input(-1, 3, -1, -1),
			outputs: outputs([]int64{-1, 19, -1, -1}, []int64{-1, 38, -1, -1}),
		},
		{
			name:    "wrong heatmap channels",
			inputs:  input(1, 3, 256, 456),
			outputs: outputs([]int64{1, 18, 32, 57}, []int64{1, 38, 32, 57}),
			wantErr: true,
		},
		{
			name:    "wrong PAF channels",
			inputs:  input(1, 3, 256, 456),
			outputs: outputs([]int64{1, 19, 32, 57}, []int64{1, 36, 32, 57}),
			wantErr: true,
		},
		{
			name:    "spatial size differs",
			inputs:  input(1, 3, 256, 456),
			outputs: outputs([]int64{1, 19, 32, 57}, []int64{1, 38, 32, 56}),
			wantErr: true,
		},
		{
			name:    "batch of two",
			inputs:  input(1, 3, 256, 456),
			outputs: outputs([]int64{2, 19, 32, 57}, []int64{2, 38, 32, 57}),
			wantErr: true,
		},
		{
			name:    "rank three output",
			inputs:  input(1, 3, 256, 456),
			outputs: outputs([]int64{19, 32, 57}, []int64{1, 38, 32, 57}),
			wantErr: true,
		},
		{
			name:    "grayscale input",
			inputs:  input(1, 1, 256, 456),
			outputs: outputs([]int64{1, 19, 32, 57}, []int64{1, 38, 32, 57}),
			wantErr: true,
		},
		{
			name:    "two inputs",
			inputs:  append(input(1, 3, 256, 456), openpose.TensorAttr{Index: 1, Name: "extra", Dims: []int64{1}}),
			outputs: outputs([]int64{1, 19, 32, 57}, []int64{1, 38, 32, 57}),
			wantErr: true,
		},
		{
			name:   "missing heatmap output",
			inputs: input(1, 3, 256, 456),
			outputs: []openpose.TensorAttr{
				{Index: 0, Name: "Mconv7_stage2_L1", Dims: []int64{1, 38, 32, 57}},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := openpose.NewLocalExecutor(nil, tc.inputs, tc.outputs)

			err := o.ValidateModel(exec.InputAttrs(), exec.OutputAttrs())

			if tc.wantErr {
				assert.ErrorIs(t, err, openpose.ErrShapeMismatch)
				return
			}

			assert.NoError(t, err)
		})
	}
}
