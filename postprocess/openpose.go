package postprocess

import (
	"fmt"
	"runtime"

	"github.com/swdee/go-openpose"
	"github.com/swdee/go-openpose/postprocess/result"
	"golang.org/x/sync/errgroup"
)

// OpenPose defines the struct for OpenPose model inference post processing
type OpenPose struct {
	// Params are the Model configuration parameters
	Params OpenPoseParams
	// upsampler resizes feature maps by Params.UpsampleRatio before decoding
	upsampler Upsampler
}

// Upsampler resizes feature maps by the given ratio
type Upsampler func(maps []openpose.FeatureMap, ratio int) ([]openpose.FeatureMap, error)

// OpenPoseParams defines the struct containing the OpenPose parameters to use
// for post processing operations
type OpenPoseParams struct {
	// KeyPointsNumber is the number of keypoints in a pose, the heatmap output
	// has one more channel for the background
	KeyPointsNumber int `koanf:"keypointsnumber"`
	// Limbs is the skeleton topology, the PAF output has two channels per limb
	Limbs []Limb `koanf:"limbs"`
	// PeakThreshold is the minimum heatmap score for a peak
	PeakThreshold float32 `koanf:"peakthreshold"`
	// MinPeaksDistance is the minimum distance in feature map pixels between
	// two peaks of the same keypoint
	MinPeaksDistance float32 `koanf:"minpeaksdistance"`
	// MidPointsNumber is the number of points sampled along a candidate limb
	MidPointsNumber int `koanf:"midpointsnumber"`
	// MidPointsScoreThreshold is the minimum PAF alignment for a sampled point
	// to count towards a limb
	MidPointsScoreThreshold float32 `koanf:"midpointsscorethreshold"`
	// FoundMidPointsRatioThreshold is the fraction of sampled points that
	// must be aligned for a limb to be valid
	FoundMidPointsRatioThreshold float32 `koanf:"foundmidpointsratiothreshold"`
	// MinJointsNumber is the minimum number of keypoints a pose must have
	MinJointsNumber int `koanf:"minjointsnumber"`
	// MinSubsetScore is the minimum accumulated score a pose must have
	MinSubsetScore float32 `koanf:"minsubsetscore"`
	// Stride is the ratio between the model input and output resolution
	Stride int `koanf:"stride"`
	// UpsampleRatio is the factor feature maps are enlarged by before peak
	// extraction
	UpsampleRatio int `koanf:"upsampleratio"`
	// HeatmapOutput is the name of the heatmap output tensor
	HeatmapOutput string `koanf:"heatmapoutput"`
	// PAFOutput is the name of the part affinity field output tensor
	PAFOutput string `koanf:"pafoutput"`
}

// OpenPoseCOCOParams returns an instance of OpenPoseParams configured with
// default values for the 18 keypoint COCO OpenPose model featuring:
// - KeyPoints Number: 18
// - Limbs: 19
// - Stride: 8
// - Upsample Ratio: 4
// - Min Joints Number: 3
// - Min Subset Score: 0.2
func OpenPoseCOCOParams() OpenPoseParams {
	return OpenPoseParams{
		KeyPointsNumber:              18,
		Limbs:                        COCOLimbs(),
		PeakThreshold:                0.1,
		MinPeaksDistance:             3,
		MidPointsNumber:              10,
		MidPointsScoreThreshold:      0.05,
		FoundMidPointsRatioThreshold: 0.8,
		MinJointsNumber:              3,
		MinSubsetScore:               0.2,
		Stride:                       8,
		UpsampleRatio:                4,
		HeatmapOutput:                "Mconv7_stage2_L2",
		PAFOutput:                    "Mconv7_stage2_L1",
	}
}

// NewOpenPose returns an instance of the OpenPose post processor.  An error
// wrapping openpose.ErrShapeMismatch is returned if the topology is invalid.
func NewOpenPose(p OpenPoseParams) (*OpenPose, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &OpenPose{
		Params: p,
	}, nil
}

// SetUpsampler sets the function used by DetectPoses to enlarge the feature
// maps when UpsampleRatio is greater than 1
func (o *OpenPose) SetUpsampler(u Upsampler) {
	o.upsampler = u
}

// Validate checks the parameters describe a consistent topology
func (p OpenPoseParams) Validate() error {

	if p.KeyPointsNumber <= 0 {
		return fmt.Errorf("%w: keypoints number must be positive, got %d",
			openpose.ErrShapeMismatch, p.KeyPointsNumber)
	}

	pafChannels := 2 * len(p.Limbs)

	for i, l := range p.Limbs {
		if l.From < 0 || l.From >= p.KeyPointsNumber ||
			l.To < 0 || l.To >= p.KeyPointsNumber || l.From == l.To {
			return fmt.Errorf("%w: limb %d joins invalid keypoints %d and %d",
				openpose.ErrShapeMismatch, i, l.From, l.To)
		}

		if l.PafX < 0 || l.PafX >= pafChannels || l.PafY < 0 || l.PafY >= pafChannels {
			return fmt.Errorf("%w: limb %d uses PAF channels %d,%d outside [0,%d)",
				openpose.ErrShapeMismatch, i, l.PafX, l.PafY, pafChannels)
		}
	}

	if p.MidPointsNumber < 2 {
		return fmt.Errorf("mid points number must be at least 2, got %d", p.MidPointsNumber)
	}

	if p.Stride <= 0 || p.UpsampleRatio <= 0 {
		return fmt.Errorf("stride and upsample ratio must be positive, got %d and %d",
			p.Stride, p.UpsampleRatio)
	}

	return nil
}

// ValidateModel checks the model tensors reported by an Executor match the
// configured topology.  The model must have a single 1x3xHxW input and the
// heatmap and PAF outputs must be 1x(N+1)xHxW and 1x(2E)xHxW with the same
// spatial size.  Dynamic dimensions, zero or negative, are not compared.  An
// error wrapping openpose.ErrShapeMismatch is returned on any mismatch.
func (o *OpenPose) ValidateModel(inputs, outputs []openpose.TensorAttr) error {

	if len(inputs) != 1 {
		return fmt.Errorf("%w: model must have exactly one input, got %d",
			openpose.ErrShapeMismatch, len(inputs))
	}

	if err := checkDims(inputs[0], 3); err != nil {
		return err
	}

	var heatAttr, pafAttr *openpose.TensorAttr

	for i := range outputs {
		switch outputs[i].Name {
		case o.Params.HeatmapOutput:
			heatAttr = &outputs[i]
		case o.Params.PAFOutput:
			pafAttr = &outputs[i]
		}
	}

	if heatAttr == nil || pafAttr == nil {
		return fmt.Errorf("%w: model must have outputs %q and %q",
			openpose.ErrShapeMismatch, o.Params.HeatmapOutput, o.Params.PAFOutput)
	}

	if err := checkDims(*heatAttr, int64(o.Params.KeyPointsNumber+1)); err != nil {
		return err
	}

	if err := checkDims(*pafAttr, int64(2*len(o.Params.Limbs))); err != nil {
		return err
	}

	for _, axis := range []int{2, 3} {
		h, p := heatAttr.Dims[axis], pafAttr.Dims[axis]

		if h > 0 && p > 0 && h != p {
			return fmt.Errorf("%w: heatmap dims %v and PAF dims %v differ in size",
				openpose.ErrShapeMismatch, heatAttr.Dims, pafAttr.Dims)
		}
	}

	return nil
}

// checkDims checks a tensor is 1xCxHxW with the given channel count
func checkDims(attr openpose.TensorAttr, channels int64) error {

	if len(attr.Dims) != 4 {
		return fmt.Errorf("%w: tensor %s must have 4 dims, got %v",
			openpose.ErrShapeMismatch, attr.Name, attr.Dims)
	}

	if attr.Dims[0] > 0 && attr.Dims[0] != 1 {
		return fmt.Errorf("%w: tensor %s must have batch size 1, got %v",
			openpose.ErrShapeMismatch, attr.Name, attr.Dims)
	}

	if attr.Dims[1] > 0 && attr.Dims[1] != channels {
		return fmt.Errorf("%w: tensor %s must have %d channels, got %v",
			openpose.ErrShapeMismatch, attr.Name, channels, attr.Dims)
	}

	return nil
}

// validateMaps checks the heatmaps and PAFs match the configured topology
func (o *OpenPose) validateMaps(heatmaps, pafs []openpose.FeatureMap) error {

	if len(heatmaps) != o.Params.KeyPointsNumber+1 {
		return fmt.Errorf("%w: expected %d heatmap channels, got %d",
			openpose.ErrShapeMismatch, o.Params.KeyPointsNumber+1, len(heatmaps))
	}

	if len(pafs) != 2*len(o.Params.Limbs) {
		return fmt.Errorf("%w: expected %d PAF channels, got %d",
			openpose.ErrShapeMismatch, 2*len(o.Params.Limbs), len(pafs))
	}

	ref := heatmaps[0]

	if ref.Width <= 0 || ref.Height <= 0 {
		return fmt.Errorf("%w: empty feature map %dx%d",
			openpose.ErrShapeMismatch, ref.Width, ref.Height)
	}

	for _, set := range [][]openpose.FeatureMap{heatmaps, pafs} {
		for i, fm := range set {
			if !fm.SameSize(ref) || len(fm.Data) != fm.Width*fm.Height {
				return fmt.Errorf("%w: feature map %d is %dx%d with %d values, expected %dx%d",
					openpose.ErrShapeMismatch, i, fm.Width, fm.Height, len(fm.Data),
					ref.Width, ref.Height)
			}
		}
	}

	return nil
}

// Decode groups the peaks of the heatmaps into human poses using the PAFs.
// heatmaps must have KeyPointsNumber+1 channels and pafs two channels per
// limb, all of the same size.  Keypoints are returned in feature map
// coordinates.
func (o *OpenPose) Decode(heatmaps, pafs []openpose.FeatureMap) ([]result.HumanPose, error) {

	if err := o.validateMaps(heatmaps, pafs); err != nil {
		return nil, err
	}

	allPeaks := o.extractPeaks(heatmaps[:o.Params.KeyPointsNumber])
	assignGlobalIDs(allPeaks)

	return o.groupPeaksToPoses(allPeaks, pafs), nil
}

// assignGlobalIDs offsets the channel local peak IDs by the number of peaks in
// all preceding channels so they are unique across channels
func assignGlobalIDs(allPeaks [][]Peak) {

	peaksBefore := 0

	for _, peaks := range allPeaks {
		for i := range peaks {
			peaks[i].ID += peaksBefore
		}

		peaksBefore += len(peaks)
	}
}

// extractPeaks runs FindPeaks on each heatmap channel in parallel.  Each
// goroutine writes only its own channel's slot.
func (o *OpenPose) extractPeaks(heatmaps []openpose.FeatureMap) [][]Peak {

	allPeaks := make([][]Peak, len(heatmaps))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range heatmaps {
		g.Go(func() error {
			allPeaks[i] = FindPeaks(heatmaps[i], o.Params.PeakThreshold,
				o.Params.MinPeaksDistance)
			return nil
		})
	}

	// FindPeaks never fails
	_ = g.Wait()

	return allPeaks
}

// DetectPoses takes the heatmap and PAF outputs of a completed request and
// returns the poses found mapped back to the original image of size imgWidth
// by imgHeight that was padded by pad when preprocessed
func (o *OpenPose) DetectPoses(res openpose.RequestResult, pad result.Padding,
	imgWidth, imgHeight int) ([]result.HumanPose, error) {

	heatTensor, ok := res.Outputs[o.Params.HeatmapOutput]

	if !ok {
		return nil, fmt.Errorf("%w: result of frame %d has no heatmap output %q",
			openpose.ErrShapeMismatch, res.FrameID, o.Params.HeatmapOutput)
	}

	pafTensor, ok := res.Outputs[o.Params.PAFOutput]

	if !ok {
		return nil, fmt.Errorf("%w: result of frame %d has no PAF output %q",
			openpose.ErrShapeMismatch, res.FrameID, o.Params.PAFOutput)
	}

	heatmaps, err := heatTensor.FeatureMaps()

	if err != nil {
		return nil, err
	}

	pafs, err := pafTensor.FeatureMaps()

	if err != nil {
		return nil, err
	}

	if o.Params.UpsampleRatio != 1 {
		if o.upsampler == nil {
			return nil, fmt.Errorf("upsample ratio is %d but no upsampler is set",
				o.Params.UpsampleRatio)
		}

		if heatmaps, err = o.upsampler(heatmaps, o.Params.UpsampleRatio); err != nil {
			return nil, fmt.Errorf("error upsampling heatmaps: %w", err)
		}

		if pafs, err = o.upsampler(pafs, o.Params.UpsampleRatio); err != nil {
			return nil, fmt.Errorf("error upsampling PAFs: %w", err)
		}
	}

	poses, err := o.Decode(heatmaps, pafs)

	if err != nil {
		return nil, err
	}

	o.Rescale(poses, heatmaps[0].Width, heatmaps[0].Height, pad, imgWidth, imgHeight)

	return poses, nil
}
