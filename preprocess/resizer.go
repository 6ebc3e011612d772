package preprocess

import (
	"image"
	"image/color"
	"math"

	"github.com/swdee/go-openpose/postprocess/result"
	"gocv.io/x/gocv"
)

var (
	// MeanPixel is the color used to pad images to the model input size
	MeanPixel = color.RGBA{R: 128, G: 128, B: 128, A: 0}
)

// Resizer defines the struct used for scaling an image to the model input
// height and padding its width up to a multiple of the model stride
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// inputWidth is the model input tensor width
	inputWidth int
	// inputHeight is the model input tensor height
	inputHeight int
	// stride of the model output feature maps
	stride int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// scale applied to the source image
	scale float64
	// resize dimensions before padding
	resizeW int
	resizeH int
	// paddedW is the padded image width, a multiple of stride
	paddedW int
	pad     result.Padding
}

// NewResizer returns a resizer used for scaling an image of srcWidth by
// srcHeight to the model input of inputWidth by inputHeight
func NewResizer(srcWidth, srcHeight, inputWidth, inputHeight, stride int) *Resizer {
	r := &Resizer{
		srcWidth:    srcWidth,
		srcHeight:   srcHeight,
		inputWidth:  inputWidth,
		inputHeight: inputHeight,
		stride:      stride,
		tempMat:     gocv.NewMat(),
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc the scale and padding.  The image is scaled to the input height,
// made at least square and its width rounded up to a multiple of stride.
func (r *Resizer) preCalc() {

	r.scale = float64(r.inputHeight) / float64(r.srcHeight)
	r.resizeW = int(math.RoundToEven(float64(r.srcWidth) * r.scale))
	r.resizeH = int(math.RoundToEven(float64(r.srcHeight) * r.scale))

	paddedW := max(r.resizeW, r.inputHeight)
	paddedH := r.inputHeight
	minHeight := min(paddedH, r.resizeH)

	r.paddedW = int(math.Ceil(float64(paddedW)/float64(r.stride))) * r.stride

	r.pad.Top = int(math.Floor(float64(paddedH-minHeight) / 2.0))
	r.pad.Left = int(math.Floor(float64(r.paddedW-r.resizeW) / 2.0))
	r.pad.Bottom = paddedH - minHeight - r.pad.Top
	r.pad.Right = r.paddedW - r.resizeW - r.pad.Left
}

// Resize scales src to the model input height and pads it with MeanPixel
func (r *Resizer) Resize(src gocv.Mat, dest *gocv.Mat) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationCubic)

	gocv.CopyMakeBorder(r.tempMat, dest, r.pad.Top, r.pad.Bottom,
		r.pad.Left, r.pad.Right, gocv.BorderConstant, MeanPixel)
}

// ScaleFactor returns the scale applied to the source image
func (r *Resizer) ScaleFactor() float64 {
	return r.scale
}

// Padding returns the padding added around the scaled image
func (r *Resizer) Padding() result.Padding {
	return r.pad
}

// PaddedWidth returns the width of the resized and padded image.  When it
// differs from the model input width the model must be reshaped to it.
func (r *Resizer) PaddedWidth() int {
	return r.paddedW
}

// NeedsReshape returns true if the padded image width does not match the
// model input width
func (r *Resizer) NeedsReshape() bool {
	return r.paddedW != r.inputWidth
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}
