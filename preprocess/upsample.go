package preprocess

import (
	"fmt"
	"image"

	"github.com/swdee/go-openpose"
	"gocv.io/x/gocv"
)

// UpsampleFeatureMaps enlarges each feature map by ratio using bicubic
// interpolation.  It satisfies postprocess.Upsampler.
func UpsampleFeatureMaps(maps []openpose.FeatureMap, ratio int) ([]openpose.FeatureMap, error) {

	out := make([]openpose.FeatureMap, len(maps))

	// src is reallocated by copyToMat so close whichever Mat it holds last
	src := gocv.NewMat()
	defer func() { src.Close() }()

	dst := gocv.NewMat()
	defer dst.Close()

	for i, fm := range maps {
		if fm.Width == 0 || fm.Height == 0 {
			return nil, fmt.Errorf("feature map %d is empty", i)
		}

		if err := copyToMat(fm, &src); err != nil {
			return nil, err
		}

		gocv.Resize(src, &dst, image.Point{}, float64(ratio), float64(ratio),
			gocv.InterpolationCubic)

		data, err := dst.DataPtrFloat32()

		if err != nil {
			return nil, fmt.Errorf("error reading upsampled feature map %d: %w", i, err)
		}

		out[i] = openpose.FeatureMap{
			Width:  dst.Cols(),
			Height: dst.Rows(),
			Data:   append([]float32(nil), data...),
		}
	}

	return out, nil
}

// copyToMat copies the feature map into a single channel float32 Mat,
// reallocating the Mat if its size differs
func copyToMat(fm openpose.FeatureMap, mat *gocv.Mat) error {

	if mat.Rows() != fm.Height || mat.Cols() != fm.Width || mat.Type() != gocv.MatTypeCV32F {
		mat.Close()
		*mat = gocv.NewMatWithSize(fm.Height, fm.Width, gocv.MatTypeCV32F)
	}

	ptr, err := mat.DataPtrFloat32()

	if err != nil {
		return fmt.Errorf("error accessing float32 mat memory: %w", err)
	}

	copy(ptr, fm.Data)
	return nil
}
