package preprocess

import (
	"fmt"

	"github.com/swdee/go-openpose"
	"gocv.io/x/gocv"
)

// ToTensor converts an 8 bit multi channel image in HWC layout into a 1xCxHxW
// float32 tensor with the given name
func ToTensor(img gocv.Mat, name string) (*openpose.Tensor, error) {

	if !img.IsContinuous() {
		img = img.Clone()
		defer img.Close()
	}

	data, err := img.DataPtrUint8()

	if err != nil {
		return nil, fmt.Errorf("error getting uint8 data from image: %w", err)
	}

	height := img.Rows()
	width := img.Cols()
	channels := img.Channels()
	plane := height * width

	out := make([]float32, channels*plane)

	for i := 0; i < plane; i++ {
		for c := 0; c < channels; c++ {
			out[c*plane+i] = float32(data[i*channels+c])
		}
	}

	return openpose.NewTensor(name, []int{1, channels, height, width}, out)
}
