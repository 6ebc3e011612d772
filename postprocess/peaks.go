package postprocess

import (
	"math"

	"github.com/swdee/go-openpose"
)

// Peak is a local maximum found in a keypoint heatmap
type Peak struct {
	// ID is unique across all heatmap channels once decoding has assigned
	// global IDs, during detection it is local to the channel
	ID int
	// X and Y are the feature map coordinates of the peak
	X int
	Y int
	// Score is the heatmap value at the peak
	Score float32
}

// FindPeaks returns the local maxima in the heatmap with a value of at least
// threshold.  Peaks are returned in row major scan order and any peak closer
// than minDistance to an earlier peak is suppressed.
func FindPeaks(heatmap openpose.FeatureMap, threshold, minDistance float32) []Peak {

	// value reads the thresholded score, locations outside the map read as 0
	value := func(x, y int) float32 {
		if x < 0 || y < 0 || x >= heatmap.Width || y >= heatmap.Height {
			return 0
		}

		v := heatmap.At(x, y)

		if v < threshold {
			return 0
		}

		return v
	}

	peaks := make([]Peak, 0)

	for y := 0; y < heatmap.Height; y++ {
		for x := 0; x < heatmap.Width; x++ {

			val := value(x, y)

			if val > value(x-1, y) && val > value(x+1, y) &&
				val > value(x, y-1) && val > value(x, y+1) {

				if suppressed(peaks, x, y, minDistance) {
					continue
				}

				peaks = append(peaks, Peak{
					ID:    len(peaks),
					X:     x,
					Y:     y,
					Score: heatmap.At(x, y),
				})
			}
		}
	}

	return peaks
}

// suppressed returns true if x,y is within minDistance of an accepted peak
func suppressed(peaks []Peak, x, y int, minDistance float32) bool {

	for _, p := range peaks {
		dx := float64(p.X - x)
		dy := float64(p.Y - y)

		if math.Sqrt(dx*dx+dy*dy) < float64(minDistance) {
			return true
		}
	}

	return false
}
