package postprocess

import (
	"math"
)

// clip restricts the value to be within the range min and max
func clip(val, min, max int) int {

	if val <= min {
		return min
	}

	if val >= max {
		return max
	}

	return val
}

// roundPixel rounds a sub pixel coordinate to the nearest pixel, ties to even,
// and clips it inside [0, size)
func roundPixel(val float64, size int) int {
	return clip(int(math.RoundToEven(val)), 0, size-1)
}
