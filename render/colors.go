package render

import "image/color"

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
	Pink   = color.RGBA{R: 255, G: 0, B: 255, A: 255}

	// keyPointColors are the joint colors, one per COCO keypoint
	keyPointColors = []color.RGBA{
		{R: 255, G: 0, B: 0, A: 255},   // nose
		{R: 255, G: 85, B: 0, A: 255},  // neck
		{R: 255, G: 170, B: 0, A: 255}, // right shoulder
		{R: 255, G: 255, B: 0, A: 255},
		{R: 170, G: 255, B: 0, A: 255},
		{R: 85, G: 255, B: 0, A: 255}, // left shoulder
		{R: 0, G: 255, B: 0, A: 255},
		{R: 0, G: 255, B: 85, A: 255},
		{R: 0, G: 255, B: 170, A: 255}, // right hip
		{R: 0, G: 255, B: 255, A: 255},
		{R: 0, G: 170, B: 255, A: 255},
		{R: 0, G: 85, B: 255, A: 255}, // left hip
		{R: 0, G: 0, B: 255, A: 255},
		{R: 85, G: 0, B: 255, A: 255},
		{R: 170, G: 0, B: 255, A: 255}, // right eye
		{R: 255, G: 0, B: 255, A: 255},
		{R: 255, G: 0, B: 170, A: 255}, // right ear
		{R: 255, G: 0, B: 85, A: 255},
	}

	// limbColors correspond to the lines drawn between the keypoints, a limb
	// takes the color of the keypoint it ends on
	limbColors = []color.RGBA{
		keyPointColors[2], keyPointColors[5], keyPointColors[3], keyPointColors[4],
		keyPointColors[6], keyPointColors[7], keyPointColors[8], keyPointColors[9],
		keyPointColors[10], keyPointColors[11], keyPointColors[12], keyPointColors[13],
		keyPointColors[0], keyPointColors[14], keyPointColors[16], keyPointColors[15],
		keyPointColors[17], keyPointColors[16], keyPointColors[17],
	}

	// boxColors are cycled through for each pose bounding box
	boxColors = []color.RGBA{
		{R: 255, G: 56, B: 56, A: 255},   // #FF3838
		{R: 255, G: 112, B: 31, A: 255},  // #FF701F
		{R: 255, G: 178, B: 29, A: 255},  // #FFB21D
		{R: 72, G: 249, B: 10, A: 255},   // #48F90A
		{R: 0, G: 212, B: 187, A: 255},   // #00D4BB
		{R: 0, G: 194, B: 255, A: 255},   // #00C2FF
		{R: 100, G: 115, B: 255, A: 255}, // #6473FF
		{R: 132, G: 56, B: 255, A: 255},  // #8438FF
		{R: 255, G: 55, B: 199, A: 255},  // #FF37C7
		{R: 61, G: 219, B: 134, A: 255},  // #3DDB86
	}
)
