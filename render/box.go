package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/swdee/go-openpose/postprocess/result"
	"gocv.io/x/gocv"
)

// boxLabel holds the precalculated rendering details of a box label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// PoseBounds returns the rectangle enclosing the present keypoints of pose,
// ok is false if the pose has none
func PoseBounds(pose result.HumanPose) (rect image.Rectangle, ok bool) {

	minX, minY := math.MaxFloat32, math.MaxFloat32
	maxX, maxY := -math.MaxFloat32, -math.MaxFloat32

	for _, kp := range pose.KeyPoints {
		if kp.IsAbsent() {
			continue
		}

		ok = true
		minX = math.Min(minX, float64(kp.X))
		minY = math.Min(minY, float64(kp.Y))
		maxX = math.Max(maxX, float64(kp.X))
		maxY = math.Max(maxY, float64(kp.Y))
	}

	if !ok {
		return image.Rectangle{}, false
	}

	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY))), true
}

// PoseBoxes renders a bounding box around each pose labelled with its score
func PoseBoxes(img *gocv.Mat, poses []result.HumanPose, style LabelStyle,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	for i, pose := range poses {

		rect, ok := PoseBounds(pose)

		if !ok {
			continue
		}

		useClr := boxColors[i%len(boxColors)]
		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("person %.2f", pose.Score)
		textSize := gocv.GetTextSize(text, style.Face, style.Scale, style.Thickness)
		bg, textPos := style.place(rect, textSize)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bg,
			clr:     useClr,
			text:    text,
			textPos: textPos,
		})
	}

	// draw labels last so they are the top most layer and not overlapped by
	// skeleton lines of other poses
	for _, box := range boxLabels {
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			style.Face, style.Scale, style.Color, style.Thickness,
			style.LineType, false)
	}
}
