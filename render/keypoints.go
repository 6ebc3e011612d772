package render

import (
	"image"

	"github.com/swdee/go-openpose/postprocess"
	"github.com/swdee/go-openpose/postprocess/result"
	"gocv.io/x/gocv"
)

var (
	// skeleton defines the pairs of keypoints to draw lines between, taken
	// from the COCO limb topology
	skeleton = postprocess.COCOLimbs()
)

// PoseKeyPoints renders the skeleton lines and joints of all poses.  Absent
// keypoints and the limbs touching them are skipped.
func PoseKeyPoints(img *gocv.Mat, poses []result.HumanPose, lineThickness int) {

	for _, pose := range poses {

		// draw skeleton lines
		for j, limb := range skeleton {
			if limb.From >= len(pose.KeyPoints) || limb.To >= len(pose.KeyPoints) {
				continue
			}

			from := pose.KeyPoints[limb.From]
			to := pose.KeyPoints[limb.To]

			if from.IsAbsent() || to.IsAbsent() {
				continue
			}

			gocv.Line(img, toPoint(from), toPoint(to),
				limbColors[j%len(limbColors)], lineThickness)
		}

		// draw circles at skeleton joints
		for j, kp := range pose.KeyPoints {
			if kp.IsAbsent() {
				continue
			}

			gocv.Circle(img, toPoint(kp), lineThickness+1,
				keyPointColors[j%len(keyPointColors)], -1)
		}
	}
}

// toPoint rounds a keypoint to the nearest image pixel
func toPoint(kp result.KeyPoint) image.Point {
	return image.Pt(int(kp.X+0.5), int(kp.Y+0.5))
}
