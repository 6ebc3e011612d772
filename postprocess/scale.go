package postprocess

import (
	"github.com/swdee/go-openpose/postprocess/result"
)

// Rescale maps the keypoints of poses from feature map coordinates, for a
// feature map of fmWidth by fmHeight, back to the original image of imgWidth
// by imgHeight.  The feature map scale is undone first, then the padding is
// removed and finally the image scale is applied.  The order matters when
// the padding is not square.
func (o *OpenPose) Rescale(poses []result.HumanPose, fmWidth, fmHeight int,
	pad result.Padding, imgWidth, imgHeight int) {

	ratio := float32(o.Params.Stride) / float32(o.Params.UpsampleRatio)

	fullWidth := float32(fmWidth) * ratio
	fullHeight := float32(fmHeight) * ratio

	scaleX := float32(imgWidth) / (fullWidth - float32(pad.Left) - float32(pad.Right))
	scaleY := float32(imgHeight) / (fullHeight - float32(pad.Top) - float32(pad.Bottom))

	for i := range poses {
		for j, kp := range poses[i].KeyPoints {
			if kp.IsAbsent() {
				continue
			}

			kp.X *= ratio
			kp.X -= float32(pad.Left)
			kp.X *= scaleX

			kp.Y *= ratio
			kp.Y -= float32(pad.Top)
			kp.Y *= scaleY

			poses[i].KeyPoints[j] = kp
		}
	}
}
