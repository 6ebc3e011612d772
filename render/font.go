package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Anchor selects which part of the pose box edge a label is attached to
type Anchor int

const (
	AnchorLeft Anchor = iota
	AnchorCenter
	AnchorRight
)

// Inset is the space in pixels between label text and the edge of its
// background
type Inset struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// LabelStyle defines how pose score labels are rendered with GoCV
type LabelStyle struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	Inset     Inset
	Anchor    Anchor
	// Below places the label under the pose box instead of above it
	Below bool
}

// PoseLabelStyle returns the style used for pose score labels, dark text on
// a background of the pose colour centred above the box
func PoseLabelStyle() LabelStyle {
	return LabelStyle{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.45,
		Color:     Black,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Inset:     Inset{Left: 3, Right: 3, Top: 3, Bottom: 5},
		Anchor:    AnchorCenter,
	}
}

// place returns the background rectangle and text baseline origin of a label
// of textSize attached to box.  A label above the box that would leave the
// top of the image is moved below it.
func (s LabelStyle) place(box image.Rectangle, textSize image.Point) (image.Rectangle, image.Point) {

	w := textSize.X + s.Inset.Left + s.Inset.Right
	h := textSize.Y + s.Inset.Top + s.Inset.Bottom

	var x int

	switch s.Anchor {
	case AnchorCenter:
		x = (box.Min.X+box.Max.X)/2 - w/2
	case AnchorRight:
		x = box.Max.X - w
	default:
		x = box.Min.X
	}

	y := box.Min.Y - h

	if s.Below || y < 0 {
		y = box.Max.Y
	}

	return image.Rect(x, y, x+w, y+h),
		image.Pt(x+s.Inset.Left, y+s.Inset.Top+textSize.Y)
}
