package postprocess

/* COCO 18 keypoints used by OpenPose
0: Nose
1: Neck
2: Right Shoulder
3: Right Elbow
4: Right Wrist
5: Left Shoulder
6: Left Elbow
7: Left Wrist
8: Right Hip
9: Right Knee
10: Right Ankle
11: Left Hip
12: Left Knee
13: Left Ankle
14: Right Eye
15: Left Eye
16: Right Ear
17: Left Ear
*/

// Limb is an edge of the skeleton connecting two keypoint heatmap channels,
// scored with a pair of PAF channels holding the x and y vector components
type Limb struct {
	// From is the keypoint channel at the start of the limb
	From int `koanf:"from"`
	// To is the keypoint channel at the end of the limb
	To int `koanf:"to"`
	// PafX is the PAF channel index of the x component
	PafX int `koanf:"pafx"`
	// PafY is the PAF channel index of the y component
	PafY int `koanf:"pafy"`
}

// COCOLimbs returns the 19 limbs of the COCO 18 keypoint OpenPose model in
// the order they are grouped.  The trailing two limbs connect the ears to the
// shoulders and close loops already formed by the head limbs.
func COCOLimbs() []Limb {
	return []Limb{
		{From: 1, To: 2, PafX: 12, PafY: 13},
		{From: 1, To: 5, PafX: 20, PafY: 21},
		{From: 2, To: 3, PafX: 14, PafY: 15},
		{From: 3, To: 4, PafX: 16, PafY: 17},
		{From: 5, To: 6, PafX: 22, PafY: 23},
		{From: 6, To: 7, PafX: 24, PafY: 25},
		{From: 1, To: 8, PafX: 0, PafY: 1},
		{From: 8, To: 9, PafX: 2, PafY: 3},
		{From: 9, To: 10, PafX: 4, PafY: 5},
		{From: 1, To: 11, PafX: 6, PafY: 7},
		{From: 11, To: 12, PafX: 8, PafY: 9},
		{From: 12, To: 13, PafX: 10, PafY: 11},
		{From: 1, To: 0, PafX: 28, PafY: 29},
		{From: 0, To: 14, PafX: 30, PafY: 31},
		{From: 14, To: 16, PafX: 34, PafY: 35},
		{From: 0, To: 15, PafX: 32, PafY: 33},
		{From: 15, To: 17, PafX: 36, PafY: 37},
		{From: 2, To: 16, PafX: 18, PafY: 19},
		{From: 5, To: 17, PafX: 26, PafY: 27},
	}
}
