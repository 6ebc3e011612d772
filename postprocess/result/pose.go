package result

// KeyPoint is the location of a single body joint
type KeyPoint struct {
	X float32
	Y float32
}

// Absent is the sentinel KeyPoint used for joints not found in a pose
var Absent = KeyPoint{X: -1, Y: -1}

// IsAbsent returns true if the keypoint is the Absent sentinel
func (k KeyPoint) IsAbsent() bool {
	return k == Absent
}

// HumanPose is a set of keypoints believed to belong to one person.  The index
// into KeyPoints is the semantic keypoint ID.
type HumanPose struct {
	KeyPoints []KeyPoint
	Score     float32
}

// NewHumanPose returns a pose with all keypointsNumber keypoints absent
func NewHumanPose(keypointsNumber int) HumanPose {

	kps := make([]KeyPoint, keypointsNumber)

	for i := range kps {
		kps[i] = Absent
	}

	return HumanPose{KeyPoints: kps}
}

// Present returns the number of keypoints that are not absent
func (h HumanPose) Present() int {

	n := 0

	for _, kp := range h.KeyPoints {
		if !kp.IsAbsent() {
			n++
		}
	}

	return n
}

// Padding is the number of pixels added to each side of the image to fit the
// model input tensor
type Padding struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}
