package postprocess

import (
	"math"
	"sort"

	"github.com/swdee/go-openpose"
	"github.com/swdee/go-openpose/postprocess/result"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// connection is a scored candidate limb between the peak at index a of the
// limb's From channel and the peak at index b of its To channel
type connection struct {
	a     int
	b     int
	score float32
}

// chain is a partial pose built up from accepted connections
type chain struct {
	// peaks holds the global peak ID per keypoint, -1 when absent
	peaks  []int
	joints int
	score  float32
	// dead chains have been merged into another chain
	dead bool
}

// chainArena holds all chains of a decode call.  Peaks refer to their chain
// by index so merging only rewrites indices.
type chainArena struct {
	chains []chain
	// owner maps a global peak ID to the index of its chain, -1 if none
	owner []int
	// peaks indexed by global peak ID
	peaks []Peak
	// keypoint channel of each global peak ID
	channel []int
	// keypointsNumber is the number of keypoints in a pose
	keypointsNumber int
}

// newChainArena indexes all peaks by their global ID
func newChainArena(allPeaks [][]Peak, keypointsNumber int) *chainArena {

	total := 0

	for _, peaks := range allPeaks {
		total += len(peaks)
	}

	a := &chainArena{
		owner:           make([]int, total),
		peaks:           make([]Peak, total),
		channel:         make([]int, total),
		keypointsNumber: keypointsNumber,
	}

	for ch, peaks := range allPeaks {
		for _, p := range peaks {
			a.peaks[p.ID] = p
			a.channel[p.ID] = ch
			a.owner[p.ID] = -1
		}
	}

	return a
}

// connect applies an accepted connection between the global peaks a and b
func (c *chainArena) connect(a, b int, score float32) {

	ownerA := c.owner[a]
	ownerB := c.owner[b]

	switch {
	case ownerA < 0 && ownerB < 0:
		c.newChain(a, b, score)
	case ownerB < 0:
		c.attach(ownerA, b, score)
	case ownerA < 0:
		c.attach(ownerB, a, score)
	case ownerA != ownerB:
		c.merge(ownerA, ownerB, score)
	}
}

// newChain starts a chain from two unowned peaks
func (c *chainArena) newChain(a, b int, score float32) {

	ch := chain{
		peaks:  make([]int, c.keypointsNumber),
		joints: 2,
		score:  c.peaks[a].Score + c.peaks[b].Score + score,
	}

	for i := range ch.peaks {
		ch.peaks[i] = -1
	}

	ch.peaks[c.channel[a]] = a
	ch.peaks[c.channel[b]] = b

	idx := len(c.chains)
	c.chains = append(c.chains, ch)
	c.owner[a] = idx
	c.owner[b] = idx
}

// attach adds the unowned peak p to chain idx if its keypoint is still free
func (c *chainArena) attach(idx int, p int, score float32) {

	ch := &c.chains[idx]
	kp := c.channel[p]

	if ch.peaks[kp] != -1 {
		return
	}

	ch.peaks[kp] = p
	ch.joints++
	ch.score += c.peaks[p].Score + score
	c.owner[p] = idx
}

// merge moves chain src into chain dst when they share no keypoint
func (c *chainArena) merge(dst, src int, score float32) {

	d := &c.chains[dst]
	s := &c.chains[src]

	for kp := range d.peaks {
		if d.peaks[kp] != -1 && s.peaks[kp] != -1 {
			return
		}
	}

	for kp, p := range s.peaks {
		if p == -1 {
			continue
		}

		d.peaks[kp] = p
		c.owner[p] = dst
	}

	d.joints += s.joints
	d.score += s.score + score
	s.dead = true
}

// groupPeaksToPoses connects peaks limb by limb and returns the poses that
// pass the joint count and score filters
func (o *OpenPose) groupPeaksToPoses(allPeaks [][]Peak,
	pafs []openpose.FeatureMap) []result.HumanPose {

	arena := newChainArena(allPeaks, o.Params.KeyPointsNumber)

	for _, limb := range o.Params.Limbs {
		candA := allPeaks[limb.From]
		candB := allPeaks[limb.To]

		if len(candA) == 0 || len(candB) == 0 {
			continue
		}

		conns := o.scoreLimb(candA, candB, pafs[limb.PafX], pafs[limb.PafY])

		// greedily take the best connections, each peak may only be used once
		// per limb
		limit := min(len(candA), len(candB))
		usedA := make([]bool, len(candA))
		usedB := make([]bool, len(candB))
		accepted := 0

		for _, conn := range conns {
			if accepted == limit {
				break
			}

			if usedA[conn.a] || usedB[conn.b] {
				continue
			}

			usedA[conn.a] = true
			usedB[conn.b] = true
			accepted++

			arena.connect(candA[conn.a].ID, candB[conn.b].ID, conn.score)
		}
	}

	poses := make([]result.HumanPose, 0)

	for _, ch := range arena.chains {
		if ch.dead {
			continue
		}

		if ch.joints < o.Params.MinJointsNumber || ch.score < o.Params.MinSubsetScore {
			continue
		}

		pose := result.NewHumanPose(o.Params.KeyPointsNumber)
		pose.Score = ch.score

		for kp, id := range ch.peaks {
			if id < 0 {
				continue
			}

			// use the centre of the feature map pixel
			pose.KeyPoints[kp] = result.KeyPoint{
				X: float32(arena.peaks[id].X) + 0.5,
				Y: float32(arena.peaks[id].Y) + 0.5,
			}
		}

		poses = append(poses, pose)
	}

	return poses
}

// scoreLimb scores every pair of peaks from candA and candB by sampling the
// PAF along the straight line between them.  Valid connections are returned
// sorted by descending score.
func (o *OpenPose) scoreLimb(candA, candB []Peak, pafX,
	pafY openpose.FeatureMap) []connection {

	midNum := o.Params.MidPointsNumber
	halfHeight := float64(pafX.Height / 2)
	conns := make([]connection, 0)
	aligned := make([]float64, 0, midNum)
	vec := make([]float64, 2)

	for i, a := range candA {
		for j, b := range candB {

			dx := float64(b.X - a.X)
			dy := float64(b.Y - a.Y)
			vec[0], vec[1] = dx, dy
			norm := floats.Norm(vec, 2)

			if norm == 0 {
				continue
			}

			ux := dx / norm
			uy := dy / norm
			stepX := dx / float64(midNum-1)
			stepY := dy / float64(midNum-1)
			aligned = aligned[:0]

			for n := 0; n < midNum; n++ {
				px := roundPixel(float64(a.X)+float64(n)*stepX, pafX.Width)
				py := roundPixel(float64(a.Y)+float64(n)*stepY, pafX.Height)

				score := ux*float64(pafX.At(px, py)) + uy*float64(pafY.At(px, py))

				if score > float64(o.Params.MidPointsScoreThreshold) {
					aligned = append(aligned, score)
				}
			}

			if len(aligned) == 0 {
				continue
			}

			ratio := float32(len(aligned)) / float32(midNum)

			// penalise limbs longer than half the feature map height
			score := stat.Mean(aligned, nil) + math.Min(halfHeight/norm-1, 0)

			if score > 0 && ratio > o.Params.FoundMidPointsRatioThreshold {
				conns = append(conns, connection{a: i, b: j, score: float32(score)})
			}
		}
	}

	sort.SliceStable(conns, func(i, j int) bool {
		return conns[i].score > conns[j].score
	})

	return conns
}
