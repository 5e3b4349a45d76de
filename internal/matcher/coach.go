package matcher

import (
	"fmt"
	"math"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/detector"
)

type limbKind int

const (
	limbBend limbKind = iota
	limbPosture
)

type coachJoint struct {
	label string
	kind  limbKind
	def   angles.Definition
}

var coachJoints = []coachJoint{
	{"left arm", limbBend, angles.Definition{Name: "left_arm", A: detector.LeftShoulder, Vertex: detector.LeftElbow, B: detector.LeftWrist}},
	{"right arm", limbBend, angles.Definition{Name: "right_arm", A: detector.RightShoulder, Vertex: detector.RightElbow, B: detector.RightWrist}},
	{"left leg", limbBend, angles.Definition{Name: "left_leg", A: detector.LeftHip, Vertex: detector.LeftKnee, B: detector.LeftAnkle}},
	{"right leg", limbBend, angles.Definition{Name: "right_leg", A: detector.RightHip, Vertex: detector.RightKnee, B: detector.RightAnkle}},
	{"left side", limbPosture, angles.Definition{Name: "left_posture", A: detector.LeftShoulder, Vertex: detector.LeftHip, B: detector.LeftKnee}},
	{"right side", limbPosture, angles.Definition{Name: "right_posture", A: detector.RightShoulder, Vertex: detector.RightHip, B: detector.RightKnee}},
}

// Coach compares a live pose against a reference frame with a lenient tolerance and
// produces a single corrective suggestion.
type Coach struct {
	Tolerance       float64
	Threshold       float64
	MinComparisons  int
	ConfidenceFloor float64
}

// NewCoach returns a Coach with the default coaching thresholds.
func NewCoach() *Coach {
	return &Coach{
		Tolerance:       CoachToleranceDegrees,
		Threshold:       CoachMatchThreshold,
		MinComparisons:  CoachMinComparisons,
		ConfidenceFloor: angles.LiveConfidenceFloor,
	}
}

// CoachResult is the outcome of one coaching comparison.
type CoachResult struct {
	IsCorrect  bool
	Feedback   string
	Similarity float64
	Compared   int
	Matched    int
}

// ComparePosesWithFeedback compares the six arm, leg and posture angles of live and
// reference. Joints not visible in both poses are skipped; fewer than MinComparisons
// visible joints yields an incorrect verdict asking the user to get into view.
func (c *Coach) ComparePosesWithFeedback(live, reference *detector.Pose) CoachResult {
	var res CoachResult
	var worst *coachJoint
	var worstDiff float64

	for i := range coachJoints {
		cj := &coachJoints[i]
		liveDeg, ok := angleOf(live, cj.def, c.ConfidenceFloor)
		if !ok {
			continue
		}
		refDeg, ok := angleOf(reference, cj.def, c.ConfidenceFloor)
		if !ok {
			continue
		}

		res.Compared++
		diff := liveDeg - refDeg
		if math.Abs(diff) <= c.Tolerance {
			res.Matched++
			continue
		}
		// Ties within rounding go to the earlier joint.
		if worst == nil || math.Abs(diff) > math.Abs(worstDiff)+1e-9 {
			worst = cj
			worstDiff = diff
		}
	}

	if res.Compared < c.MinComparisons {
		res.Feedback = FeedbackNotVisible
		return res
	}

	res.Similarity = float64(res.Matched) / float64(res.Compared)
	res.IsCorrect = res.Similarity >= c.Threshold
	if res.IsCorrect || worst == nil {
		res.Feedback = FeedbackGoodForm
		return res
	}

	res.Feedback = c.suggest(worst, worstDiff)
	return res
}

// suggest turns the worst joint's difference into a directional cue. A positive diff means
// the live joint is more open than the reference.
func (c *Coach) suggest(cj *coachJoint, diff float64) string {
	mild := math.Abs(diff) < 2*c.Tolerance
	if cj.kind == limbPosture {
		return pick(diff > 0, mild, [4]string{CueLeanForward, CueLeanForwardMild, CueLeanBack, CueLeanBackMild})
	}
	cue := pick(diff > 0, mild, [4]string{CueBend, CueBendMild, CueStraighten, CueStraightenMild})
	return fmt.Sprintf(cue, cj.label)
}

// pick selects from cues ordered open, open mild, closed, closed mild.
func pick(open, mild bool, cues [4]string) string {
	i := 0
	if !open {
		i = 2
	}
	if mild {
		i++
	}
	return cues[i]
}

func angleOf(pose *detector.Pose, def angles.Definition, floor float64) (float64, bool) {
	deg, ok := angles.Extract(pose, []angles.Definition{def}, floor)[def.Name]
	return deg, ok
}
