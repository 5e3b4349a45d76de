package matcher

// Thresholds for the three matching contexts. Template matching is strict because it drives
// rep counting. Coaching is lenient because it only shapes live feedback.
const (
	// PartialMatchThreshold is the similarity a phase needs to match without every angle in tolerance.
	PartialMatchThreshold = 0.9

	// NearMissCap bounds the score a missed configuration segment can contribute.
	NearMissCap = 0.9

	// CoachToleranceDegrees is the per-joint tolerance when coaching against a reference.
	CoachToleranceDegrees = 45.0

	// CoachMatchThreshold is the fraction of compared joints that must match for a correct verdict.
	CoachMatchThreshold = 0.5

	// CoachMinComparisons is the number of jointly visible joints required before judging.
	CoachMinComparisons = 2
)

// Feedback strings shared by the judges.
const (
	FeedbackGoodForm    = "Good form"
	FeedbackNotVisible  = "Make sure your whole body is visible"
	FeedbackNoPose      = "No pose detected"
	FeedbackAdjustPhase = "Adjust your %s"
)

// Coaching cues. The mild forms apply while the difference stays under twice the tolerance.
// Bend and straighten cues take the limb label.
const (
	CueBend            = "Bend your %s"
	CueBendMild        = "Slightly bend your %s"
	CueStraighten      = "Straighten your %s"
	CueStraightenMild  = "Slightly straighten your %s"
	CueLeanForward     = "Lean forward"
	CueLeanForwardMild = "Slightly lean forward"
	CueLeanBack        = "Lean back"
	CueLeanBackMild    = "Slightly lean back"
)
