// Package detector provides the pose source contract and the landmark types shared by the
// angle, template and matching packages.
package detector

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownJoint is returned when a pose source reports a landmark name outside the joint set.
var ErrUnknownJoint = errors.New("unknown joint")

// Joint identifies a body landmark. Indices follow the MediaPipe pose landmarker convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
type Joint int

const (
	Nose Joint = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumJoints
)

var jointNames = [NumJoints]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

var jointsByName = func() map[string]Joint {
	m := make(map[string]Joint, NumJoints)
	for i, name := range jointNames {
		m[name] = Joint(i)
	}
	return m
}()

// String returns the snake_case name of the joint.
func (j Joint) String() string {
	if j < 0 || j >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Valid reports whether j is a member of the joint set.
func (j Joint) Valid() bool {
	return j >= 0 && j < NumJoints
}

// ParseJoint returns the joint with the given name.
func ParseJoint(name string) (Joint, error) {
	j, ok := jointsByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
	}
	return j, nil
}

// MarshalText encodes the joint as its name.
func (j Joint) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownJoint, int(j))
	}
	return []byte(jointNames[j]), nil
}

// UnmarshalText decodes a joint name, rejecting names outside the joint set.
func (j *Joint) UnmarshalText(text []byte) error {
	parsed, err := ParseJoint(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// Landmark is a 2D joint position with its detection confidence.
// A zero Confidence means the joint was not reported.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Keypoint is a single named landmark as emitted by a pose source.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Pose is the set of landmarks detected in one frame.
type Pose struct {
	Points    [NumJoints]Landmark `json:"points"`
	Timestamp time.Time           `json:"timestamp"`
}

// NewPose builds a Pose from raw pose source output. Unknown joint names are rejected here so
// that nothing downstream deals with free-form keys. Scores are clamped to [0,1].
func NewPose(keypoints []Keypoint, ts time.Time) (Pose, error) {
	p := Pose{Timestamp: ts}
	for _, kp := range keypoints {
		j, err := ParseJoint(kp.Name)
		if err != nil {
			return Pose{}, err
		}
		score := kp.Score
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		p.Points[j] = Landmark{X: kp.X, Y: kp.Y, Confidence: score}
	}
	return p, nil
}

// Landmark returns the landmark for j if its confidence reaches floor.
func (p *Pose) Landmark(j Joint, floor float64) (*Landmark, bool) {
	if p == nil || !j.Valid() {
		return nil, false
	}
	lm := &p.Points[j]
	if lm.Confidence <= 0 || lm.Confidence < floor {
		return nil, false
	}
	return lm, true
}

// Detected returns the number of joints with a confidence of at least floor.
func (p *Pose) Detected(floor float64) int {
	n := 0
	for j := Joint(0); j < NumJoints; j++ {
		if _, ok := p.Landmark(j, floor); ok {
			n++
		}
	}
	return n
}

// Normalize scales pixel coordinates into [0,1] by the frame dimensions.
// Returns a new Pose; the receiver is left untouched.
func (p *Pose) Normalize(width, height int) *Pose {
	if p == nil {
		return nil
	}

	normalized := &Pose{Timestamp: p.Timestamp}
	normalized.Points = p.Points

	// Avoid division by zero
	if width <= 0 || height <= 0 {
		return normalized
	}

	for i := range normalized.Points {
		normalized.Points[i].X /= float64(width)
		normalized.Points[i].Y /= float64(height)
	}

	return normalized
}

// Keypoints converts the pose back into the pose source wire shape, omitting absent joints.
func (p *Pose) Keypoints() []Keypoint {
	var kps []Keypoint
	for j := Joint(0); j < NumJoints; j++ {
		lm := p.Points[j]
		if lm.Confidence <= 0 {
			continue
		}
		kps = append(kps, Keypoint{Name: j.String(), X: lm.X, Y: lm.Y, Score: lm.Confidence})
	}
	return kps
}
