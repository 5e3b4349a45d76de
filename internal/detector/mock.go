package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either as a fixed answer or as a
// scripted sequence consumed one entry per Detect call.
type MockDetector struct {
	mu        sync.Mutex
	keypoints []Keypoint
	err       error
	sequence  []MockResult
	calls     int
	closed    bool
}

// MockResult is one scripted Detect outcome.
type MockResult struct {
	Keypoints []Keypoint
	Err       error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetKeypoints sets the keypoints that will be returned by Detect.
func (m *MockDetector) SetKeypoints(kps []Keypoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keypoints = kps
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetSequence scripts the results of the next Detect calls. Once the sequence is exhausted
// Detect falls back to the fixed keypoints and error.
func (m *MockDetector) SetSequence(seq []MockResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = append([]MockResult(nil), seq...)
}

// Detect returns the next scripted result, or the pre-configured keypoints or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Keypoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		if next.Err != nil {
			return nil, next.Err
		}
		return next.Keypoints, nil
	}

	if m.err != nil {
		return nil, m.err
	}
	return m.keypoints, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Body segment lengths in pixels for the synthetic figure.
const (
	mockUpperArm = 60.0
	mockForearm  = 55.0
	mockThigh    = 80.0
	mockShin     = 75.0
	mockScore    = 0.9
)

// BodyKeypoints returns a synthetic frontal figure whose elbows bend to elbowDeg and whose
// knees bend to kneeDeg (180 = straight). Shoulders sit at y=200, hips at y=320.
func BodyKeypoints(elbowDeg, kneeDeg float64) []Keypoint {
	kps := []Keypoint{
		{Name: "nose", X: 320, Y: 140, Score: mockScore},
	}

	for _, side := range []struct {
		prefix string
		dir    float64
		x      float64
	}{
		{"left", -1, 300},
		{"right", 1, 340},
	} {
		shoulder := [2]float64{side.x, 200}
		elbow := [2]float64{side.x, 200 + mockUpperArm}
		wrist := bendFrom(elbow, elbowDeg, side.dir, mockForearm)

		hip := [2]float64{side.x, 320}
		knee := [2]float64{side.x, 320 + mockThigh}
		ankle := bendFrom(knee, kneeDeg, side.dir, mockShin)

		kps = append(kps,
			Keypoint{Name: side.prefix + "_shoulder", X: shoulder[0], Y: shoulder[1], Score: mockScore},
			Keypoint{Name: side.prefix + "_elbow", X: elbow[0], Y: elbow[1], Score: mockScore},
			Keypoint{Name: side.prefix + "_wrist", X: wrist[0], Y: wrist[1], Score: mockScore},
			Keypoint{Name: side.prefix + "_hip", X: hip[0], Y: hip[1], Score: mockScore},
			Keypoint{Name: side.prefix + "_knee", X: knee[0], Y: knee[1], Score: mockScore},
			Keypoint{Name: side.prefix + "_ankle", X: ankle[0], Y: ankle[1], Score: mockScore},
		)
	}

	return kps
}

// bendFrom places the end of a segment starting at joint so that the angle between the
// upward vertical and the segment equals deg, opening towards dir on the x axis.
func bendFrom(joint [2]float64, deg, dir, length float64) [2]float64 {
	rad := deg * math.Pi / 180
	return [2]float64{
		joint[0] + dir*math.Sin(rad)*length,
		joint[1] - math.Cos(rad)*length,
	}
}

// StandingKeypoints returns a figure standing straight with arms hanging down.
func StandingKeypoints() []Keypoint {
	return BodyKeypoints(180, 180)
}

// SquatKeypoints returns a figure with straight arms and knees bent to 90 degrees.
func SquatKeypoints() []Keypoint {
	return BodyKeypoints(180, 90)
}

// CurlKeypoints returns a figure with elbows fully flexed to 45 degrees.
func CurlKeypoints() []Keypoint {
	return BodyKeypoints(45, 180)
}

// WithScore returns a copy of kps with every joint in names set to score.
func WithScore(kps []Keypoint, score float64, names ...string) []Keypoint {
	out := make([]Keypoint, len(kps))
	copy(out, kps)
	for i := range out {
		for _, n := range names {
			if out[i].Name == n {
				out[i].Score = score
			}
		}
	}
	return out
}
