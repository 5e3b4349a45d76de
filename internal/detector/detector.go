package detector

import "gocv.io/x/gocv"

// Detector defines the pose source contract. Implementations own a stateful inference
// backend; callers must Close them when the owning session ends.
type Detector interface {
	// Detect analyzes a video frame and returns the named keypoints of the single tracked person.
	// Returns an empty slice if nobody is detected.
	Detect(frame *gocv.Mat) ([]Keypoint, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Factory creates a Detector scoped to one owner, usually a live session or an extraction job.
type Factory func() (Detector, error)

// Config holds configuration options for pose detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ModelComplexity selects the landmarker model (0 lite, 1 full, 2 heavy).
	ModelComplexity int

	// ScriptPath overrides the location of the pose service script.
	ScriptPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ModelComplexity: 1,
	}
}

// NewFactory returns a Factory that starts a MediaPipe detector, or a mock detector when the
// pose service is not installed and fallback is true.
func NewFactory(cfg Config, fallback bool) Factory {
	return func() (Detector, error) {
		d, err := NewMediaPipeDetector(cfg)
		if err != nil {
			if fallback {
				return NewMockDetector(), nil
			}
			return nil, err
		}
		return d, nil
	}
}
