package detector

import (
	"errors"
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestParseJoint(t *testing.T) {
	tests := []struct {
		name    string
		want    Joint
		wantErr bool
	}{
		{"nose", Nose, false},
		{"left_elbow", LeftElbow, false},
		{"right_foot_index", RightFootIndex, false},
		{"left_hand", 0, true},
		{"", 0, true},
		{"LEFT_ELBOW", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJoint(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownJoint) {
					t.Fatalf("expected ErrUnknownJoint, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestJoint_TextRoundTrip(t *testing.T) {
	for j := Joint(0); j < NumJoints; j++ {
		text, err := j.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", j, err)
		}
		var back Joint
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %s: %v", text, err)
		}
		if back != j {
			t.Errorf("expected %v, got %v", j, back)
		}
	}

	if _, err := NumJoints.MarshalText(); err == nil {
		t.Error("expected error marshaling out of range joint")
	}
}

func TestNewPose(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	t.Run("builds typed landmarks", func(t *testing.T) {
		pose, err := NewPose([]Keypoint{
			{Name: "left_shoulder", X: 10, Y: 20, Score: 0.8},
			{Name: "left_elbow", X: 30, Y: 40, Score: 0.6},
		}, ts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pose.Timestamp.Equal(ts) {
			t.Errorf("expected timestamp %v, got %v", ts, pose.Timestamp)
		}
		lm := pose.Points[LeftElbow]
		if lm.X != 30 || lm.Y != 40 || lm.Confidence != 0.6 {
			t.Errorf("unexpected elbow landmark %+v", lm)
		}
		if pose.Points[RightElbow].Confidence != 0 {
			t.Error("expected unreported joint to have zero confidence")
		}
	})

	t.Run("rejects unknown joint names", func(t *testing.T) {
		_, err := NewPose([]Keypoint{
			{Name: "left_shoulder", X: 10, Y: 20, Score: 0.8},
			{Name: "tail", X: 1, Y: 1, Score: 0.9},
		}, ts)
		if !errors.Is(err, ErrUnknownJoint) {
			t.Fatalf("expected ErrUnknownJoint, got %v", err)
		}
	})

	t.Run("clamps scores", func(t *testing.T) {
		pose, err := NewPose([]Keypoint{
			{Name: "nose", Score: 1.7},
			{Name: "left_ear", Score: -0.3},
		}, ts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pose.Points[Nose].Confidence != 1 {
			t.Errorf("expected confidence 1, got %f", pose.Points[Nose].Confidence)
		}
		if pose.Points[LeftEar].Confidence != 0 {
			t.Errorf("expected confidence 0, got %f", pose.Points[LeftEar].Confidence)
		}
	})
}

func TestPose_Landmark(t *testing.T) {
	pose, _ := NewPose([]Keypoint{
		{Name: "left_knee", X: 1, Y: 2, Score: 0.4},
	}, time.Time{})

	if _, ok := pose.Landmark(LeftKnee, 0.25); !ok {
		t.Error("expected knee present at floor 0.25")
	}
	if _, ok := pose.Landmark(LeftKnee, 0.5); ok {
		t.Error("expected knee absent at floor 0.5")
	}
	if _, ok := pose.Landmark(RightKnee, 0); ok {
		t.Error("expected unreported joint absent even with zero floor")
	}
	if _, ok := pose.Landmark(Joint(99), 0); ok {
		t.Error("expected invalid joint absent")
	}

	var nilPose *Pose
	if _, ok := nilPose.Landmark(LeftKnee, 0); ok {
		t.Error("expected nil pose to report nothing")
	}
}

func TestPose_Detected(t *testing.T) {
	pose, _ := NewPose(WithScore(StandingKeypoints(), 0.3, "left_wrist", "right_wrist"), time.Time{})

	if got := pose.Detected(0.25); got != 13 {
		t.Errorf("expected 13 joints at floor 0.25, got %d", got)
	}
	if got := pose.Detected(0.5); got != 11 {
		t.Errorf("expected 11 joints at floor 0.5, got %d", got)
	}
}

func TestPose_Normalize(t *testing.T) {
	pose, _ := NewPose([]Keypoint{
		{Name: "left_hip", X: 320, Y: 240, Score: 0.9},
	}, time.Time{})

	normalized := pose.Normalize(640, 480)

	lm := normalized.Points[LeftHip]
	if math.Abs(lm.X-0.5) > epsilon || math.Abs(lm.Y-0.5) > epsilon {
		t.Errorf("expected (0.5, 0.5), got (%f, %f)", lm.X, lm.Y)
	}
	if lm.Confidence != 0.9 {
		t.Errorf("expected confidence preserved, got %f", lm.Confidence)
	}
	if pose.Points[LeftHip].X != 320 {
		t.Error("expected original pose untouched")
	}

	t.Run("zero dimensions return a copy", func(t *testing.T) {
		same := pose.Normalize(0, 0)
		if same.Points[LeftHip].X != 320 {
			t.Errorf("expected unscaled copy, got %f", same.Points[LeftHip].X)
		}
	})

	t.Run("nil pose", func(t *testing.T) {
		var p *Pose
		if p.Normalize(640, 480) != nil {
			t.Error("expected nil")
		}
	})
}

func TestPose_Keypoints(t *testing.T) {
	in := SquatKeypoints()
	pose, err := NewPose(in, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := pose.Keypoints()
	if len(out) != len(in) {
		t.Fatalf("expected %d keypoints, got %d", len(in), len(out))
	}
	if out[0].Name != "nose" {
		t.Errorf("expected joint order to start with nose, got %s", out[0].Name)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns configured keypoints", func(t *testing.T) {
		m := NewMockDetector()
		m.SetKeypoints(StandingKeypoints())

		kps, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(kps) != 13 {
			t.Errorf("expected 13 keypoints, got %d", len(kps))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockDetector()
		want := errors.New("boom")
		m.SetError(want)

		if _, err := m.Detect(nil); !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	})

	t.Run("consumes sequence then falls back", func(t *testing.T) {
		m := NewMockDetector()
		m.SetKeypoints(StandingKeypoints())
		fail := errors.New("no frame")
		m.SetSequence([]MockResult{
			{Keypoints: SquatKeypoints()},
			{Err: fail},
		})

		kps, _ := m.Detect(nil)
		pose, _ := NewPose(kps, time.Time{})
		if pose.Points[LeftAnkle].X == 300 {
			t.Error("expected bent knee on first call")
		}
		if _, err := m.Detect(nil); !errors.Is(err, fail) {
			t.Errorf("expected scripted error, got %v", err)
		}
		kps, err := m.Detect(nil)
		if err != nil || len(kps) != 13 {
			t.Errorf("expected fallback keypoints, got %d (%v)", len(kps), err)
		}
		if m.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", m.Calls())
		}
	})

	t.Run("close", func(t *testing.T) {
		m := NewMockDetector()
		if m.Closed() {
			t.Fatal("expected open detector")
		}
		if err := m.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.Closed() {
			t.Error("expected closed detector")
		}
	})
}

func TestBodyKeypoints_Geometry(t *testing.T) {
	pose, _ := NewPose(BodyKeypoints(90, 180), time.Time{})

	// Forearm should be horizontal for a right angle elbow.
	elbow := pose.Points[RightElbow]
	wrist := pose.Points[RightWrist]
	if math.Abs(wrist.Y-elbow.Y) > 1e-6 {
		t.Errorf("expected horizontal forearm, got dy=%f", wrist.Y-elbow.Y)
	}
	if wrist.X <= elbow.X {
		t.Error("expected right forearm to open outwards")
	}

	// Straight legs put the ankle directly below the knee.
	knee := pose.Points[LeftKnee]
	ankle := pose.Points[LeftAnkle]
	if math.Abs(ankle.X-knee.X) > 1e-6 || ankle.Y <= knee.Y {
		t.Errorf("expected ankle below knee, got knee=%+v ankle=%+v", knee, ankle)
	}
}

func TestNewFactory_Fallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptPath = "/nonexistent/pose_service.py"

	d, err := NewFactory(cfg, true)()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.(*MockDetector); !ok {
		t.Errorf("expected mock fallback, got %T", d)
	}

	if _, err := NewFactory(cfg, false)(); !errors.Is(err, ErrPoseServiceNotFound) {
		t.Errorf("expected ErrPoseServiceNotFound, got %v", err)
	}
}
