package capture

import (
	"errors"
	"testing"
	"time"
)

func TestMockCamera_Playback(t *testing.T) {
	cam := NewMockCamera(2, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		if f.Width != DefaultWidth || f.Height != DefaultHeight {
			t.Errorf("frame %d size = %dx%d", i, f.Width, f.Height)
		}
		f.Close()
	}

	// Third read should fail (no loop)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrFrameUnavailable) {
		t.Errorf("expected ErrFrameUnavailable after all frames consumed, got %v", err)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	cam := NewMockCamera(1, true)
	cam.Open()
	defer cam.Close()

	// Should loop indefinitely
	for i := 0; i < 5; i++ {
		if _, err := cam.ReadFrame(); err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
	}
	if cam.Reads() != 5 {
		t.Errorf("Reads() = %d, want 5", cam.Reads())
	}
}

func TestMockCamera_Errors(t *testing.T) {
	t.Run("read before open", func(t *testing.T) {
		cam := NewMockCamera(0, false)
		if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
			t.Errorf("expected ErrCameraNotOpen, got %v", err)
		}
	})

	t.Run("open failure", func(t *testing.T) {
		denied := errors.New("permission denied")
		cam := NewMockCamera(0, false)
		cam.SetOpenError(denied)
		if err := cam.Open(); !errors.Is(err, denied) {
			t.Errorf("expected %v, got %v", denied, err)
		}
		if cam.IsOpen() {
			t.Error("camera should not be open after failed Open()")
		}
	})

	t.Run("scripted read failure", func(t *testing.T) {
		glitch := errors.New("glitch")
		cam := NewMockCamera(0, false)
		cam.FailRead(1, glitch)
		cam.Open()

		if _, err := cam.ReadFrame(); err != nil {
			t.Fatalf("first read: %v", err)
		}
		if _, err := cam.ReadFrame(); !errors.Is(err, glitch) {
			t.Errorf("second read: expected %v, got %v", glitch, err)
		}
		if _, err := cam.ReadFrame(); err != nil {
			t.Errorf("third read: %v", err)
		}
	})
}

func TestMockSampler(t *testing.T) {
	s := NewMockSampler(3 * time.Second)

	if s.Duration() != 3*time.Second {
		t.Fatalf("Duration() = %v", s.Duration())
	}

	f, err := s.Seek(1500 * time.Millisecond)
	if err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if got := f.Timestamp.Sub(time.Time{}); got != 1500*time.Millisecond {
		t.Errorf("frame timestamp offset = %v", got)
	}

	if _, err := s.Seek(4 * time.Second); !errors.Is(err, ErrFrameUnavailable) {
		t.Errorf("seek past end: expected ErrFrameUnavailable, got %v", err)
	}

	bad := errors.New("decode")
	s.FailAt(time.Second, bad)
	if _, err := s.Seek(time.Second); !errors.Is(err, bad) {
		t.Errorf("expected %v, got %v", bad, err)
	}

	if got := len(s.Seeks()); got != 3 {
		t.Errorf("Seeks() len = %d, want 3", got)
	}

	s.Close()
	if !s.Closed() {
		t.Error("expected closed sampler")
	}
	if _, err := s.Seek(0); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("seek after close: expected ErrCameraNotOpen, got %v", err)
	}
}

func TestOpenVideo_Missing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV file test in short mode")
	}

	if _, err := OpenVideo("/nonexistent/demo.mp4"); err == nil {
		t.Error("expected error opening missing video")
	}
}
