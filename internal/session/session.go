// Package session runs the live per-frame loop: read a frame, detect a pose, judge it, count reps.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/matcher"
	"github.com/ayusman/vyayama/internal/reps"
	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
)

var (
	// ErrCameraUnavailable is returned when the camera cannot be opened. The loop never starts.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrDetectorUnavailable is returned when the pose source cannot be created.
	ErrDetectorUnavailable = errors.New("pose detector unavailable")

	// ErrAlreadyRunning is returned when Run is called twice on the same session.
	ErrAlreadyRunning = errors.New("session already running")
)

// Update is the per-frame output of a session.
type Update struct {
	IsCorrect    bool     `json:"isCorrect"`
	Feedback     string   `json:"feedback"`
	Similarity   *float64 `json:"similarity,omitempty"`
	RepCount     int      `json:"repCount"`
	RepCompleted bool     `json:"repCompleted,omitempty"`
	Phase        string   `json:"phase,omitempty"`
	Timestamp    int64    `json:"timestamp"`
}

// Summary describes a finished session.
type Summary struct {
	ID         string       `json:"id"`
	ExerciseID string       `json:"exercise_id"`
	Mode       matcher.Mode `json:"mode"`
	Reps       int          `json:"reps"`
	TargetReps int          `json:"target_reps"`
	Completed  bool         `json:"completed"`
	Frames     int          `json:"frames"`
	Dropped    int          `json:"dropped"`
	StartedAt  time.Time    `json:"started_at"`
	EndedAt    time.Time    `json:"ended_at"`
}

// Config configures a Session.
type Config struct {
	ExerciseID string
	Camera     capture.Camera
	Detectors  detector.Factory
	Judge      matcher.Judge
	Log        logs.Log

	// FPS is the tick rate; rep thresholds are derived from it.
	FPS           int
	HoldDuration  time.Duration
	BreakDuration time.Duration

	// TargetReps ends the session once reached. Zero means run until canceled.
	TargetReps int

	// OnUpdate receives every judged frame, on the loop goroutine.
	OnUpdate func(Update)
	// OnRep is called after each counted rep with the new count.
	OnRep func(count int)
	// OnFrame sees every captured frame before it is released.
	OnFrame func(*capture.Frame)
}

// Session is one live exercise session. It owns its rep counter and judge exclusively.
type Session struct {
	id  string
	cfg Config

	mu      sync.Mutex
	running bool
	reps    int
}

// New creates a session. Zero durations and FPS fall back to defaults.
func New(cfg Config) *Session {
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = reps.DefaultHoldDuration
	}
	if cfg.BreakDuration <= 0 {
		cfg.BreakDuration = reps.DefaultBreakDuration
	}
	return &Session{id: uuid.NewString(), cfg: cfg}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// ExerciseID returns the exercise being performed.
func (s *Session) ExerciseID() string {
	return s.cfg.ExerciseID
}

// Mode returns the judging strategy in use.
func (s *Session) Mode() matcher.Mode {
	return s.cfg.Judge.Mode()
}

// Reps returns the current rep count. Safe to call while Run is active.
func (s *Session) Reps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reps
}

// Running reports whether the loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes the frame loop until ctx is canceled or the target rep count is reached.
// Cancellation is a normal stop and returns the summary with a nil error. The detector is
// created when the loop starts and closed before Run returns.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.reps = 0
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	cam := s.cfg.Camera
	if err := cam.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			s.cfg.Log.Warnf("Session %s: close camera: %v", s.id, err)
		}
	}()
	cam.SetFPS(s.cfg.FPS)

	det, err := s.cfg.Detectors()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	defer func() {
		if err := det.Close(); err != nil {
			s.cfg.Log.Warnf("Session %s: close detector: %v", s.id, err)
		}
	}()

	counter := reps.NewCounterForRate(s.cfg.HoldDuration, s.cfg.BreakDuration, float64(s.cfg.FPS))
	hold, brk := counter.Thresholds()

	summary := &Summary{
		ID:         s.id,
		ExerciseID: s.cfg.ExerciseID,
		Mode:       s.cfg.Judge.Mode(),
		TargetReps: s.cfg.TargetReps,
		StartedAt:  time.Now(),
	}
	s.cfg.Log.Infof("Session %s started (exercise %s, mode %s, %d fps, hold %d, break %d frames)",
		s.id, s.cfg.ExerciseID, summary.Mode, s.cfg.FPS, hold, brk)

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.finish(summary, counter), nil
		case <-ticker.C:
			if !s.step(cam, det, counter, summary) {
				continue
			}
			if s.cfg.TargetReps > 0 && counter.Count() >= s.cfg.TargetReps {
				summary.Completed = true
				return s.finish(summary, counter), nil
			}
		}
	}
}

// step processes one tick. It reports whether the frame was judged.
func (s *Session) step(cam capture.Camera, det detector.Detector, counter *reps.Counter, summary *Summary) bool {
	frame, err := cam.ReadFrame()
	if err != nil {
		summary.Dropped++
		s.cfg.Log.Debugf("Session %s: dropped frame: %v", s.id, err)
		return false
	}
	defer frame.Close()

	if s.cfg.OnFrame != nil {
		s.cfg.OnFrame(frame)
	}

	kps, err := det.Detect(frame.Mat)
	if err != nil {
		summary.Dropped++
		s.cfg.Log.Debugf("Session %s: dropped frame: detect: %v", s.id, err)
		return false
	}

	pose, err := detector.NewPose(kps, frame.Timestamp)
	if err != nil {
		summary.Dropped++
		s.cfg.Log.Debugf("Session %s: dropped frame: %v", s.id, err)
		return false
	}

	verdict := s.cfg.Judge.Judge(matcher.Observation{
		Pose:       &pose,
		Normalized: pose.Normalize(frame.Width, frame.Height),
		Elapsed:    time.Since(summary.StartedAt),
	})
	if len(kps) == 0 {
		verdict.Feedback = matcher.FeedbackNoPose
	}

	counted := counter.Update(verdict.IsCorrect)
	summary.Frames++

	s.mu.Lock()
	s.reps = counter.Count()
	s.mu.Unlock()

	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(Update{
			IsCorrect:    verdict.IsCorrect,
			Feedback:     verdict.Feedback,
			Similarity:   verdict.Similarity,
			RepCount:     counter.Count(),
			RepCompleted: counted,
			Phase:        verdict.Phase,
			Timestamp:    frame.Timestamp.UnixMilli(),
		})
	}
	if counted {
		s.cfg.Log.Infof("Session %s: rep %d", s.id, counter.Count())
		if s.cfg.OnRep != nil {
			s.cfg.OnRep(counter.Count())
		}
	}
	return true
}

func (s *Session) finish(summary *Summary, counter *reps.Counter) *Summary {
	summary.Reps = counter.Count()
	summary.EndedAt = time.Now()
	s.cfg.Log.Infof("Session %s ended: %d reps, %d frames, %d dropped, completed=%v",
		s.id, summary.Reps, summary.Frames, summary.Dropped, summary.Completed)
	return summary
}
