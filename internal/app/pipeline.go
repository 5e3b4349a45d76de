package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/matcher"
	"github.com/ayusman/vyayama/internal/plugin"
	"github.com/ayusman/vyayama/internal/session"
	"github.com/ayusman/vyayama/internal/store"
	"gocv.io/x/gocv"
)

// Mode selects how a live session judges form.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeTemplate Mode = Mode(matcher.ModeTemplate)
	ModeConfig   Mode = Mode(matcher.ModeConfig)
	ModeCoach    Mode = Mode(matcher.ModeCoach)
)

// ParseMode accepts the mode names used on the wire. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeTemplate, ModeConfig, ModeCoach:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// SessionOptions describes a live session to start.
type SessionOptions struct {
	ExerciseID string
	Mode       Mode
	// TargetReps overrides the exercise's target. Zero uses the exercise's value.
	TargetReps int
	// OnUpdate receives every judged frame on the session goroutine.
	OnUpdate func(session.Update)
}

// Live is a running session.
type Live struct {
	*session.Session
	exercise *store.Exercise
	cancel   context.CancelFunc
	done     chan struct{}
	summary  *session.Summary
	err      error
}

// Exercise returns the exercise being performed.
func (l *Live) Exercise() *store.Exercise {
	return l.exercise
}

// Stop asks the session to end at the next frame boundary.
func (l *Live) Stop() {
	l.cancel()
}

// Done is closed when the session has ended and been recorded.
func (l *Live) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the session ends and returns its summary.
func (l *Live) Wait() (*session.Summary, error) {
	<-l.done
	return l.summary, l.err
}

// StartSession starts a live session on the shared camera.
func (a *App) StartSession(opts SessionOptions) (*Live, error) {
	ex, err := a.store.Exercises().GetByID(opts.ExerciseID)
	if err != nil {
		return nil, err
	}
	judge, err := a.JudgeFor(ex.ID, opts.Mode)
	if err != nil {
		return nil, err
	}

	target := opts.TargetReps
	if target <= 0 {
		target = ex.TargetReps
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		return nil, ErrSessionActive
	}

	ctx, cancel := context.WithCancel(a.ctx)
	live := &Live{exercise: ex, cancel: cancel, done: make(chan struct{})}
	live.Session = session.New(session.Config{
		ExerciseID:    ex.ID,
		Camera:        a.camera,
		Detectors:     a.detectors,
		Judge:         judge,
		Log:           a.log,
		FPS:           a.settings.Camera.FPS,
		HoldDuration:  a.settings.Live.HoldDuration,
		BreakDuration: a.settings.Live.BreakDuration,
		TargetReps:    target,
		OnUpdate:      opts.OnUpdate,
		OnRep: func(count int) {
			a.notify(plugin.EventRep, ex, live.ID(), count, nil)
		},
		OnFrame: a.capturePreview,
	})
	a.active = live

	go a.runSession(ctx, live)
	return live, nil
}

func (a *App) runSession(ctx context.Context, live *Live) {
	defer close(live.done)
	defer live.cancel()

	live.summary, live.err = live.Run(ctx)

	a.mu.Lock()
	a.active = nil
	a.preview = nil
	a.mu.Unlock()

	if live.err != nil {
		a.log.Warnf("Session for %s failed: %v", live.exercise.Name, live.err)
		return
	}

	sum := live.summary
	rec := &store.SessionRecord{
		ID:         sum.ID,
		ExerciseID: sum.ExerciseID,
		Mode:       string(sum.Mode),
		Reps:       sum.Reps,
		TargetReps: sum.TargetReps,
		Completed:  sum.Completed,
		Frames:     sum.Frames,
		Dropped:    sum.Dropped,
		StartedAt:  sum.StartedAt,
		EndedAt:    sum.EndedAt,
	}
	if err := a.store.Sessions().Create(rec); err != nil {
		a.log.Errorf("Failed to record session %s: %v", sum.ID, err)
	}

	// Stopped or failed sessions are recorded but only a reached target is announced.
	if !sum.Completed {
		return
	}
	params, _ := json.Marshal(map[string]any{
		"target_reps": sum.TargetReps,
		"mode":        sum.Mode,
		"duration_ms": sum.EndedAt.Sub(sum.StartedAt).Milliseconds(),
	})
	a.notify(plugin.EventSessionCompleted, live.exercise, sum.ID, sum.Reps, params)
}

// StopSession stops the live session and waits for it to be recorded.
func (a *App) StopSession() (*session.Summary, error) {
	live := a.Active()
	if live == nil {
		return nil, ErrNoSession
	}
	live.Stop()
	return live.Wait()
}

// Active returns the running session, or nil.
func (a *App) Active() *Live {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Status is a snapshot of the live session for status displays.
type Status struct {
	Active     bool   `json:"active"`
	SessionID  string `json:"session_id,omitempty"`
	ExerciseID string `json:"exercise_id,omitempty"`
	Exercise   string `json:"exercise,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Reps       int    `json:"reps"`
}

// Status reports the live session state.
func (a *App) Status() Status {
	live := a.Active()
	if live == nil {
		return Status{}
	}
	return Status{
		Active:     true,
		SessionID:  live.ID(),
		ExerciseID: live.exercise.ID,
		Exercise:   live.exercise.Name,
		Mode:       string(live.Mode()),
		Reps:       live.Reps(),
	}
}

// Preview returns the latest JPEG frame of the live session, or nil when no session runs.
func (a *App) Preview() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preview
}

func (a *App) capturePreview(frame *capture.Frame) {
	if frame.Mat == nil || frame.Mat.Empty() {
		return
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame.Mat)
	if err != nil {
		a.log.Debugf("Preview encode failed: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.mu.Lock()
	a.preview = data
	a.mu.Unlock()
}

func (a *App) notify(ev plugin.Event, ex *store.Exercise, sessionID string, reps int, params json.RawMessage) {
	a.notifier.Notify(plugin.Request{
		Event:     ev,
		Exercise:  ex.Name,
		SessionID: sessionID,
		Reps:      reps,
		Params:    params,
	})
}
