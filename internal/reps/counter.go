// Package reps counts exercise repetitions from a per-frame correctness signal.
package reps

import (
	"math"
	"time"
)

// State is the counter's hysteresis state.
type State int

const (
	// AwaitingHold means the target stance has not been held long enough yet.
	AwaitingHold State = iota
	// HoldLatched means the stance was held; a rep counts once the user leaves it.
	HoldLatched
)

func (s State) String() string {
	switch s {
	case AwaitingHold:
		return "awaiting_hold"
	case HoldLatched:
		return "hold_latched"
	default:
		return "unknown"
	}
}

// maxBreakBeforeReset is the run of incorrect frames after which partial hold progress is discarded.
const maxBreakBeforeReset = 3

// Default durations for hold and break, converted to frames with FramesFor.
const (
	DefaultHoldDuration  = 300 * time.Millisecond
	DefaultBreakDuration = 200 * time.Millisecond
)

// Counter converts a stream of correct/incorrect frames into a repetition count.
// A rep is counted when a correct stance held for holdThreshold frames is followed by
// breakThreshold incorrect frames. Counter is not safe for concurrent use; each live
// session owns one.
type Counter struct {
	holdThreshold  int
	breakThreshold int

	holdFrames  int
	breakFrames int
	latched     bool
	count       int
}

// NewCounter creates a Counter. Thresholds below 1 are raised to 1.
func NewCounter(holdThreshold, breakThreshold int) *Counter {
	if holdThreshold < 1 {
		holdThreshold = 1
	}
	if breakThreshold < 1 {
		breakThreshold = 1
	}
	return &Counter{holdThreshold: holdThreshold, breakThreshold: breakThreshold}
}

// NewCounterForRate creates a Counter whose thresholds correspond to the given durations at fps.
func NewCounterForRate(hold, brk time.Duration, fps float64) *Counter {
	return NewCounter(FramesFor(hold, fps), FramesFor(brk, fps))
}

// FramesFor converts a duration into a frame count at fps, rounding up, never below 1.
func FramesFor(d time.Duration, fps float64) int {
	if d <= 0 || fps <= 0 {
		return 1
	}
	n := int(math.Ceil(d.Seconds()*fps - 1e-9))
	if n < 1 {
		return 1
	}
	return n
}

// Update feeds one frame's verdict and reports whether it completed a rep.
func (c *Counter) Update(correct bool) bool {
	if correct {
		c.holdFrames++
		c.breakFrames = 0
		if c.holdFrames >= c.holdThreshold && !c.latched {
			c.latched = true
		}
		return false
	}

	c.breakFrames++
	counted := false
	if c.latched && c.breakFrames >= c.breakThreshold {
		c.count++
		c.latched = false
		c.holdFrames = 0
		counted = true
	}
	if c.breakFrames > maxBreakBeforeReset {
		c.holdFrames = 0
	}
	return counted
}

// Count returns the number of completed reps.
func (c *Counter) Count() int {
	return c.count
}

// State returns the current hysteresis state.
func (c *Counter) State() State {
	if c.latched {
		return HoldLatched
	}
	return AwaitingHold
}

// Thresholds returns the hold and break thresholds in frames.
func (c *Counter) Thresholds() (hold, brk int) {
	return c.holdThreshold, c.breakThreshold
}

// Reset zeroes all counters, for example when the exercise changes.
func (c *Counter) Reset() {
	c.holdFrames = 0
	c.breakFrames = 0
	c.latched = false
	c.count = 0
}
