package template

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/cyclopcam/logs"
)

// Extraction defaults.
const (
	DefaultInterval   = 500 * time.Millisecond
	DefaultMaxSamples = 6
)

// Options configures an Extractor.
type Options struct {
	// Interval is the target spacing between samples.
	Interval time.Duration
	// MaxSamples caps the sample count regardless of video length.
	MaxSamples int
	// ConfidenceFloor is the landmark confidence below which a joint is absent.
	ConfidenceFloor float64
	// SignificantChange is the angle sweep, in degrees, that marks an angle active.
	SignificantChange float64
	// ToleranceDegrees is assigned to the resulting template.
	ToleranceDegrees float64
	// Definitions lists the angles computed per keyframe.
	Definitions []angles.Definition
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{
		Interval:          DefaultInterval,
		MaxSamples:        DefaultMaxSamples,
		ConfidenceFloor:   angles.TemplateConfidenceFloor,
		SignificantChange: SignificantChangeDegrees,
		ToleranceDegrees:  DefaultToleranceDegrees,
		Definitions:       angles.DefaultDefinitions(),
	}
}

// Result is the outcome of a successful extraction.
type Result struct {
	Template  *Template
	Keyframes []Keyframe
}

// Extractor converts a demonstration video into a Template.
type Extractor struct {
	opts Options
	log  logs.Log

	// OnProgress, if set, is called after every attempted sample.
	OnProgress func(done, total int)
}

// NewExtractor creates an Extractor. Zero-valued options fall back to their defaults.
func NewExtractor(opts Options, log logs.Log) *Extractor {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = def.MaxSamples
	}
	if opts.ConfidenceFloor <= 0 {
		opts.ConfidenceFloor = def.ConfidenceFloor
	}
	if opts.SignificantChange <= 0 {
		opts.SignificantChange = def.SignificantChange
	}
	if opts.ToleranceDegrees <= 0 {
		opts.ToleranceDegrees = def.ToleranceDegrees
	}
	if len(opts.Definitions) == 0 {
		opts.Definitions = def.Definitions
	}
	return &Extractor{opts: opts, log: log}
}

// SampleCount returns how many sample intervals fit in a video of durationMs:
// min(maxSamples, floor(durationMs / max(intervalMs, durationMs/maxSamples))).
// Sampling reads one frame more than this, covering both ends of the clip.
func SampleCount(durationMs, intervalMs int64, maxSamples int) (count int, stepMs float64) {
	if durationMs <= 0 || maxSamples <= 0 {
		return 0, 0
	}
	stepMs = float64(durationMs) / float64(maxSamples)
	if float64(intervalMs) > stepMs {
		stepMs = float64(intervalMs)
	}
	count = int(float64(durationMs) / stepMs)
	if count > maxSamples {
		count = maxSamples
	}
	return count, stepMs
}

// Extract samples the video, detects one pose per sample and identifies phases.
// Sample failures are logged and skipped. The detector is used but not closed.
func (e *Extractor) Extract(ctx context.Context, sampler capture.Sampler, det detector.Detector) (*Result, error) {
	duration := sampler.Duration()
	numSamples, stepMs := SampleCount(duration.Milliseconds(), e.opts.Interval.Milliseconds(), e.opts.MaxSamples)
	if numSamples < 2 {
		return nil, fmt.Errorf("%w: video of %v too short to sample", ErrExtractionFailed, duration)
	}

	total := numSamples + 1
	keyframes := make([]Keyframe, 0, total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ts := time.Duration(float64(i)*stepMs) * time.Millisecond
		if ts >= duration {
			ts = duration - time.Millisecond
		}

		kf, ok := e.sample(sampler, det, ts)
		if ok {
			keyframes = append(keyframes, kf)
		}
		if e.OnProgress != nil {
			e.OnProgress(i+1, total)
		}
	}

	if len(keyframes) < 2 {
		return nil, fmt.Errorf("%w: %d of %d samples usable", ErrExtractionFailed, len(keyframes), total)
	}

	t, err := BuildTemplate(keyframes, e.opts.SignificantChange, e.opts.ToleranceDegrees)
	if err != nil {
		return nil, err
	}

	e.log.Infof("Extracted template from %d/%d samples (phases at %dms and %dms)",
		len(keyframes), total, t.Phases[0].TimestampMs, t.Phases[1].TimestampMs)

	return &Result{Template: t, Keyframes: keyframes}, nil
}

func (e *Extractor) sample(sampler capture.Sampler, det detector.Detector, ts time.Duration) (Keyframe, bool) {
	frame, err := sampler.Seek(ts)
	if err != nil {
		e.log.Warnf("Skipping sample at %v: %v", ts, err)
		return Keyframe{}, false
	}
	defer frame.Close()

	kps, err := det.Detect(frame.Mat)
	if err != nil {
		e.log.Warnf("Skipping sample at %v: detect: %v", ts, err)
		return Keyframe{}, false
	}

	pose, err := detector.NewPose(kps, frame.Timestamp)
	if err != nil {
		e.log.Warnf("Skipping sample at %v: %v", ts, err)
		return Keyframe{}, false
	}

	normalized := pose.Normalize(frame.Width, frame.Height)
	set := angles.Extract(normalized, e.opts.Definitions, e.opts.ConfidenceFloor)
	if len(set) == 0 {
		e.log.Warnf("Skipping sample at %v: no confident angles", ts)
		return Keyframe{}, false
	}

	return Keyframe{
		TimestampMs: ts.Milliseconds(),
		Landmarks:   normalized.Keypoints(),
		Angles:      set,
	}, true
}
