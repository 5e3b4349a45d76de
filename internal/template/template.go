// Package template extracts exercise templates from demonstration videos.
//
// A template is a small set of named phases, each a whole-body stance described by target
// joint angles, plus the phase sequence that makes up one repetition. Templates are derived
// once per exercise and replaced wholesale on re-extraction.
package template

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/detector"
)

// Phase names produced by extraction.
const (
	PhaseStart = "start"
	PhasePeak  = "peak"
)

// DefaultToleranceDegrees is the per-angle tolerance assigned to extracted templates.
const DefaultToleranceDegrees = 30.0

var (
	// ErrExtractionFailed is returned when a video yields too few usable keyframes.
	ErrExtractionFailed = errors.New("template extraction failed")

	// ErrInvalidTemplate is returned by Validate.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Status is the persisted extraction state of an exercise's template.
type Status string

const (
	StatusNone       Status = ""
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Keyframe is one sampled instant of a demonstration video.
// Landmarks are normalized to [0,1] by the frame dimensions.
type Keyframe struct {
	TimestampMs int64               `json:"timestamp"`
	Landmarks   []detector.Keypoint `json:"landmarks"`
	Angles      angles.Set          `json:"angles"`
}

// Pose rebuilds the keyframe's pose, timestamped by its offset into the video.
func (k *Keyframe) Pose() (detector.Pose, error) {
	return detector.NewPose(k.Landmarks, time.Time{}.Add(time.Duration(k.TimestampMs)*time.Millisecond))
}

// Phase is a canonical stance within an exercise.
type Phase struct {
	Name        string             `json:"name"`
	Angles      map[string]float64 `json:"angles"`
	TimestampMs int64              `json:"timestamp"`
}

// Template describes an exercise as phases and the sequence forming one repetition.
type Template struct {
	Phases           []Phase  `json:"phases"`
	RepSequence      []string `json:"rep_sequence"`
	ToleranceDegrees float64  `json:"tolerance_degrees"`
}

// Phase returns the phase with the given name.
func (t *Template) Phase(name string) (*Phase, bool) {
	for i := range t.Phases {
		if t.Phases[i].Name == name {
			return &t.Phases[i], true
		}
	}
	return nil, false
}

// Validate checks that the template has at least two phases, unique phase names, a positive
// tolerance, and a repetition sequence naming only existing phases.
func (t *Template) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTemplate)
	}
	if len(t.Phases) < 2 {
		return fmt.Errorf("%w: need at least 2 phases, have %d", ErrInvalidTemplate, len(t.Phases))
	}
	if t.ToleranceDegrees <= 0 {
		return fmt.Errorf("%w: tolerance must be positive", ErrInvalidTemplate)
	}

	names := make(map[string]bool, len(t.Phases))
	for _, p := range t.Phases {
		if p.Name == "" {
			return fmt.Errorf("%w: unnamed phase", ErrInvalidTemplate)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate phase %q", ErrInvalidTemplate, p.Name)
		}
		names[p.Name] = true
	}

	if len(t.RepSequence) == 0 {
		return fmt.Errorf("%w: empty rep sequence", ErrInvalidTemplate)
	}
	for _, name := range t.RepSequence {
		if !names[name] {
			return fmt.Errorf("%w: rep sequence references unknown phase %q", ErrInvalidTemplate, name)
		}
	}
	return nil
}

// Document is the persisted shape of an exercise template together with its extraction status.
type Document struct {
	Phases           []Phase  `json:"phases"`
	RepSequence      []string `json:"rep_sequence"`
	ToleranceDegrees float64  `json:"tolerance_degrees"`
	Status           Status   `json:"status"`
	ErrorMessage     string   `json:"error_message,omitempty"`
}

// NewDocument builds a Document. t may be nil while extraction is pending or failed.
func NewDocument(t *Template, status Status, errorMessage string) Document {
	doc := Document{
		Phases:       []Phase{},
		RepSequence:  []string{},
		Status:       status,
		ErrorMessage: errorMessage,
	}
	if t != nil {
		doc.Phases = t.Phases
		doc.RepSequence = t.RepSequence
		doc.ToleranceDegrees = t.ToleranceDegrees
	}
	return doc
}

// Template returns the template held by a ready document.
func (d *Document) Template() (*Template, error) {
	if d.Status != StatusReady {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidTemplate, d.Status)
	}
	t := &Template{
		Phases:           d.Phases,
		RepSequence:      d.RepSequence,
		ToleranceDegrees: d.ToleranceDegrees,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
