package matcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/template"
)

// Mode names the matching strategy behind a Judge.
type Mode string

const (
	ModeTemplate Mode = "template"
	ModeConfig   Mode = "config"
	ModeCoach    Mode = "coach"
)

// ErrNoReference is returned when a coaching judge has no usable reference frames.
var ErrNoReference = errors.New("no reference frames")

// Observation is one live frame presented to a Judge.
type Observation struct {
	// Pose is in pixel coordinates.
	Pose *detector.Pose
	// Normalized is Pose scaled to [0,1] by the frame size, matching extracted keyframes.
	Normalized *detector.Pose
	// Elapsed is the time since the session started.
	Elapsed time.Duration
}

// Verdict is the per-frame output of a Judge.
type Verdict struct {
	IsCorrect  bool     `json:"isCorrect"`
	Feedback   string   `json:"feedback"`
	Similarity *float64 `json:"similarity,omitempty"`
	Phase      string   `json:"phase,omitempty"`
}

// Judge decides whether a live frame shows correct form.
type Judge interface {
	Mode() Mode
	Judge(obs Observation) Verdict
}

// TemplateJudge judges frames against an extracted template.
type TemplateJudge struct {
	matcher *TemplateMatcher
	defs    []angles.Definition
	floor   float64
}

// NewTemplateJudge creates a TemplateJudge. Live angles use floor; partial is the partial
// match threshold.
func NewTemplateJudge(t *template.Template, defs []angles.Definition, floor, partial float64) (*TemplateJudge, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	m := NewTemplateMatcher(t)
	if partial > 0 {
		m.PartialThreshold = partial
	}
	if len(defs) == 0 {
		defs = angles.DefaultDefinitions()
	}
	return &TemplateJudge{matcher: m, defs: defs, floor: floor}, nil
}

func (j *TemplateJudge) Mode() Mode { return ModeTemplate }

// Judge matches the normalized pose, since template angles were extracted in normalized space.
func (j *TemplateJudge) Judge(obs Observation) Verdict {
	pose := obs.Normalized
	if pose == nil {
		pose = obs.Pose
	}
	live := angles.Extract(pose, j.defs, j.floor)
	if len(live) == 0 {
		return Verdict{Feedback: FeedbackNotVisible}
	}

	r, closest := j.matcher.match(live)
	sim := r.Similarity
	v := Verdict{IsCorrect: r.IsMatch, Phase: r.Phase, Similarity: &sim}
	switch {
	case r.IsMatch:
		v.Feedback = FeedbackGoodForm
	case closest != nil && closest.Worst != "":
		v.Feedback = fmt.Sprintf(FeedbackAdjustPhase, strings.ReplaceAll(closest.Worst, "_", " "))
	default:
		v.Feedback = FeedbackNotVisible
	}
	return v
}

// ConfigJudge judges frames against a static exercise configuration.
type ConfigJudge struct {
	matcher *ConfigMatcher
}

// NewConfigJudge wraps a ConfigMatcher.
func NewConfigJudge(m *ConfigMatcher) *ConfigJudge {
	return &ConfigJudge{matcher: m}
}

func (j *ConfigJudge) Mode() Mode { return ModeConfig }

// Judge evaluates the pixel-space pose so configured target angles are true angles.
func (j *ConfigJudge) Judge(obs Observation) Verdict {
	ev := j.matcher.Evaluate(obs.Pose)
	if ev.Visible == 0 {
		return Verdict{Feedback: FeedbackNotVisible}
	}
	acc := ev.Accuracy
	return Verdict{IsCorrect: ev.AllSegmentsHit, Feedback: ev.Feedback, Similarity: &acc}
}

// ReferenceFrame is one pose of a reference recording at an offset from its start.
type ReferenceFrame struct {
	Offset time.Duration
	Pose   detector.Pose
}

// CoachJudge compares frames against a looping reference track.
type CoachJudge struct {
	coach  *Coach
	track  []ReferenceFrame
	period time.Duration
}

// NewCoachJudge builds a reference track from extracted keyframes. The track loops with a
// period of the last offset plus the final sample spacing.
func NewCoachJudge(coach *Coach, keyframes []template.Keyframe) (*CoachJudge, error) {
	track := make([]ReferenceFrame, 0, len(keyframes))
	for i := range keyframes {
		pose, err := keyframes[i].Pose()
		if err != nil {
			return nil, fmt.Errorf("reference frame %d: %w", i, err)
		}
		track = append(track, ReferenceFrame{
			Offset: time.Duration(keyframes[i].TimestampMs) * time.Millisecond,
			Pose:   pose,
		})
	}
	if len(track) == 0 {
		return nil, ErrNoReference
	}
	sort.SliceStable(track, func(a, b int) bool { return track[a].Offset < track[b].Offset })

	step := time.Second
	if n := len(track); n > 1 {
		step = track[n-1].Offset - track[n-2].Offset
	}
	if step <= 0 {
		step = time.Millisecond
	}

	return &CoachJudge{coach: coach, track: track, period: track[len(track)-1].Offset + step}, nil
}

func (j *CoachJudge) Mode() Mode { return ModeCoach }

// Reference returns the reference frame shown at elapsed.
func (j *CoachJudge) Reference(elapsed time.Duration) *ReferenceFrame {
	if elapsed < 0 {
		elapsed = 0
	}
	at := elapsed % j.period
	idx := sort.Search(len(j.track), func(i int) bool { return j.track[i].Offset > at }) - 1
	if idx < 0 {
		idx = 0
	}
	return &j.track[idx]
}

func (j *CoachJudge) Judge(obs Observation) Verdict {
	pose := obs.Normalized
	if pose == nil {
		pose = obs.Pose
	}
	ref := j.Reference(obs.Elapsed)
	r := j.coach.ComparePosesWithFeedback(pose, &ref.Pose)
	v := Verdict{IsCorrect: r.IsCorrect, Feedback: r.Feedback}
	if r.Compared >= j.coach.MinComparisons {
		sim := r.Similarity
		v.Similarity = &sim
	}
	return v
}
