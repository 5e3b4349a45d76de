package matcher

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/detector"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for exercise configurations that cannot be evaluated.
var ErrInvalidConfig = errors.New("invalid exercise configuration")

//go:embed default.yaml
var defaultConfigYAML []byte

// Cues are the feedback texts of a segment. Low applies when the live angle is below the
// target, High when above, Aligned when the segment is hit.
type Cues struct {
	Low     string `json:"low" yaml:"low"`
	High    string `json:"high" yaml:"high"`
	Aligned string `json:"aligned" yaml:"aligned"`
}

// Segment is a weighted joint angle target.
type Segment struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Points      []string `json:"points" yaml:"points"`
	TargetAngle float64  `json:"targetAngle" yaml:"targetAngle"`
	Tolerance   float64  `json:"tolerance" yaml:"tolerance"`
	Weight      float64  `json:"weight" yaml:"weight"`
	Cues        Cues     `json:"cues" yaml:"cues"`

	def angles.Definition
}

// ExerciseConfig is a static description of correct form used when no template exists.
type ExerciseConfig struct {
	Name     string    `json:"name" yaml:"name"`
	Segments []Segment `json:"segments" yaml:"segments"`
}

// Validate checks every segment and resolves its joint names.
func (c *ExerciseConfig) Validate() error {
	if len(c.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidConfig)
	}
	for i := range c.Segments {
		s := &c.Segments[i]
		if s.ID == "" {
			return fmt.Errorf("%w: segment %d has no id", ErrInvalidConfig, i)
		}
		if len(s.Points) != 3 {
			return fmt.Errorf("%w: segment %s needs 3 points, has %d", ErrInvalidConfig, s.ID, len(s.Points))
		}
		var joints [3]detector.Joint
		for j, name := range s.Points {
			joint, err := detector.ParseJoint(name)
			if err != nil {
				return fmt.Errorf("%w: segment %s: %v", ErrInvalidConfig, s.ID, err)
			}
			joints[j] = joint
		}
		if s.Tolerance <= 0 {
			return fmt.Errorf("%w: segment %s tolerance must be positive", ErrInvalidConfig, s.ID)
		}
		if s.TargetAngle < 0 || s.TargetAngle > 180 {
			return fmt.Errorf("%w: segment %s target %.1f outside [0,180]", ErrInvalidConfig, s.ID, s.TargetAngle)
		}
		if s.Weight <= 0 {
			s.Weight = 1
		}
		s.def = angles.Definition{Name: s.ID, A: joints[0], Vertex: joints[1], B: joints[2]}
	}
	return nil
}

// ParseExerciseConfig decodes a configuration as JSON when asJSON is set, YAML otherwise.
func ParseExerciseConfig(data []byte, asJSON bool) (*ExerciseConfig, error) {
	var cfg ExerciseConfig
	var err error
	if asJSON {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadExerciseConfig reads a configuration file, choosing the decoder by extension.
func LoadExerciseConfig(path string) (*ExerciseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exercise config: %w", err)
	}
	return ParseExerciseConfig(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// DefaultExerciseConfig returns the built-in upright stance configuration.
func DefaultExerciseConfig() *ExerciseConfig {
	cfg, err := ParseExerciseConfig(defaultConfigYAML, false)
	if err != nil {
		panic(fmt.Sprintf("built-in exercise config: %v", err))
	}
	return cfg
}

// SegmentResult is the evaluation of one segment.
type SegmentResult struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Visible bool    `json:"visible"`
	Angle   float64 `json:"angle"`
	Diff    float64 `json:"diff"`
	Hit     bool    `json:"hit"`
	Score   float64 `json:"score"`
}

// Evaluation is the per-frame outcome of a ConfigMatcher.
type Evaluation struct {
	Accuracy       float64         `json:"accuracy"`
	AllSegmentsHit bool            `json:"allSegmentsHit"`
	Feedback       string          `json:"feedback"`
	Visible        int             `json:"visible"`
	Segments       []SegmentResult `json:"segments"`
}

// ConfigMatcher evaluates poses against an ExerciseConfig.
type ConfigMatcher struct {
	config *ExerciseConfig
	floor  float64
}

// NewConfigMatcher validates cfg and returns a matcher treating landmarks below floor as absent.
func NewConfigMatcher(cfg *ExerciseConfig, floor float64) (*ConfigMatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConfigMatcher{config: cfg, floor: floor}, nil
}

// Config returns the configuration being evaluated.
func (m *ConfigMatcher) Config() *ExerciseConfig {
	return m.config
}

// SegmentScore returns the contribution of a segment whose angle is off by diff degrees.
func SegmentScore(diff, tolerance float64) (score float64, hit bool) {
	d := math.Abs(diff)
	if d <= tolerance {
		return 1, true
	}
	score = 1 - d/(2*tolerance)
	return math.Max(0, math.Min(score, NearMissCap)), false
}

// Evaluate scores pose against every segment. Occluded segments are excluded from the
// accuracy; AllSegmentsHit requires at least one visible segment.
func (m *ConfigMatcher) Evaluate(pose *detector.Pose) Evaluation {
	ev := Evaluation{Segments: make([]SegmentResult, 0, len(m.config.Segments))}

	var weighted, totalWeight float64
	var firstMiss *Segment
	var firstMissDiff float64
	allHit := true

	for i := range m.config.Segments {
		seg := &m.config.Segments[i]
		res := SegmentResult{ID: seg.ID, Label: seg.Label}

		set := angles.Extract(pose, []angles.Definition{seg.def}, m.floor)
		deg, ok := set[seg.ID]
		if !ok {
			ev.Segments = append(ev.Segments, res)
			continue
		}

		res.Visible = true
		res.Angle = deg
		res.Diff = deg - seg.TargetAngle
		res.Score, res.Hit = SegmentScore(res.Diff, seg.Tolerance)
		ev.Segments = append(ev.Segments, res)
		ev.Visible++

		weighted += seg.Weight * res.Score
		totalWeight += seg.Weight
		if !res.Hit {
			allHit = false
			if firstMiss == nil {
				firstMiss = seg
				firstMissDiff = res.Diff
			}
		}
	}

	if totalWeight > 0 {
		ev.Accuracy = weighted / totalWeight
	}
	ev.AllSegmentsHit = allHit && ev.Visible > 0

	switch {
	case firstMiss != nil:
		if firstMissDiff < 0 {
			ev.Feedback = firstMiss.Cues.Low
		} else {
			ev.Feedback = firstMiss.Cues.High
		}
	case ev.AllSegmentsHit:
		for _, seg := range m.config.Segments {
			if seg.Cues.Aligned != "" {
				ev.Feedback = seg.Cues.Aligned
				break
			}
		}
	}
	return ev
}
