package template

import (
	"fmt"
	"sort"
)

// SignificantChangeDegrees is the range an angle must sweep across keyframes to count as active.
const SignificantChangeDegrees = 20.0

// angleRange tracks the extremes of one angle across keyframes.
type angleRange struct {
	min, max       float64
	minIdx, maxIdx int
	lastIdx        int
	seen           int
}

func (r *angleRange) variance() float64 {
	return r.max - r.min
}

// beats orders candidate primary angles: larger variance first, then the angle seen in more keyframes.
func (r *angleRange) beats(o *angleRange) bool {
	if r.variance() != o.variance() {
		return r.variance() > o.variance()
	}
	return r.seen > o.seen
}

// IdentifyPhases derives the start and peak phases from keyframes.
//
// Every angle's variance is its max minus its min across keyframes. Angles whose variance
// exceeds significantChange are active; with none active, the single most variable angle is
// used. The primary angle is the most variable active one, ties going to the angle seen in
// the most keyframes; the keyframes holding its minimum
// and maximum become the two phases, named "start" and "peak" in chronological order. Each
// phase carries the complete angle set of its keyframe.
//
// Constant input never fails: the minimum stays at the first keyframe holding the angle and
// the maximum moves to the last one, so two phases are still produced.
func IdentifyPhases(keyframes []Keyframe, significantChange float64) ([]Phase, error) {
	ranges := make(map[string]*angleRange)
	for i, kf := range keyframes {
		for name, deg := range kf.Angles {
			r, ok := ranges[name]
			if !ok {
				ranges[name] = &angleRange{min: deg, max: deg, minIdx: i, maxIdx: i, lastIdx: i, seen: 1}
				continue
			}
			if deg < r.min {
				r.min, r.minIdx = deg, i
			}
			if deg > r.max {
				r.max, r.maxIdx = deg, i
			}
			r.lastIdx = i
			r.seen++
		}
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: no angles observed", ErrExtractionFailed)
	}

	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	primary := ""
	for _, name := range names {
		if ranges[name].variance() <= significantChange {
			continue
		}
		if primary == "" || ranges[name].beats(ranges[primary]) {
			primary = name
		}
	}
	if primary == "" {
		// No angle moved enough; fall back to the most variable one.
		for _, name := range names {
			if primary == "" || ranges[name].beats(ranges[primary]) {
				primary = name
			}
		}
	}

	r := ranges[primary]
	startIdx, peakIdx := r.minIdx, r.maxIdx
	if startIdx == peakIdx {
		peakIdx = r.lastIdx
	}

	first, second := keyframes[startIdx], keyframes[peakIdx]
	if second.TimestampMs < first.TimestampMs || (second.TimestampMs == first.TimestampMs && peakIdx < startIdx) {
		first, second = second, first
	}

	return []Phase{
		newPhase(PhaseStart, first),
		newPhase(PhasePeak, second),
	}, nil
}

func newPhase(name string, kf Keyframe) Phase {
	a := make(map[string]float64, len(kf.Angles))
	for k, v := range kf.Angles {
		a[k] = v
	}
	return Phase{Name: name, Angles: a, TimestampMs: kf.TimestampMs}
}

// BuildTemplate assembles a validated template from keyframes.
func BuildTemplate(keyframes []Keyframe, significantChange, tolerance float64) (*Template, error) {
	if len(keyframes) < 2 {
		return nil, fmt.Errorf("%w: %d usable keyframes", ErrExtractionFailed, len(keyframes))
	}

	phases, err := IdentifyPhases(keyframes, significantChange)
	if err != nil {
		return nil, err
	}

	t := &Template{
		Phases:           phases,
		RepSequence:      []string{PhaseStart, PhasePeak, PhaseStart},
		ToleranceDegrees: tolerance,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
