// Package matcher judges live poses against exercise templates, static exercise
// configurations, or a reference recording.
package matcher

import (
	"math"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/template"
)

// Result is a template match verdict for one frame. Phase is empty when nothing matched.
type Result struct {
	Phase      string
	Similarity float64
	IsMatch    bool
}

// TemplateMatcher matches live angles against the phases of a template.
type TemplateMatcher struct {
	Template         *template.Template
	PartialThreshold float64
}

// NewTemplateMatcher creates a TemplateMatcher using PartialMatchThreshold.
func NewTemplateMatcher(t *template.Template) *TemplateMatcher {
	return &TemplateMatcher{
		Template:         t,
		PartialThreshold: PartialMatchThreshold,
	}
}

// MatchPoseToPhase matches live angles against t with the default partial threshold.
func MatchPoseToPhase(live angles.Set, t *template.Template) Result {
	return NewTemplateMatcher(t).Match(live)
}

// PhaseScore is the per-phase outcome of a match.
type PhaseScore struct {
	Phase      string
	Matched    int
	Total      int
	Similarity float64
	// Worst is the target angle furthest from the live value, missing angles first.
	Worst string
}

// Full reports whether every target angle of the phase matched.
func (s PhaseScore) Full() bool {
	return s.Total > 0 && s.Matched == s.Total
}

// Score computes per-phase scores. Phases without target angles are omitted.
// An angle absent from live counts as a miss.
func (m *TemplateMatcher) Score(live angles.Set) []PhaseScore {
	if m.Template == nil {
		return nil
	}
	tol := m.Template.ToleranceDegrees

	scores := make([]PhaseScore, 0, len(m.Template.Phases))
	for _, phase := range m.Template.Phases {
		if len(phase.Angles) == 0 {
			continue
		}

		s := PhaseScore{Phase: phase.Name, Total: len(phase.Angles)}
		worstDiff := -1.0
		for _, name := range angles.Set(phase.Angles).Names() {
			target := phase.Angles[name]
			deg, ok := live[name]
			diff := math.Inf(1)
			if ok {
				diff = math.Abs(deg - target)
			}
			if diff <= tol {
				s.Matched++
				continue
			}
			if diff > worstDiff+1e-9 {
				worstDiff = diff
				s.Worst = name
			}
		}
		s.Similarity = float64(s.Matched) / float64(s.Total)
		scores = append(scores, s)
	}
	return scores
}

// Match picks the best full match, or the best partial match at or above the partial
// threshold. Ties go to the earlier phase.
func (m *TemplateMatcher) Match(live angles.Set) Result {
	r, _ := m.match(live)
	return r
}

func (m *TemplateMatcher) match(live angles.Set) (Result, *PhaseScore) {
	scores := m.Score(live)

	var bestFull, bestPartial *PhaseScore
	for i := range scores {
		s := &scores[i]
		if s.Full() {
			if bestFull == nil || s.Similarity > bestFull.Similarity {
				bestFull = s
			}
			continue
		}
		if bestPartial == nil || s.Similarity > bestPartial.Similarity {
			bestPartial = s
		}
	}

	if bestFull != nil {
		return Result{Phase: bestFull.Phase, Similarity: bestFull.Similarity, IsMatch: true}, bestFull
	}
	if bestPartial == nil {
		return Result{}, nil
	}
	if bestPartial.Similarity >= m.PartialThreshold {
		return Result{Phase: bestPartial.Phase, Similarity: bestPartial.Similarity, IsMatch: true}, bestPartial
	}
	return Result{Similarity: bestPartial.Similarity}, bestPartial
}
