// Package angles computes joint angles from pose landmarks.
package angles

import (
	"math"
	"sort"

	"github.com/ayusman/vyayama/internal/detector"
)

// Confidence floors below which a landmark is treated as absent.
const (
	// TemplateConfidenceFloor applies to offline template extraction where quality matters
	// more than coverage.
	TemplateConfidenceFloor = 0.5

	// LiveConfidenceFloor applies to live matching where any signal is better than none.
	LiveConfidenceFloor = 0.25
)

// Definition names the three joints forming an angle at Vertex.
type Definition struct {
	Name   string         `json:"name" yaml:"name"`
	A      detector.Joint `json:"a" yaml:"a"`
	Vertex detector.Joint `json:"vertex" yaml:"vertex"`
	B      detector.Joint `json:"b" yaml:"b"`
}

// Set maps angle names to degrees in [0,180]. A name is absent when any of its
// landmarks was missing or below the confidence floor.
type Set map[string]float64

// Names returns the angle names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultDefinitions = []Definition{
	{Name: "left_elbow", A: detector.LeftShoulder, Vertex: detector.LeftElbow, B: detector.LeftWrist},
	{Name: "right_elbow", A: detector.RightShoulder, Vertex: detector.RightElbow, B: detector.RightWrist},
	{Name: "left_shoulder", A: detector.LeftHip, Vertex: detector.LeftShoulder, B: detector.LeftElbow},
	{Name: "right_shoulder", A: detector.RightHip, Vertex: detector.RightShoulder, B: detector.RightElbow},
	{Name: "left_hip", A: detector.LeftShoulder, Vertex: detector.LeftHip, B: detector.LeftKnee},
	{Name: "right_hip", A: detector.RightShoulder, Vertex: detector.RightHip, B: detector.RightKnee},
	{Name: "left_knee", A: detector.LeftHip, Vertex: detector.LeftKnee, B: detector.LeftAnkle},
	{Name: "right_knee", A: detector.RightHip, Vertex: detector.RightKnee, B: detector.RightAnkle},
}

// DefaultDefinitions returns the elbow, shoulder, hip and knee angles for both sides.
func DefaultDefinitions() []Definition {
	out := make([]Definition, len(defaultDefinitions))
	copy(out, defaultDefinitions)
	return out
}

// Angle returns the angle at vertex between the rays to a and b, in degrees folded into
// [0,180]. ok is false if any landmark is nil.
func Angle(a, vertex, b *detector.Landmark) (deg float64, ok bool) {
	if a == nil || vertex == nil || b == nil {
		return 0, false
	}

	rad := math.Atan2(b.Y-vertex.Y, b.X-vertex.X) - math.Atan2(a.Y-vertex.Y, a.X-vertex.X)
	deg = math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg, true
}

// Extract computes every definition whose three landmarks reach floor.
func Extract(pose *detector.Pose, defs []Definition, floor float64) Set {
	set := make(Set, len(defs))
	if pose == nil {
		return set
	}

	for _, def := range defs {
		a, okA := pose.Landmark(def.A, floor)
		v, okV := pose.Landmark(def.Vertex, floor)
		b, okB := pose.Landmark(def.B, floor)
		if !okA || !okV || !okB {
			continue
		}
		if deg, ok := Angle(a, v, b); ok {
			set[def.Name] = deg
		}
	}
	return set
}

