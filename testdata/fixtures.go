// Package testdata provides recorded frames, exercise configurations and scripted pose
// sequences for end-to-end tests.
package testdata

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/ayusman/vyayama/internal/detector"
)

//go:embed frames/* exercises/*
var fixturesFS embed.FS

// LoadFrame loads a test frame by name
func LoadFrame(name string) (*gocv.Mat, error) {
	data, err := fixturesFS.ReadFile("frames/" + name)
	if err != nil {
		return nil, fmt.Errorf("load frame %s: %w", name, err)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", name, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decode frame %s: empty image", name)
	}

	return &mat, nil
}

// WriteExerciseConfig copies an embedded exercise configuration into dir and returns its path.
func WriteExerciseConfig(dir, name string) (string, error) {
	data, err := fixturesFS.ReadFile("exercises/" + name)
	if err != nil {
		return "", fmt.Errorf("load exercise config %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Hold repeats one pose for n frames.
func Hold(kps []detector.Keypoint, n int) []detector.MockResult {
	seq := make([]detector.MockResult, n)
	for i := range seq {
		seq[i] = detector.MockResult{Keypoints: kps}
	}
	return seq
}

// Join concatenates pose sequences.
func Join(parts ...[]detector.MockResult) []detector.MockResult {
	var seq []detector.MockResult
	for _, p := range parts {
		seq = append(seq, p...)
	}
	return seq
}

// CurlDemonstration is what a detector sees over the seven samples of a three second bicep
// curl video: standing, curled at the top, standing again.
func CurlDemonstration() []detector.MockResult {
	return Join(
		Hold(detector.StandingKeypoints(), 3),
		Hold(detector.CurlKeypoints(), 2),
		Hold(detector.StandingKeypoints(), 2),
	)
}

// SquatReps is n squats performed as hold frames at the bottom followed by break frames standing.
func SquatReps(n, hold, brk int) []detector.MockResult {
	var seq []detector.MockResult
	for i := 0; i < n; i++ {
		seq = append(seq, Hold(detector.SquatKeypoints(), hold)...)
		seq = append(seq, Hold(detector.StandingKeypoints(), brk)...)
	}
	return seq
}
