package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrUnknownDuration is returned when a video file does not report its frame count or rate.
var ErrUnknownDuration = errors.New("video duration unknown")

// seekRetries bounds how many reads are attempted after a seek before giving up.
// Some codecs return empty frames until the decoder reaches the next keyframe.
const seekRetries = 5

// Sampler provides random access to the frames of a recorded video.
type Sampler interface {
	// Duration returns the playable length of the video.
	Duration() time.Duration
	// Seek positions the video at ts and returns the first decodable frame.
	Seek(ts time.Duration) (*Frame, error)
	Close() error
}

// VideoSampler samples a video file through OpenCV.
type VideoSampler struct {
	mu       sync.Mutex
	path     string
	capture  *gocv.VideoCapture
	duration time.Duration
}

// OpenVideo opens the video at path for sampling.
func OpenVideo(path string) (*VideoSampler, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}

	fps := vc.Get(gocv.VideoCaptureFPS)
	frames := vc.Get(gocv.VideoCaptureFrameCount)
	if fps <= 0 || frames <= 0 {
		vc.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownDuration)
	}

	return &VideoSampler{
		path:     path,
		capture:  vc,
		duration: time.Duration(frames / fps * float64(time.Second)),
	}, nil
}

// Duration returns the video length derived from frame count and rate.
func (s *VideoSampler) Duration() time.Duration {
	return s.duration
}

// Seek reads the frame at ts. The returned frame's Timestamp is the zero time plus ts.
func (s *VideoSampler) Seek(ts time.Duration) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil, ErrCameraNotOpen
	}

	s.capture.Set(gocv.VideoCapturePosMsec, float64(ts.Milliseconds()))

	mat := gocv.NewMat()
	for attempt := 0; attempt < seekRetries; attempt++ {
		if s.capture.Read(&mat) && !mat.Empty() {
			return newFrame(&mat, time.Time{}.Add(ts)), nil
		}
	}
	mat.Close()

	return nil, fmt.Errorf("seek %s to %v: %w", s.path, ts, ErrFrameUnavailable)
}

// Close releases the video file.
func (s *VideoSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}
