package capture

import (
	"sync"
	"time"
)

// MockSampler is a deterministic Sampler over a synthetic video of fixed length.
type MockSampler struct {
	mu       sync.Mutex
	duration time.Duration
	width    int
	height   int
	seeks    []time.Duration
	failing  map[time.Duration]error
	closed   bool
}

// NewMockSampler returns a sampler over a video of the given duration.
func NewMockSampler(duration time.Duration) *MockSampler {
	return &MockSampler{
		duration: duration,
		width:    DefaultWidth,
		height:   DefaultHeight,
		failing:  make(map[time.Duration]error),
	}
}

// FailAt makes a seek to ts fail with err.
func (s *MockSampler) FailAt(ts time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[ts] = err
}

func (s *MockSampler) Duration() time.Duration {
	return s.duration
}

func (s *MockSampler) Seek(ts time.Duration) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrCameraNotOpen
	}
	s.seeks = append(s.seeks, ts)
	if err, ok := s.failing[ts]; ok {
		return nil, err
	}
	if ts < 0 || ts > s.duration {
		return nil, ErrFrameUnavailable
	}

	return &Frame{
		Width:     s.width,
		Height:    s.height,
		Timestamp: time.Time{}.Add(ts),
	}, nil
}

func (s *MockSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Seeks returns every timestamp requested so far.
func (s *MockSampler) Seeks() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.seeks...)
}

// Closed reports whether Close was called.
func (s *MockSampler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
