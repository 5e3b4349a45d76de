package capture

import (
	"sync"
	"time"
)

// MockCamera produces synthetic frames for testing. Frames carry dimensions but no
// pixel data, which is enough for the mock detector.
type MockCamera struct {
	mu       sync.Mutex
	frames   int
	index    int
	loop     bool
	running  bool
	fps      int
	openErr  error
	readErrs map[int]error
	reads    int
}

// NewMockCamera returns a camera that yields the given number of synthetic frames, then fails with
// ErrFrameUnavailable unless loop is set. frames <= 0 means unlimited.
func NewMockCamera(frames int, loop bool) *MockCamera {
	return &MockCamera{
		frames:   frames,
		loop:     loop,
		fps:      DefaultFPS,
		readErrs: make(map[int]error),
	}
}

// SetOpenError makes Open fail with err.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// FailRead makes the n-th read (zero based) fail with err.
func (c *MockCamera) FailRead(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErrs[n] = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	n := c.reads
	c.reads++
	if err, ok := c.readErrs[n]; ok {
		return nil, err
	}

	if c.frames > 0 && c.index >= c.frames {
		if !c.loop {
			return nil, ErrFrameUnavailable
		}
		c.index = 0
	}
	c.index++

	return &Frame{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Timestamp: time.Now(),
	}, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns the number of ReadFrame calls made while open.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.reads = 0
}
