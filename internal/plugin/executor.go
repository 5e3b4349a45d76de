package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a plugin does not answer in time.
var ErrTimeout = errors.New("plugin execution timeout")

// Executor handles the execution of plugins with timeout support.
type Executor struct {
	timeoutMs int
}

// NewExecutor creates a new Executor with the specified timeout in milliseconds.
func NewExecutor(timeoutMs int) *Executor {
	return &Executor{
		timeoutMs: timeoutMs,
	}
}

// Timeout returns the per-execution limit.
func (e *Executor) Timeout() time.Duration {
	return time.Duration(e.timeoutMs) * time.Millisecond
}

// Execute runs a plugin with the given request and returns the response.
// The request is sent as JSON on stdin and stdout is parsed as a Response. The run is bounded by
// the executor timeout and by ctx.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout())
	defer cancel()

	if req.Config == nil {
		req.Config = plugin.Manifest.Config
	}
	if req.Config == nil {
		req.Config = json.RawMessage("{}")
	}
	if req.Params == nil {
		req.Params = json.RawMessage("{}")
	}

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	// Children that inherit stdout must not hold Run open past the deadline.
	cmd.WaitDelay = 500 * time.Millisecond

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %dms", ErrTimeout, e.timeoutMs)
	}

	if err != nil {
		stderrStr := stderr.String()
		if stderrStr != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}
