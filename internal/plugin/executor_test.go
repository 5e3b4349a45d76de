package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string, events ...Event) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	scriptPath := filepath.Join(tmpDir, name+".sh")
	if err := os.WriteFile(scriptPath, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Events:     events,
		},
		Path:       tmpDir,
		Executable: scriptPath,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "test-plugin", `echo '{"success":true,"data":{"message":"hello world"}}'
`, EventRep)

	request := &Request{
		Event:     EventRep,
		Exercise:  "squat",
		SessionID: "s-1",
		Reps:      3,
	}

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.Error != "" {
		t.Errorf("expected empty error, got %q", response.Error)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`, EventRep)
	plugin.Manifest.Config = json.RawMessage(`{"sound":"chime"}`)

	request := &Request{
		Event:     EventSessionCompleted,
		Exercise:  "bicep curl",
		SessionID: "s-42",
		Reps:      12,
		Params:    json.RawMessage(`{"target":12}`),
	}

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data map[string]map[string]interface{}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}

	received := data["received"]
	if received["event"] != "session_completed" {
		t.Errorf("expected event 'session_completed', got %v", received["event"])
	}
	if received["exercise"] != "bicep curl" {
		t.Errorf("expected exercise 'bicep curl', got %v", received["exercise"])
	}
	if received["session_id"] != "s-42" {
		t.Errorf("expected session_id 's-42', got %v", received["session_id"])
	}
	if received["reps"] != float64(12) {
		t.Errorf("expected reps 12, got %v", received["reps"])
	}

	// Manifest config is sent when the request has none.
	cfg, ok := received["config"].(map[string]interface{})
	if !ok || cfg["sound"] != "chime" {
		t.Errorf("expected manifest config, got %v", received["config"])
	}
}

func TestExecutor_Execute_DefaultsEmptyObjects(t *testing.T) {
	plugin := scriptPlugin(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Event: EventRep})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var received map[string]interface{}
	if err := json.Unmarshal(response.Data, &received); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	for _, key := range []string{"config", "params"} {
		if _, ok := received[key].(map[string]interface{}); !ok {
			t.Errorf("expected %s to be an empty object, got %v", key, received[key])
		}
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "slow-plugin", `exec sleep 10
`)

	start := time.Now()
	_, err := NewExecutor(100).Execute(context.Background(), plugin, &Request{Event: EventRep})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took too long: %v", time.Since(start))
	}
}

func TestExecutor_Execute_Canceled(t *testing.T) {
	plugin := scriptPlugin(t, "slow-plugin", `exec sleep 10
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewExecutor(5000).Execute(ctx, plugin, &Request{Event: EventRep}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	plugin := scriptPlugin(t, "error-plugin", `echo '{"success":false,"error":"something went wrong"}'
`)

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Event: EventRep})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if response.Success {
		t.Errorf("expected success=false, got true")
	}
	if response.Error != "something went wrong" {
		t.Errorf("expected error 'something went wrong', got %q", response.Error)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	plugin := scriptPlugin(t, "bad-plugin", `echo 'not valid json'
`)

	if _, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Event: EventRep}); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	plugin := scriptPlugin(t, "exit-plugin", `echo "Error: something failed" >&2
exit 1
`)

	if _, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Event: EventRep}); err == nil {
		t.Fatal("expected error for non-zero exit, got nil")
	}
}

func TestNewExecutor(t *testing.T) {
	executor := NewExecutor(3000)
	if executor == nil {
		t.Fatal("NewExecutor() returned nil")
	}
	if executor.Timeout() != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", executor.Timeout())
	}
}
