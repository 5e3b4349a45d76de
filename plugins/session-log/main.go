// Package main provides a plugin that appends finished sessions to a JSON lines file.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event     string          `json:"event"`
	Exercise  string          `json:"exercise"`
	SessionID string          `json:"session_id"`
	Reps      int             `json:"reps"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type entry struct {
	Time      time.Time       `json:"time"`
	Exercise  string          `json:"exercise"`
	SessionID string          `json:"session_id"`
	Reps      int             `json:"reps"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "session_completed" {
		writeErrorResponse(fmt.Sprintf("unsupported event: %s", req.Event))
		return
	}

	var cfg struct {
		Path string `json:"path"`
	}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}
	path, err := logPath(cfg.Path)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := appendEntry(path, entry{
		Time:      time.Now().UTC(),
		Exercise:  req.Exercise,
		SessionID: req.SessionID,
		Reps:      req.Reps,
		Params:    req.Params,
	}); err != nil {
		writeErrorResponse(fmt.Sprintf("write %s: %v", path, err))
		return
	}

	data, _ := json.Marshal(map[string]string{"path": path})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

func logPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no log path configured: %w", err)
	}
	return filepath.Join(home, ".vyayama", "sessions.jsonl"), nil
}

func appendEntry(path string, e entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(e)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
