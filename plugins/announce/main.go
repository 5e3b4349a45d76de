// Package main provides a plugin that speaks workout progress aloud.
// It uses `say` on macOS and `spd-say` elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
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

// Config controls what is spoken.
type Config struct {
	Voice string `json:"voice"`
	Every int    `json:"every"` // announce every n-th rep
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := Config{Every: 1}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}
	if cfg.Every < 1 {
		cfg.Every = 1
	}

	text, ok := phrase(req, cfg)
	if !ok {
		writeSuccessResponse(nil)
		return
	}

	if err := speak(text, cfg.Voice); err != nil {
		writeErrorResponse(fmt.Sprintf("speak failed: %v", err))
		return
	}

	data, _ := json.Marshal(map[string]string{"spoken": text})
	writeSuccessResponse(data)
}

// phrase returns the text for an event, or false when nothing should be said.
func phrase(req Request, cfg Config) (string, bool) {
	switch req.Event {
	case "rep":
		if req.Reps%cfg.Every != 0 {
			return "", false
		}
		return fmt.Sprintf("%d", req.Reps), true
	case "session_completed":
		if req.Reps == 1 {
			return "Done. One rep.", true
		}
		return fmt.Sprintf("Done. %d reps.", req.Reps), true
	}
	return "", false
}

func speak(text, voice string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		args := []string{text}
		if voice != "" {
			args = append([]string{"-v", voice}, args...)
		}
		cmd = exec.Command("say", args...)
	} else {
		args := []string{"--wait", text}
		if voice != "" {
			args = append([]string{"-t", voice}, args...)
		}
		cmd = exec.Command("spd-say", args...)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
