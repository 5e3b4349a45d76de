// Package plugin runs external executables that react to workout events such as a counted
// rep or a finished session.
package plugin

import "encoding/json"

// Event names a workout event plugins can subscribe to.
type Event string

const (
	EventRep              Event = "rep"
	EventSessionCompleted Event = "session_completed"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []Event         `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the plugin subscribed to ev.
func (m *Manifest) Handles(ev Event) bool {
	for _, e := range m.Events {
		if e == ev {
			return true
		}
	}
	return false
}

// Request is written to a plugin's stdin as a single JSON document.
type Request struct {
	Event     Event           `json:"event"`
	Exercise  string          `json:"exercise"`
	SessionID string          `json:"session_id"`
	Reps      int             `json:"reps"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
