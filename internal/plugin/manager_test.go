package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates dir/name/plugin.json.
func writeManifest(t *testing.T, dir string, m Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, m.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manifestBytes, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}

	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifestBytes, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "test-plugin",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "test-plugin",
		Events:      []Event{EventRep, EventSessionCompleted},
		Config:      json.RawMessage(`{"volume":3}`),
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "test-plugin" {
		t.Errorf("expected plugin name 'test-plugin', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Description != "A test plugin" {
		t.Errorf("expected description 'A test plugin', got %q", plugin.Manifest.Description)
	}
	if len(plugin.Manifest.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(plugin.Manifest.Events))
	}
	if string(plugin.Manifest.Config) != `{"volume":3}` {
		t.Errorf("unexpected config %s", plugin.Manifest.Config)
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "test-plugin") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
}

func TestManager_Subscribers(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "zeta", Executable: "z", Events: []Event{EventRep}})
	writeManifest(t, tmpDir, Manifest{Name: "alpha", Executable: "a", Events: []Event{EventRep, EventSessionCompleted}})
	writeManifest(t, tmpDir, Manifest{Name: "summary", Executable: "s", Events: []Event{EventSessionCompleted}})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	names := func(ps []*Plugin) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Manifest.Name)
		}
		return out
	}

	tests := []struct {
		event Event
		want  []string
	}{
		{EventRep, []string{"alpha", "zeta"}},
		{EventSessionCompleted, []string{"alpha", "summary"}},
		{Event("unknown"), nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			got := names(manager.Subscribers(tt.event))
			if len(got) != len(tt.want) {
				t.Fatalf("Subscribers(%s) = %v, want %v", tt.event, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Subscribers(%s) = %v, want %v", tt.event, got, tt.want)
				}
			}
		})
	}

	if got := names(manager.List()); len(got) != 3 || got[0] != "alpha" || got[2] != "zeta" {
		t.Errorf("List() should be sorted by name, got %v", got)
	}
}

func TestManager_Discover_EmptyDir(t *testing.T) {
	manager := NewManager(t.TempDir())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on empty dir: %v", err)
	}

	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "my-plugin", Version: "2.0.0", Executable: "my-plugin-bin"})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); err != ErrPluginNotFound {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}

func TestManager_Discover_InvalidManifests(t *testing.T) {
	tmpDir := t.TempDir()

	badDir := filepath.Join(tmpDir, "bad-plugin")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "plugin.json"), []byte("not valid json"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	unnamedDir := filepath.Join(tmpDir, "unnamed")
	if err := os.MkdirAll(unnamedDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(unnamedDir, "plugin.json"), []byte(`{"executable":"x"}`), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}

	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected invalid plugins to be skipped, got %d", len(plugins))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}

	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}
