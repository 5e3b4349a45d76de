package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/vyayama/internal/app"
	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/config"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/matcher"
	"github.com/ayusman/vyayama/internal/store"
)

// newTestRouter creates an app over a temporary database and routes the API to it.
func newTestRouter(t *testing.T) (*httprouter.Router, *app.App) {
	t.Helper()

	dir := t.TempDir()
	settings := config.Default()
	settings.Storage.DataDir = dir
	settings.Plugins.Dir = filepath.Join(dir, "plugins")

	s, err := store.New(settings.DBPath())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	a := app.New(app.Config{
		Settings:  settings,
		Store:     s,
		Log:       logs.NewTestingLog(t),
		Camera:    capture.NewMockCamera(0, false),
		Detectors: func() (detector.Detector, error) { return detector.NewMockDetector(), nil },
	})
	t.Cleanup(func() {
		a.Close()
		s.Close()
	})

	router := httprouter.New()
	NewExerciseHandler(a).Register(router)
	NewSessionHandler(a).Register(router)
	return router, a
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestExerciseHandler_Create(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/exercises", `{"name":"  Squat ","description":"Bodyweight squat","target_reps":15}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp exerciseResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected generated ID")
	}
	if resp.Name != "Squat" {
		t.Errorf("expected trimmed name Squat, got %q", resp.Name)
	}
	if resp.TargetReps != 15 {
		t.Errorf("expected target_reps 15, got %d", resp.TargetReps)
	}
	if resp.Status != "" {
		t.Errorf("expected no template status, got %q", resp.Status)
	}
}

func TestExerciseHandler_CreateInvalid(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{"name":`},
		{"missing name", `{"description":"x"}`},
		{"blank name", `{"name":"   "}`},
		{"negative target", `{"name":"Squat","target_reps":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/exercises", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestExerciseHandler_ListAndGet(t *testing.T) {
	router, a := newTestRouter(t)

	for i, name := range []string{"Squat", "Bicep Curl"} {
		ex := &store.Exercise{ID: fmt.Sprintf("ex-%d", i), Name: name}
		if err := a.Store().Exercises().Create(ex); err != nil {
			t.Fatalf("failed to create exercise: %v", err)
		}
	}

	rec := do(router, http.MethodGet, "/api/exercises", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var list listExercisesResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Exercises) != 2 {
		t.Errorf("expected 2 exercises, got %d", len(list.Exercises))
	}

	rec = do(router, http.MethodGet, "/api/exercises/ex-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got exerciseResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Name != "Bicep Curl" {
		t.Errorf("expected Bicep Curl, got %q", got.Name)
	}
}

func TestExerciseHandler_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/exercises/missing", ""},
		{http.MethodPut, "/api/exercises/missing", `{"name":"x"}`},
		{http.MethodDelete, "/api/exercises/missing", ""},
		{http.MethodPost, "/api/exercises/missing/extract", ""},
		{http.MethodGet, "/api/exercises/missing/template", ""},
		{http.MethodGet, "/api/exercises/missing/keyframes", ""},
		{http.MethodGet, "/api/exercises/missing/sessions", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusNotFound {
				t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
			}
		})
	}
}

func TestExerciseHandler_Extract(t *testing.T) {
	router, a := newTestRouter(t)

	if err := a.Store().Exercises().Create(&store.Exercise{ID: "plank", Name: "Plank"}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}
	if err := a.Store().Exercises().Create(&store.Exercise{ID: "curl", Name: "Curl", VideoPath: "curl.mp4"}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	rec := do(router, http.MethodPost, "/api/exercises/plank/extract", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no video: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	// An extraction already in flight is reported, not restarted.
	if _, err := a.Store().Templates().BeginExtraction("curl"); err != nil {
		t.Fatalf("BeginExtraction: %v", err)
	}
	rec = do(router, http.MethodPost, "/api/exercises/curl/extract", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp extractResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Started {
		t.Error("expected started=false while processing")
	}

	rec = do(router, http.MethodGet, "/api/exercises/curl/template", "")
	var doc struct {
		Status string   `json:"status"`
		Phases []string `json:"phases"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if doc.Status != "processing" {
		t.Errorf("expected processing, got %q", doc.Status)
	}
	if doc.Phases == nil || len(doc.Phases) != 0 {
		t.Errorf("expected empty phases, got %v", doc.Phases)
	}
}

func TestExerciseHandler_EmptyCollections(t *testing.T) {
	router, a := newTestRouter(t)
	if err := a.Store().Exercises().Create(&store.Exercise{ID: "squat", Name: "Squat"}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	for _, path := range []string{"/api/exercises/squat/keyframes", "/api/exercises/squat/sessions"} {
		rec := do(router, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusOK, rec.Code)
		}
		if bytes.Contains(rec.Body.Bytes(), []byte("null")) {
			t.Errorf("%s: expected empty arrays, got %s", path, rec.Body.String())
		}
	}
}

func TestSessionHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodGet, "/api/sessions/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var status app.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Active {
		t.Error("expected no active session")
	}

	rec = do(router, http.MethodPost, "/api/sessions/stop", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = do(router, http.MethodGet, "/api/plugins", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"plugins":[]`)) {
		t.Errorf("expected empty plugin list, got %s", rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", store.ErrNotFound), http.StatusNotFound},
		{app.ErrSessionActive, http.StatusConflict},
		{app.ErrNoSession, http.StatusNotFound},
		{app.ErrNoVideo, http.StatusBadRequest},
		{app.ErrUnknownMode, http.StatusBadRequest},
		{app.ErrTemplateNotReady, http.StatusConflict},
		{matcher.ErrNoReference, http.StatusConflict},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
