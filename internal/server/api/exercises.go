package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/vyayama/internal/app"
	"github.com/ayusman/vyayama/internal/store"
	"github.com/ayusman/vyayama/internal/template"
)

// ExerciseHandler serves exercise resources and their templates.
type ExerciseHandler struct {
	app *app.App
}

// NewExerciseHandler creates a new ExerciseHandler over the app's store.
func NewExerciseHandler(a *app.App) *ExerciseHandler {
	return &ExerciseHandler{app: a}
}

// Register adds the exercise routes to router.
func (h *ExerciseHandler) Register(router *httprouter.Router) {
	router.GET("/api/exercises", h.list)
	router.POST("/api/exercises", h.create)
	router.GET("/api/exercises/:id", h.get)
	router.PUT("/api/exercises/:id", h.update)
	router.DELETE("/api/exercises/:id", h.delete)
	router.POST("/api/exercises/:id/extract", h.extract)
	router.GET("/api/exercises/:id/template", h.getTemplate)
	router.GET("/api/exercises/:id/keyframes", h.keyframes)
	router.GET("/api/exercises/:id/sessions", h.sessions)
}

type exerciseRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	VideoPath   *string `json:"video_path"`
	ConfigPath  *string `json:"config_path"`
	TargetReps  *int    `json:"target_reps"`
}

type exerciseResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	VideoPath   string `json:"video_path"`
	ConfigPath  string `json:"config_path,omitempty"`
	TargetReps  int    `json:"target_reps"`
	Status      string `json:"template_status"`
	TotalReps   int    `json:"total_reps"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type listExercisesResponse struct {
	Exercises []exerciseResponse `json:"exercises"`
}

type extractResponse struct {
	Started bool   `json:"started"`
	Status  string `json:"status"`
}

type sessionsResponse struct {
	Sessions  []*store.SessionRecord `json:"sessions"`
	TotalReps int                    `json:"total_reps"`
}

func (h *ExerciseHandler) toResponse(e *store.Exercise) exerciseResponse {
	resp := exerciseResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		VideoPath:   e.VideoPath,
		ConfigPath:  e.ConfigPath,
		TargetReps:  e.TargetReps,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
	if status, _, err := h.app.Store().Templates().Status(e.ID); err == nil {
		resp.Status = string(status)
	}
	if total, err := h.app.Store().Sessions().TotalReps(e.ID); err == nil {
		resp.TotalReps = total
	}
	return resp
}

// apply copies the fields present in req onto e.
func (req *exerciseRequest) apply(e *store.Exercise) {
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.VideoPath != nil {
		e.VideoPath = *req.VideoPath
	}
	if req.ConfigPath != nil {
		e.ConfigPath = *req.ConfigPath
	}
	if req.TargetReps != nil {
		e.TargetReps = *req.TargetReps
	}
}

func validate(e *store.Exercise) string {
	switch {
	case e.Name == "":
		return "Name is required"
	case e.TargetReps < 0:
		return "target_reps must not be negative"
	}
	return ""
}

// list handles GET /api/exercises.
func (h *ExerciseHandler) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	exercises, err := h.app.Store().Exercises().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exercises")
		return
	}

	response := listExercisesResponse{
		Exercises: make([]exerciseResponse, 0, len(exercises)),
	}
	for _, e := range exercises {
		response.Exercises = append(response.Exercises, h.toResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/exercises/:id.
func (h *ExerciseHandler) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	e, err := h.app.Store().Exercises().GetByID(ps.ByName("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(e))
}

// create handles POST /api/exercises.
func (h *ExerciseHandler) create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req exerciseRequest
	if !readJSON(w, r, &req) {
		return
	}

	e := &store.Exercise{ID: uuid.New().String()}
	req.apply(e)
	if msg := validate(e); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.app.Store().Exercises().Create(e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create exercise")
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(e))
}

// update handles PUT /api/exercises/:id. Absent fields keep their values.
func (h *ExerciseHandler) update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	e, err := h.app.Store().Exercises().GetByID(ps.ByName("id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	var req exerciseRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.apply(e)
	if msg := validate(e); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.app.Store().Exercises().Update(e); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(e))
}

// delete handles DELETE /api/exercises/:id. The template and session history go with it.
func (h *ExerciseHandler) delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if live := h.app.Active(); live != nil && live.ExerciseID() == id {
		writeErr(w, app.ErrSessionActive)
		return
	}
	if err := h.app.Store().Exercises().Delete(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extract handles POST /api/exercises/:id/extract: 202 when a job starts, 200 when one is
// already processing.
func (h *ExerciseHandler) extract(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	started, err := h.app.TriggerExtraction(ps.ByName("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, extractResponse{Started: started, Status: "processing"})
}

// getTemplate handles GET /api/exercises/:id/template.
func (h *ExerciseHandler) getTemplate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doc, err := h.app.TemplateDocument(ps.ByName("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// keyframes handles GET /api/exercises/:id/keyframes.
func (h *ExerciseHandler) keyframes(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := h.app.Store().Exercises().GetByID(id); err != nil {
		writeErr(w, err)
		return
	}
	keyframes, err := h.app.Store().Templates().Keyframes(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if keyframes == nil {
		keyframes = []template.Keyframe{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keyframes": keyframes})
}

// sessions handles GET /api/exercises/:id/sessions, newest first.
func (h *ExerciseHandler) sessions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := h.app.Store().Exercises().GetByID(id); err != nil {
		writeErr(w, err)
		return
	}
	records, err := h.app.Store().Sessions().ListByExercise(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	total, err := h.app.Store().Sessions().TotalReps(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if records == nil {
		records = []*store.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: records, TotalReps: total})
}
