package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/vyayama/internal/app"
)

// SessionHandler reports and controls the live session.
type SessionHandler struct {
	app *app.App
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(a *app.App) *SessionHandler {
	return &SessionHandler{app: a}
}

// Register adds the session routes to router.
func (h *SessionHandler) Register(router *httprouter.Router) {
	router.GET("/api/sessions/status", h.status)
	router.POST("/api/sessions/stop", h.stop)
	router.GET("/api/plugins", h.plugins)
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Events      []string `json:"events"`
}

func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.app.Status())
}

// stop ends the live session and returns its summary once recorded.
func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sum, err := h.app.StopSession()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *SessionHandler) plugins(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list := h.app.PluginManager().List()
	resp := make([]pluginResponse, 0, len(list))
	for _, p := range list {
		events := make([]string, 0, len(p.Manifest.Events))
		for _, ev := range p.Manifest.Events {
			events = append(events, string(ev))
		}
		resp = append(resp, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Events:      events,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": resp})
}
