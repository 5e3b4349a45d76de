package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"

	"github.com/ayusman/vyayama/internal/app"
	"github.com/ayusman/vyayama/internal/server/api"
	"github.com/ayusman/vyayama/internal/session"
)

// updateBuffer is how many frame updates may queue for a slow client before they are dropped.
const updateBuffer = 64

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// endMessage is the last message of a live session.
type endMessage struct {
	Done    bool             `json:"done"`
	Summary *session.Summary `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// LiveHandler runs a live session for the duration of a websocket connection.
//
// Query parameters: exercise (required), mode (auto, template, config, coach) and target.
// Every judged frame is sent as one JSON update. When the session ends an endMessage follows
// and the connection closes. Closing the connection, or sending "stop", ends the session.
type LiveHandler struct {
	app *app.App
	log logs.Log
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(a *app.App, log logs.Log) *LiveHandler {
	return &LiveHandler{app: a, log: log}
}

// ServeHTTP validates the request, starts the session and upgrades the connection.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exerciseID := q.Get("exercise")
	if exerciseID == "" {
		writeError(w, http.StatusBadRequest, "exercise is required")
		return
	}
	mode, err := app.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, api.StatusFor(err), err.Error())
		return
	}
	target := 0
	if s := q.Get("target"); s != "" {
		target, err = strconv.Atoi(s)
		if err != nil || target < 0 {
			writeError(w, http.StatusBadRequest, "target must be a non-negative integer")
			return
		}
	}

	updates := make(chan session.Update, updateBuffer)
	live, err := h.app.StartSession(app.SessionOptions{
		ExerciseID: exerciseID,
		Mode:       mode,
		TargetReps: target,
		OnUpdate: func(u session.Update) {
			select {
			case updates <- u:
			default:
				h.log.Debugf("Live client too slow, dropping frame update")
			}
		},
	})
	if err != nil {
		writeError(w, api.StatusFor(err), err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("Live websocket upgrade failed: %v", err)
		live.Stop()
		live.Wait()
		return
	}
	defer conn.Close()

	h.log.Infof("Live session %s started for %s (%s)", live.ID(), live.Exercise().Name, live.Mode())

	// The reader owns stopping on disconnect; the writer below owns every write.
	go func() {
		defer live.Stop()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "stop" {
				return
			}
		}
	}()

	for {
		select {
		case u := <-updates:
			if !h.send(conn, u) {
				live.Stop()
				live.Wait()
				return
			}
		case <-live.Done():
			// OnUpdate runs on the session goroutine, so every update is queued by now.
			for drained := false; !drained; {
				select {
				case u := <-updates:
					h.send(conn, u)
				default:
					drained = true
				}
			}
			sum, err := live.Wait()
			end := endMessage{Done: true, Summary: sum}
			if err != nil {
				end.Error = err.Error()
			}
			h.send(conn, end)
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			h.log.Infof("Live session %s ended with %d reps", live.ID(), live.Reps())
			return
		}
	}
}

func (h *LiveHandler) send(conn *websocket.Conn, msg any) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debugf("Live websocket write failed: %v", err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
