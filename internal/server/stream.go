package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/vyayama/internal/app"
)

// streamInterval paces the MJPEG stream at roughly 15 fps.
const streamInterval = 66 * time.Millisecond

// StreamHandler serves the live session's camera frames as MJPEG.
type StreamHandler struct {
	app *app.App
}

// NewStreamHandler creates a new StreamHandler over the app's preview frames.
func NewStreamHandler(a *app.App) *StreamHandler {
	return &StreamHandler{app: a}
}

// ServeHTTP streams MJPEG frames until the client disconnects. Without a live session no
// frames are sent, and the stream resumes when one starts.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpg := h.app.Preview()
		if len(jpg) == 0 || sameFrame(jpg, last) {
			continue
		}
		last = jpg

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpg))
		if _, err := w.Write(jpg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// sameFrame reports whether a and b are the same preview buffer. Previews are replaced, never
// mutated, so identity is enough.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}
