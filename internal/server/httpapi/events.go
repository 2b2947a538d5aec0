package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// streamEvents serves server-sent events. While the stream is open the
// user's realtime session stays open; every change produces an "update"
// event carrying the fresh collection and its notification.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, s.logger, fmt.Errorf("streaming unsupported"))
		return
	}
	ctx := r.Context()
	userID := user(r)

	updates, cancel := s.events.Subscribe(userID)
	defer cancel()

	handle, err := s.sessions.Open(ctx, userID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	defer handle.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				s.logger.Error(ctx, "cannot encode update", "user_id", userID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: update\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
