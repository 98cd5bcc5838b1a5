package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/closeplan/internal/channel"
	"github.com/JonMunkholm/closeplan/internal/logging"
)

// streamBuffer is the per-subscriber queue; a client that falls further
// behind loses messages rather than stalling publishers.
const streamBuffer = 32

// keepAliveInterval spaces the comment lines that keep proxies from closing
// idle streams.
var keepAliveInterval = 25 * time.Second

// sseWriter writes Server-Sent Events through any wrapping ResponseWriter.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &sseWriter{w: w, rc: rc}, nil
}

func (s *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) keepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// handleSessionEvents streams lifecycle events and notices for one session.
// The first event is the current snapshot.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before the snapshot so no transition falls between them.
	events := s.hub.Events.Subscribe(ctx, streamBuffer)
	notices := s.hub.Notices.Subscribe(ctx, streamBuffer)

	snap, err := s.imports.Snapshot(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		logging.FromContext(ctx).Warn("session stream", "session_id", id, "error", err)
		return
	}
	if err := sse.event("snapshot", snap); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.SessionID != id {
				continue
			}
			if err := sse.event("session", ev); err != nil {
				return
			}
		case n, ok := <-notices:
			if !ok {
				return
			}
			if n.SessionID != id {
				continue
			}
			if err := sse.event("notice", n.Notice); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.keepAlive(); err != nil {
				return
			}
		}
	}
}

// handlePublishText broadcasts a text message to every text subscriber.
func (s *Server) handlePublishText(w http.ResponseWriter, r *http.Request) {
	var msg channel.TextMessage
	if err := s.decodeJSON(r, &msg); err != nil {
		s.respondError(w, r, err)
		return
	}

	delivered := s.hub.Text.Publish(msg)
	writeJSON(w, map[string]int{"delivered": delivered})
}

// handleTextEvents streams published text messages.
func (s *Server) handleTextEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messages := s.hub.Text.Subscribe(ctx, streamBuffer)

	sse, err := newSSEWriter(w)
	if err != nil {
		logging.FromContext(ctx).Warn("text stream", "error", err)
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := sse.event("text", msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.keepAlive(); err != nil {
				return
			}
		}
	}
}
