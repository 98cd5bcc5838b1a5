package web

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/closeplan/internal/agent"
	"github.com/JonMunkholm/closeplan/internal/timeline"
)

// maxTimelineBody bounds the appointment payload accepted by /api/timeline.
const maxTimelineBody = 1 << 20

type generateRequest struct {
	Prompt       string `json:"prompt" validate:"required"`
	SystemPrompt string `json:"systemPrompt"`
}

// handleChat relays a message to the chat agent. Backend failures still
// answer 200 with the fallback reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	resp, err := s.chat.Send(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

// handleGenerate runs a single-shot completion, with a system prompt when
// one is given.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	var (
		text string
		err  error
	)
	if req.SystemPrompt == "" {
		text, err = s.generator.GenerateText(r.Context(), req.Prompt)
	} else {
		text, err = s.generator.ChatGeneration(r.Context(), req.Prompt, req.SystemPrompt)
	}
	if err != nil {
		s.respondError(w, r, fmt.Errorf("generate text: %w", err))
		return
	}
	writeJSON(w, map[string]string{"text": text})
}

// handleTimeline groups an appointment payload by day. The optional tz
// query parameter names the display time zone.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: unknown time zone %q", errInvalidRequest, tz))
			return
		}
		loc = l
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTimelineBody))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read timeline payload: %w", err))
		return
	}

	groups := timeline.Group(timeline.Extract(body), loc)
	if groups == nil {
		groups = []timeline.DateGroup{}
	}
	writeJSON(w, map[string]any{"groups": groups})
}
