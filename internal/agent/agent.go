// Package agent relays chat messages to a conversational backend.
//
// Backends answer with an envelope "reply##sessionId" so the caller can
// continue the conversation, or with the literal "error".
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Envelope markers.
const (
	Separator  = "##"
	ErrorReply = "error"
)

// FallbackReply is shown whenever the backend fails.
const FallbackReply = "Error: Unable to get response."

var (
	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("empty chat message")

	// ErrUnavailable is returned when no backend is configured.
	ErrUnavailable = errors.New("agent unavailable")
)

// Invoker sends one message to the backend and returns its envelope.
type Invoker interface {
	Invoke(ctx context.Context, message, sessionID string) (string, error)
}

// Generator produces single-shot completions.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	ChatGeneration(ctx context.Context, userPrompt, systemPrompt string) (string, error)
}

// Recorder receives agent request measurements.
type Recorder interface {
	AgentRequest(outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AgentRequest(string, time.Duration) {}

// FormatEnvelope joins a reply and session id.
func FormatEnvelope(reply, sessionID string) string {
	return reply + Separator + sessionID
}

// ParseEnvelope splits an envelope at its last separator. Without a
// separator the whole string is the reply and the session id is empty.
func ParseEnvelope(s string) (reply, sessionID string) {
	i := strings.LastIndex(s, Separator)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(Separator):]
}

// Request is one chat turn from the user.
type Request struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"sessionId"`
}

// Response is the reply shown to the user.
type Response struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

// Service applies the chat rules on top of an Invoker.
type Service struct {
	invoker  Invoker
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a Service. A nil recorder discards measurements and a
// non-positive timeout leaves calls bounded only by the caller's context.
func NewService(inv Invoker, rec Recorder, timeout time.Duration) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{invoker: inv, recorder: rec, timeout: timeout, now: time.Now}
}

// Send relays req. A blank message fails with ErrEmptyMessage and the
// backend is not called. Any backend failure is reported to the user as
// FallbackReply with the session reset.
func (s *Service) Send(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, ErrEmptyMessage
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	env, err := s.invoker.Invoke(ctx, req.Message, req.SessionID)
	elapsed := s.now().Sub(start)

	switch {
	case err != nil:
		slog.Warn("agent invocation failed", "session_id", req.SessionID, "error", err)
		s.recorder.AgentRequest("error", elapsed)
		return Response{Reply: FallbackReply}, nil
	case env == ErrorReply:
		slog.Warn("agent returned error reply", "session_id", req.SessionID)
		s.recorder.AgentRequest("error_reply", elapsed)
		return Response{Reply: FallbackReply}, nil
	}

	reply, sid := ParseEnvelope(env)
	s.recorder.AgentRequest("ok", elapsed)
	return Response{Reply: reply, SessionID: sid}, nil
}

// Unavailable is the backend used when no provider is configured.
type Unavailable struct{}

func (Unavailable) Invoke(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) GenerateText(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) ChatGeneration(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
