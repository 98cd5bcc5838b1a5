package channel

import "github.com/JonMunkholm/closeplan/internal/core"

// TextMessage is a free-text message from a parent view to its children.
type TextMessage struct {
	Text string `json:"text" validate:"required"`
}

// SessionNotice is a core.Notice addressed to one import session.
type SessionNotice struct {
	SessionID string      `json:"sessionId"`
	Notice    core.Notice `json:"notice"`
}

// Hub holds one broker per message schema. It implements core.Notifier.
type Hub struct {
	Text    *Broker[TextMessage]
	Notices *Broker[SessionNotice]
	Events  *Broker[core.SessionEvent]
}

// NewHub creates a hub with empty brokers.
func NewHub() *Hub {
	return &Hub{
		Text:    NewBroker[TextMessage](),
		Notices: NewBroker[SessionNotice](),
		Events:  NewBroker[core.SessionEvent](),
	}
}

// Notify publishes a session notice.
func (h *Hub) Notify(sessionID string, n core.Notice) {
	h.Notices.Publish(SessionNotice{SessionID: sessionID, Notice: n})
}

// SessionChanged publishes a session event.
func (h *Hub) SessionChanged(ev core.SessionEvent) {
	h.Events.Publish(ev)
}

// Close ends every subscription on every broker.
func (h *Hub) Close() {
	h.Text.Close()
	h.Notices.Close()
	h.Events.Close()
}
