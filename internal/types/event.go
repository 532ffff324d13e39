package types

import "encoding/json"

type EventKind string

const (
	EventSessionStatus  EventKind = "session.status"
	EventSessionIdle    EventKind = "session.idle"
	EventSessionError   EventKind = "session.error"
	EventMessageCreated EventKind = "message.created"
	EventPartUpdated    EventKind = "part.updated"
	EventOther          EventKind = "other"
)

// Event is one decoded frame from the server's event stream. Only the fields
// relevant to Kind are populated; Raw always holds the original payload.
type Event struct {
	Type       string          `json:"type"`
	Kind       EventKind       `json:"kind"`
	SessionID  string          `json:"sessionID,omitempty"`
	Status     string          `json:"status,omitempty"`
	Info       *MessageInfo    `json:"info,omitempty"`
	Part       *Part           `json:"part,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Error      string          `json:"error,omitempty"`
	IsExternal bool            `json:"isExternal,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}
