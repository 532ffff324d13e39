package stream

import (
	"encoding/json"
	"errors"
	"strings"

	"vibeshell/internal/types"
)

const (
	wireSessionStatus   = "session.status"
	wireSessionIdle     = "session.idle"
	wireSessionError    = "session.error"
	wireMessageCreated  = "message.created"
	wireMessageUpdated  = "message.updated"
	wirePartUpdated     = "message.part.updated"
	maxSeenUserMessages = 4096
)

type wireEvent struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

type wireProperties struct {
	SessionID string             `json:"sessionID"`
	Status    json.RawMessage    `json:"status"`
	Info      *types.MessageInfo `json:"info"`
	Part      *types.Part        `json:"part"`
	Delta     string             `json:"delta"`
	Error     json.RawMessage    `json:"error"`
}

var errMissingType = errors.New("event type missing")

// parseFrame decodes one SSE data payload. Classification that depends on
// manager state happens in Manager.classify.
func parseFrame(data []byte) (types.Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return types.Event{}, err
	}
	wire.Type = strings.TrimSpace(wire.Type)
	if wire.Type == "" {
		return types.Event{}, errMissingType
	}
	event := types.Event{
		Type: wire.Type,
		Kind: types.EventOther,
		Raw:  append(json.RawMessage(nil), data...),
	}
	var props wireProperties
	if len(wire.Properties) > 0 && string(wire.Properties) != "null" {
		if err := json.Unmarshal(wire.Properties, &props); err != nil {
			return types.Event{}, err
		}
	}
	event.SessionID = eventSessionID(props)

	switch wire.Type {
	case wireSessionStatus:
		event.Kind = types.EventSessionStatus
		event.Status = decodeStatus(props.Status)
	case wireSessionIdle:
		event.Kind = types.EventSessionIdle
	case wireSessionError:
		event.Kind = types.EventSessionError
		event.Error = decodeError(props.Error)
	case wireMessageCreated, wireMessageUpdated:
		event.Info = props.Info
	case wirePartUpdated:
		if props.Part != nil && props.Part.IsContent() {
			event.Kind = types.EventPartUpdated
			event.Part = props.Part
			event.Delta = props.Delta
		}
	}
	return event, nil
}

func eventSessionID(props wireProperties) string {
	if id := strings.TrimSpace(props.SessionID); id != "" {
		return id
	}
	if props.Info != nil {
		if id := strings.TrimSpace(props.Info.SessionID); id != "" {
			return id
		}
	}
	if props.Part != nil {
		return strings.TrimSpace(props.Part.SessionID)
	}
	return ""
}

// decodeStatus accepts both "busy" and {"type":"busy"}.
func decodeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Type)
	}
	return ""
}

// decodeError flattens the server's error shapes: a bare string, or
// {name, message} optionally nested under data.
func decodeError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, candidate := range []string{obj.Data.Message, obj.Message, obj.Name} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return "session error"
}
