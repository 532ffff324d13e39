package session

import (
	"context"
	"strings"

	"vibeshell/internal/logging"
	"vibeshell/internal/types"
)

const (
	serverStatusBusy = "busy"
	serverStatusIdle = "idle"
)

// handleEvent runs on the stream supervisor goroutine, in stream order.
func (m *Machine) handleEvent(ctx context.Context, event types.Event) {
	if m.closed() {
		return
	}
	canonical := m.coordinator.CanonicalID()
	if canonical == "" || event.SessionID != canonical {
		if event.Kind != types.EventOther {
			m.logger.Debug("event for other session dropped", logging.F("type", event.Type), logging.F("session_id", event.SessionID))
		}
		return
	}

	switch event.Kind {
	case types.EventSessionStatus:
		switch strings.ToLower(event.Status) {
		case serverStatusBusy:
			m.mu.Lock()
			m.streaming = true
			m.mu.Unlock()
			m.setStatus(types.SessionBusy)
		case serverStatusIdle:
			m.setStatus(types.SessionReady)
		}

	case types.EventSessionIdle:
		m.mu.Lock()
		m.streaming = false
		m.streamingID = ""
		m.mu.Unlock()
		m.setStatus(types.SessionReady)
		_ = m.Refresh(ctx)

	case types.EventMessageCreated:
		if event.Info == nil || event.Info.Role != types.RoleUser {
			return
		}
		if event.IsExternal && event.Info.ID != "" {
			m.mu.Lock()
			m.external[event.Info.ID] = struct{}{}
			m.mu.Unlock()
			m.logger.Info("external message", logging.F("message_id", event.Info.ID))
		}
		_ = m.Refresh(ctx)

	case types.EventPartUpdated:
		if event.Part == nil {
			return
		}
		messageID := strings.TrimSpace(event.Part.MessageID)
		if messageID == "" || !m.messages.ApplyPartUpdate(*event.Part, messageID) {
			return
		}
		m.mu.Lock()
		m.streamingID = messageID
		m.mu.Unlock()
		part := event.Part.Clone()
		m.emit(Update{Kind: UpdatePart, MessageID: messageID, Part: &part, Delta: event.Delta})

	case types.EventSessionError:
		message := strings.TrimSpace(event.Error)
		if message == "" {
			message = "session error"
		}
		m.logger.Warn("session error event", logging.F("error", message))
		m.mu.Lock()
		m.lastErr = message
		status := m.status
		m.mu.Unlock()
		m.emit(Update{Kind: UpdateStatus, Status: status})
	}
}
