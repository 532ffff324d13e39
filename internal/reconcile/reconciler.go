// Package reconcile merges the server's message snapshot, streaming part
// updates and optimistic local echoes into one ordered list.
package reconcile

import (
	"strings"
	"sync"
	"time"

	"vibeshell/internal/types"
)

type Reconciler struct {
	mu       sync.Mutex
	messages []types.Message
	index    map[string]int
	now      func() time.Time
}

func New() *Reconciler {
	return &Reconciler{index: map[string]int{}, now: time.Now}
}

// LoadSnapshot replaces the list. A duplicated id keeps its first position
// and its last content.
func (r *Reconciler) LoadSnapshot(messages []types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = make([]types.Message, 0, len(messages))
	r.index = make(map[string]int, len(messages))
	for _, message := range messages {
		id := message.ID()
		if idx, ok := r.index[id]; ok && id != "" {
			r.messages[idx] = message.Clone()
			continue
		}
		r.index[id] = len(r.messages)
		r.messages = append(r.messages, message.Clone())
	}
}

// ApplyPartUpdate merges a streamed text or tool part into its message,
// creating an assistant message when the id is unknown. It reports whether
// the list changed shape or content.
func (r *Reconciler) ApplyPartUpdate(part types.Part, messageID string) bool {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" || !part.IsContent() {
		return false
	}
	part = part.Clone()
	if part.MessageID == "" {
		part.MessageID = messageID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.index[messageID]
	if !ok {
		r.index[messageID] = len(r.messages)
		r.messages = append(r.messages, types.Message{
			Info: types.MessageInfo{
				ID:        messageID,
				SessionID: part.SessionID,
				Role:      types.RoleAssistant,
				Time:      types.MessageTime{Created: types.NewTimestamp(r.now())},
			},
			Parts: []types.Part{part},
		})
		return true
	}

	message := &r.messages[idx]
	switch part.Type {
	case types.PartText:
		for i := range message.Parts {
			if message.Parts[i].Type == types.PartText {
				message.Parts[i] = part
				return true
			}
		}
	case types.PartTool:
		// Parts without an id or call id are matched by tool name.
		key := part.CallKey()
		for i := range message.Parts {
			existing := message.Parts[i]
			if existing.Type != types.PartTool || existing.CallKey() != key {
				continue
			}
			if key == "" && existing.Tool != part.Tool {
				continue
			}
			message.Parts[i] = part
			return true
		}
	}
	message.Parts = append(message.Parts, part)
	return true
}

// Append adds a message at the end, replacing any message with the same id.
func (r *Reconciler) Append(message types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := message.ID()
	if idx, ok := r.index[id]; ok && id != "" {
		r.messages[idx] = message.Clone()
		return
	}
	r.index[id] = len(r.messages)
	r.messages = append(r.messages, message.Clone())
}

// Remove deletes the message with id and reports whether it existed.
func (r *Reconciler) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.index[id]
	if !ok {
		return false
	}
	r.messages = append(r.messages[:idx], r.messages[idx+1:]...)
	r.reindexLocked()
	return true
}

func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.index = map[string]int{}
}

// Messages returns a deep copy in arrival order.
func (r *Reconciler) Messages() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Message, len(r.messages))
	for i, message := range r.messages {
		out[i] = message.Clone()
	}
	return out
}

func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *Reconciler) Get(id string) (types.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.index[id]
	if !ok {
		return types.Message{}, false
	}
	return r.messages[idx].Clone(), true
}

func (r *Reconciler) reindexLocked() {
	r.index = make(map[string]int, len(r.messages))
	for i, message := range r.messages {
		r.index[message.ID()] = i
	}
}
