package types

import (
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PartType string

const (
	PartText       PartType = "text"
	PartTool       PartType = "tool"
	PartReasoning  PartType = "reasoning"
	PartStepStart  PartType = "step-start"
	PartStepFinish PartType = "step-finish"
)

type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolError     ToolStatus = "error"
)

type MessageTime struct {
	Created   Timestamp  `json:"created"`
	Completed *Timestamp `json:"completed,omitempty"`
}

type MessageInfo struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID,omitempty"`
	Role      Role        `json:"role"`
	Time      MessageTime `json:"time"`
}

// Message mirrors the server's {info, parts} envelope.
type Message struct {
	Info  MessageInfo `json:"info"`
	Parts []Part      `json:"parts"`
}

func (m Message) ID() string {
	return m.Info.ID
}

func (m Message) CreatedAt() time.Time {
	return m.Info.Time.Created.Time
}

// Text joins the message's text parts.
func (m Message) Text() string {
	var out []string
	for _, part := range m.Parts {
		if part.Type != PartText {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n\n")
}

func (m Message) Clone() Message {
	out := m
	if m.Info.Time.Completed != nil {
		completed := *m.Info.Time.Completed
		out.Info.Time.Completed = &completed
	}
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, part := range m.Parts {
			out.Parts[i] = part.Clone()
		}
	}
	return out
}

type ToolState struct {
	Status ToolStatus      `json:"status,omitempty"`
	Title  string          `json:"title,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Part is a tagged union keyed by Type. Text parts use Text; tool parts use
// Tool, CallID and State.
type Part struct {
	ID        string     `json:"id,omitempty"`
	MessageID string     `json:"messageID,omitempty"`
	SessionID string     `json:"sessionID,omitempty"`
	Type      PartType   `json:"type"`
	Text      string     `json:"text,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	CallID    string     `json:"callID,omitempty"`
	State     *ToolState `json:"state,omitempty"`
}

func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// IsContent reports whether the part is merged from the event stream.
func (p Part) IsContent() bool {
	return p.Type == PartText || p.Type == PartTool
}

// CallKey identifies a tool call across updates.
func (p Part) CallKey() string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	return strings.TrimSpace(p.CallID)
}

func (p Part) ToolStatus() ToolStatus {
	if p.State == nil {
		return ""
	}
	return p.State.Status
}

func (p Part) Clone() Part {
	out := p
	if p.State != nil {
		state := *p.State
		if p.State.Input != nil {
			state.Input = append(json.RawMessage(nil), p.State.Input...)
		}
		out.State = &state
	}
	return out
}
