package app

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"vibeshell/internal/session"
	"vibeshell/internal/types"
)

type fakeCore struct {
	mu         sync.Mutex
	status     types.SessionStatus
	conn       types.ConnectionStatus
	messages   []types.Message
	external   map[string]bool
	session    *types.Session
	errText    string
	streamID   string
	sendResult session.SubmitResult
	sent       []string
	aborts     int
	resets     int
	listeners  []func(session.Update)
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		status:     types.SessionReady,
		conn:       types.ConnectionConnected,
		external:   map[string]bool{},
		session:    &types.Session{ID: "ses_1", Title: "desktop"},
		sendResult: session.SubmitResult{Success: true, Kind: session.InputPrompt},
	}
}

func (f *fakeCore) Init(context.Context) error { return nil }

func (f *fakeCore) Status() types.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeCore) Messages() []types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Message(nil), f.messages...)
}

func (f *fakeCore) ConnectionStatus() types.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *fakeCore) SendMessage(_ context.Context, raw string) session.SubmitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	return f.sendResult
}

func (f *fakeCore) Abort(context.Context) session.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	f.status = types.SessionReady
	return session.Result{Success: true}
}

func (f *fakeCore) Reset(context.Context) session.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.messages = nil
	return session.Result{Success: true, Session: f.session}
}

func (f *fakeCore) IsExternal(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.external[id]
}

func (f *fakeCore) Subscribe(fn func(session.Update)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeCore) Session() (types.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return types.Session{}, false
	}
	return *f.session, true
}

func (f *fakeCore) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errText
}

func (f *fakeCore) Streaming() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamID != "", f.streamID
}

type fakePrefs struct {
	mu    sync.Mutex
	saved []types.Preferences
	fail  bool
}

func (f *fakePrefs) Load(context.Context) (*types.Preferences, error) {
	return &types.Preferences{}, nil
}

func (f *fakePrefs) Save(_ context.Context, prefs *types.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("read-only")
	}
	f.saved = append(f.saved, *prefs)
	return nil
}

func (f *fakePrefs) last() (types.Preferences, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return types.Preferences{}, false
	}
	return f.saved[len(f.saved)-1], true
}

func newTestModel(core *fakeCore, prefs *fakePrefs) *Model {
	opts := Options{Core: core, Title: "vibeshell"}
	if prefs != nil {
		opts.Preferences = prefs
	}
	m := NewModel(opts)
	m.resize(80, 24)
	return m
}

// runCmd executes cmd and any batched commands, returning the produced
// messages in order.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, inner := range batch {
			out = append(out, runCmd(inner)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// drive feeds every message produced by cmd back into the model.
func drive(m *Model, cmd tea.Cmd) {
	for _, msg := range runCmd(cmd) {
		_, _ = m.Update(msg)
	}
}

func keyPress(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

func userMessage(id, text string) types.Message {
	return types.Message{
		Info:  types.MessageInfo{ID: id, Role: types.RoleUser},
		Parts: []types.Part{types.TextPart(text)},
	}
}

func assistantMessage(id string, parts ...types.Part) types.Message {
	return types.Message{
		Info:  types.MessageInfo{ID: id, Role: types.RoleAssistant},
		Parts: parts,
	}
}
