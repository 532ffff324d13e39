package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"vibeshell/internal/launcher"
	"vibeshell/internal/opencode"
	"vibeshell/internal/stream"
	"vibeshell/internal/types"
)

type sentMessage struct {
	sessionID string
	text      string
	messageID string
}

// fakeServer is an in-memory stand-in for the OpenCode HTTP API.
type fakeServer struct {
	mu        sync.Mutex
	sessions  []types.Session
	messages  map[string][]types.Message
	nextID    int
	sent      []sentMessage
	aborted   []string
	deleted   []string
	healthErr error
	listErr   error
	createErr error
	sendErr   error
	abortErr  error
	deleteErr map[string]error
	// onSend runs inside SendMessage before it returns.
	onSend func(sentMessage)
}

func newFakeServer(sessions ...types.Session) *fakeServer {
	return &fakeServer{
		sessions:  append([]types.Session(nil), sessions...),
		messages:  map[string][]types.Message{},
		deleteErr: map[string]error{},
	}
}

func (s *fakeServer) WaitForServer(ctx context.Context, attempts int, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthErr
}

func (s *fakeServer) ListSessions(ctx context.Context) ([]types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]types.Session(nil), s.sessions...), nil
}

func (s *fakeServer) CreateSession(ctx context.Context, title string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	created := types.Session{ID: fmt.Sprintf("ses_new_%d", s.nextID), Title: title}
	s.sessions = append(s.sessions, created)
	return &created, nil
}

func (s *fakeServer) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[sessionID]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, sessionID)
	for i, session := range s.sessions {
		if session.ID == sessionID {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	delete(s.messages, sessionID)
	return nil
}

func (s *fakeServer) AbortSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = append(s.aborted, sessionID)
	return s.abortErr
}

func (s *fakeServer) SendMessage(ctx context.Context, sessionID, text, messageID string) (json.RawMessage, error) {
	s.mu.Lock()
	if s.sendErr != nil {
		err := s.sendErr
		s.mu.Unlock()
		return nil, err
	}
	sent := sentMessage{sessionID: sessionID, text: text, messageID: messageID}
	s.sent = append(s.sent, sent)
	id := messageID
	if id == "" {
		id = fmt.Sprintf("msg_srv_%d", len(s.sent))
	}
	s.messages[sessionID] = append(s.messages[sessionID], types.Message{
		Info:  types.MessageInfo{ID: id, SessionID: sessionID, Role: types.RoleUser},
		Parts: []types.Part{types.TextPart(text)},
	})
	onSend := s.onSend
	s.mu.Unlock()
	if onSend != nil {
		onSend(sent)
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (s *fakeServer) ListMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]types.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *fakeServer) sessionsTitled(title string) []types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Session
	for _, session := range s.sessions {
		if session.Title == title {
			out = append(out, session)
		}
	}
	return out
}

func (s *fakeServer) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeStream records subscriptions; tests deliver events by calling the
// captured handler directly.
type fakeStream struct {
	mu         sync.Mutex
	handler    stream.Handler
	subscribes int
	closes     int
	resets     int
	status     types.ConnectionStatus
	listeners  map[int]stream.StatusListener
	nextID     int
}

func newFakeStream() *fakeStream {
	return &fakeStream{status: types.ConnectionDisconnected, listeners: map[int]stream.StatusListener{}}
}

func (f *fakeStream) Subscribe(handler stream.Handler) {
	f.mu.Lock()
	f.handler = handler
	f.subscribes++
	f.mu.Unlock()
	f.setStatus(types.ConnectionConnected)
}

func (f *fakeStream) Close() {
	f.mu.Lock()
	f.handler = nil
	f.closes++
	f.mu.Unlock()
	f.setStatus(types.ConnectionDisconnected)
}

func (f *fakeStream) Status() types.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeStream) OnStatus(listener stream.StatusListener) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeStream) ResetSeen() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeStream) setStatus(status types.ConnectionStatus) {
	f.mu.Lock()
	if f.status == status {
		f.mu.Unlock()
		return
	}
	f.status = status
	listeners := make([]stream.StatusListener, 0, len(f.listeners))
	for _, listener := range f.listeners {
		listeners = append(listeners, listener)
	}
	f.mu.Unlock()
	for _, listener := range listeners {
		listener(status)
	}
}

func (f *fakeStream) deliver(event types.Event) bool {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(context.Background(), event)
	return true
}

type fakeLauncher struct {
	apps     []string
	commands []string
}

func (l *fakeLauncher) LaunchApp(name string) launcher.Result {
	l.apps = append(l.apps, name)
	return launcher.Result{Success: true, Target: name}
}

func (l *fakeLauncher) RunInTerminal(command string) launcher.Result {
	l.commands = append(l.commands, command)
	return launcher.Result{Success: true, Target: command}
}

var errBoom = errors.New("boom")

var errNotFound = &opencode.RequestError{Method: "DELETE", Path: "/session/x", StatusCode: 404}

type harness struct {
	server   *fakeServer
	stream   *fakeStream
	launcher *fakeLauncher
	machine  *Machine
}

func newHarness(server *fakeServer) *harness {
	h := &harness{server: server, stream: newFakeStream(), launcher: &fakeLauncher{}}
	h.machine = New(Config{
		Transport:         server,
		Stream:            h.stream,
		Launcher:          h.launcher,
		CorrelateMessages: true,
		HealthAttempts:    1,
		HealthInterval:    time.Millisecond,
	})
	return h
}

func statusEvent(sessionID, status string) types.Event {
	return types.Event{Type: "session.status", Kind: types.EventSessionStatus, SessionID: sessionID, Status: status}
}

func idleEvent(sessionID string) types.Event {
	return types.Event{Type: "session.idle", Kind: types.EventSessionIdle, SessionID: sessionID}
}

func userCreatedEvent(sessionID, messageID string, external bool) types.Event {
	return types.Event{
		Type:       "message.created",
		Kind:       types.EventMessageCreated,
		SessionID:  sessionID,
		Info:       &types.MessageInfo{ID: messageID, SessionID: sessionID, Role: types.RoleUser},
		IsExternal: external,
	}
}

func partEvent(sessionID string, part types.Part) types.Event {
	part.SessionID = sessionID
	return types.Event{Type: "message.part.updated", Kind: types.EventPartUpdated, SessionID: sessionID, Part: &part}
}
