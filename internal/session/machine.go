// Package session owns the lifecycle of the shell's single agent
// conversation: bootstrapping against the server, the busy gate around
// submissions, event-driven state, and reset.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"vibeshell/internal/launcher"
	"vibeshell/internal/logging"
	"vibeshell/internal/provenance"
	"vibeshell/internal/reconcile"
	"vibeshell/internal/stream"
	"vibeshell/internal/types"
)

const (
	DefaultHealthAttempts = 30
	DefaultHealthInterval = time.Second

	localIDPrefix = "local_"
)

// Transport is the server API the machine drives.
type Transport interface {
	Remote
	WaitForServer(ctx context.Context, attempts int, interval time.Duration) error
	SendMessage(ctx context.Context, sessionID, text, messageID string) (json.RawMessage, error)
	ListMessages(ctx context.Context, sessionID string) ([]types.Message, error)
}

// EventStream is the subscription side of the stream manager.
type EventStream interface {
	Subscribe(handler stream.Handler)
	Close()
	Status() types.ConnectionStatus
	OnStatus(listener stream.StatusListener) func()
	ResetSeen()
}

type Launcher interface {
	LaunchApp(name string) launcher.Result
	RunInTerminal(command string) launcher.Result
}

// Tagger is the provenance state shared with the stream manager.
type Tagger interface {
	Expect(token string)
	Forget(token string)
	Reset()
}

type Config struct {
	Transport Transport
	Stream    EventStream
	Launcher  Launcher
	Tagger    Tagger
	Title     string
	// CorrelateMessages sends a client-generated message id with each
	// prompt so the echo can be matched exactly.
	CorrelateMessages bool
	HealthAttempts    int
	HealthInterval    time.Duration
	Logger            logging.Logger
}

type UpdateKind string

const (
	UpdateStatus     UpdateKind = "status"
	UpdateMessages   UpdateKind = "messages"
	UpdateConnection UpdateKind = "connection"
	UpdatePart       UpdateKind = "part"
	UpdateReset      UpdateKind = "reset"
)

// Update tells subscribers what changed. Only the fields for Kind are set;
// subscribers read current state through the query methods.
type Update struct {
	Kind       UpdateKind
	Status     types.SessionStatus
	Connection types.ConnectionStatus
	MessageID  string
	Part       *types.Part
	Delta      string
}

// SubmitResult is the outcome of SendMessage. Error is the display text;
// Err carries the kinded error.
type SubmitResult struct {
	Success  bool
	Kind     InputKind
	Target   string
	Error    string
	Err      error
	Response json.RawMessage
}

// Result is the outcome of Abort and Reset.
type Result struct {
	Success bool
	Error   string
	Err     error
	Session *types.Session
}

type lifecycle int

const (
	lifecycleInit lifecycle = iota
	lifecycleActive
	lifecycleTornDown
)

// Machine is the session state machine. All methods are safe for concurrent
// use. Subscribers are called outside the machine lock, possibly from the
// stream goroutine.
type Machine struct {
	transport   Transport
	stream      EventStream
	launcher    Launcher
	tagger      Tagger
	coordinator *Coordinator
	messages    *reconcile.Reconciler
	correlate   bool
	attempts    int
	interval    time.Duration
	logger      logging.Logger
	localSeq    atomic.Int64

	mu          sync.Mutex
	phase       lifecycle
	status      types.SessionStatus
	lastErr     string
	streaming   bool
	streamingID string
	external    map[string]struct{}
	listeners   map[int]func(Update)
	nextID      int
	unwatch     func()
}

func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tagger := cfg.Tagger
	if tagger == nil {
		tagger = provenance.NewTagger()
	}
	attempts := cfg.HealthAttempts
	if attempts <= 0 {
		attempts = DefaultHealthAttempts
	}
	interval := cfg.HealthInterval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	m := &Machine{
		transport:   cfg.Transport,
		stream:      cfg.Stream,
		launcher:    cfg.Launcher,
		tagger:      tagger,
		coordinator: NewCoordinator(cfg.Transport, cfg.Title, logger),
		messages:    reconcile.New(),
		correlate:   cfg.CorrelateMessages,
		attempts:    attempts,
		interval:    interval,
		logger:      logger.With(logging.Component("session")),
		status:      types.SessionLoading,
		external:    map[string]struct{}{},
		listeners:   map[int]func(Update){},
	}
	m.unwatch = m.stream.OnStatus(func(status types.ConnectionStatus) {
		m.emit(Update{Kind: UpdateConnection, Connection: status})
	})
	return m
}

// Init waits for the server, adopts the canonical session, subscribes to
// events and loads history. It may be retried after a failure.
func (m *Machine) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.phase == lifecycleTornDown {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.phase == lifecycleActive && (m.status == types.SessionReady || m.status == types.SessionBusy) {
		m.mu.Unlock()
		return nil
	}
	m.phase = lifecycleActive
	m.status = types.SessionLoading
	m.lastErr = ""
	m.mu.Unlock()
	m.emit(Update{Kind: UpdateStatus, Status: types.SessionLoading})

	if err := m.transport.WaitForServer(ctx, m.attempts, m.interval); err != nil {
		return m.fail(remoteUnavailableError("OpenCode server not available", err))
	}
	current, err := m.coordinator.EnsureSession(ctx)
	if err != nil {
		return m.fail(err)
	}
	m.stream.Subscribe(m.handleEvent)

	history, err := m.transport.ListMessages(ctx, current.ID)
	if err != nil {
		return m.fail(remoteUnavailableError("load messages", err))
	}
	m.messages.LoadSnapshot(history)
	m.logger.Info("session ready", logging.F("session_id", current.ID), logging.F("messages", len(history)))

	m.setStatus(types.SessionReady)
	m.emit(Update{Kind: UpdateMessages})
	return nil
}

func (m *Machine) fail(err error) error {
	m.logger.Error("session init failed", logging.Err(err))
	m.mu.Lock()
	m.status = types.SessionError
	m.lastErr = err.Error()
	m.mu.Unlock()
	m.emit(Update{Kind: UpdateStatus, Status: types.SessionError})
	return err
}

// Close tears the machine down. Later operations return ErrClosed.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.phase == lifecycleTornDown {
		m.mu.Unlock()
		return
	}
	m.phase = lifecycleTornDown
	unwatch := m.unwatch
	m.unwatch = nil
	m.mu.Unlock()

	m.stream.Close()
	if unwatch != nil {
		unwatch()
	}
	m.mu.Lock()
	m.listeners = map[int]func(Update){}
	m.mu.Unlock()
}

// SendMessage routes one line of input. Agent prompts are gated on the
// session not being busy and stay busy until the server reports idle.
func (m *Machine) SendMessage(ctx context.Context, raw string) SubmitResult {
	m.mu.Lock()
	if m.phase == lifecycleTornDown {
		m.mu.Unlock()
		return submitFailure("", ErrClosed)
	}
	if m.status == types.SessionBusy {
		m.mu.Unlock()
		return submitFailure("", busyError())
	}
	input := ClassifyInput(raw)
	switch input.Kind {
	case InputNone:
		m.mu.Unlock()
		return submitFailure(InputNone, invalidInputError("Empty input"))
	case InputApp, InputShell:
		m.mu.Unlock()
		return m.launch(input)
	}

	sessionID := m.coordinator.CanonicalID()
	if sessionID == "" {
		m.mu.Unlock()
		return submitFailure(InputPrompt, noSessionError())
	}
	token := ""
	if m.correlate {
		token = provenance.NewMessageID()
	}
	m.tagger.Expect(token)
	echoID := localIDPrefix + strconv.FormatInt(m.localSeq.Add(1), 10)
	m.messages.Append(types.Message{
		Info: types.MessageInfo{
			ID:        echoID,
			SessionID: sessionID,
			Role:      types.RoleUser,
			Time:      types.MessageTime{Created: types.NewTimestamp(time.Now())},
		},
		Parts: []types.Part{types.TextPart(input.Value)},
	})
	m.status = types.SessionBusy
	m.streaming = true
	m.mu.Unlock()
	m.emit(Update{Kind: UpdateMessages}, Update{Kind: UpdateStatus, Status: types.SessionBusy})

	response, err := m.transport.SendMessage(ctx, sessionID, input.Value, token)
	if err != nil {
		m.logger.Warn("send message failed", logging.F("session_id", sessionID), logging.Err(err))
		m.messages.Remove(echoID)
		m.tagger.Forget(token)
		m.mu.Lock()
		m.status = types.SessionReady
		m.streaming = false
		m.streamingID = ""
		m.mu.Unlock()
		m.emit(Update{Kind: UpdateMessages}, Update{Kind: UpdateStatus, Status: types.SessionReady})
		return submitFailure(InputPrompt, submissionFailedError("Failed to send message", err))
	}
	return SubmitResult{Success: true, Kind: InputPrompt, Target: input.Value, Response: response}
}

func (m *Machine) launch(input Input) SubmitResult {
	if m.launcher == nil {
		return submitFailure(input.Kind, invalidInputError("Launcher unavailable"))
	}
	var result launcher.Result
	if input.Kind == InputApp {
		result = m.launcher.LaunchApp(input.Value)
	} else {
		result = m.launcher.RunInTerminal(input.Value)
	}
	return SubmitResult{Success: result.Success, Kind: input.Kind, Target: result.Target, Error: result.Error}
}

func submitFailure(kind InputKind, err *Error) SubmitResult {
	return SubmitResult{Kind: kind, Error: err.Error(), Err: err}
}

// Abort stops the remote generation. Local busy state is cleared whether or
// not the server call succeeds.
func (m *Machine) Abort(ctx context.Context) Result {
	if m.closed() {
		return Result{Error: ErrClosed.Error(), Err: ErrClosed}
	}
	var abortErr error
	if sessionID := m.coordinator.CanonicalID(); sessionID == "" {
		abortErr = noSessionError()
	} else if err := m.transport.AbortSession(ctx, sessionID); err != nil {
		m.logger.Warn("abort failed", logging.F("session_id", sessionID), logging.Err(err))
		abortErr = remoteUnavailableError("abort", err)
	}

	m.mu.Lock()
	m.streaming = false
	m.streamingID = ""
	if m.status == types.SessionBusy {
		m.status = types.SessionReady
	}
	status := m.status
	m.mu.Unlock()
	m.emit(Update{Kind: UpdateStatus, Status: status})

	if abortErr != nil {
		return Result{Error: abortErr.Error(), Err: abortErr}
	}
	return Result{Success: true}
}

// Reset replaces the conversation with a fresh server session and clears
// all local state.
func (m *Machine) Reset(ctx context.Context) Result {
	if m.closed() {
		return Result{Error: ErrClosed.Error(), Err: ErrClosed}
	}
	m.setStatus(types.SessionLoading)

	fresh, _, err := m.coordinator.ResetSession(ctx, streamSubscriber{m})
	m.messages.Clear()
	m.tagger.Reset()
	m.stream.ResetSeen()

	m.mu.Lock()
	m.external = map[string]struct{}{}
	m.streaming = false
	m.streamingID = ""
	if err != nil {
		m.status = types.SessionError
		m.lastErr = err.Error()
	} else {
		m.phase = lifecycleActive
		m.status = types.SessionReady
		m.lastErr = ""
	}
	status := m.status
	m.mu.Unlock()
	m.emit(
		Update{Kind: UpdateReset},
		Update{Kind: UpdateMessages},
		Update{Kind: UpdateStatus, Status: status},
	)

	if err != nil {
		return Result{Error: err.Error(), Err: err}
	}
	return Result{Success: true, Session: &fresh}
}

// Refresh reloads the message list from the server.
func (m *Machine) Refresh(ctx context.Context) error {
	if m.closed() {
		return ErrClosed
	}
	sessionID := m.coordinator.CanonicalID()
	if sessionID == "" {
		return noSessionError()
	}
	history, err := m.transport.ListMessages(ctx, sessionID)
	if err != nil {
		m.logger.Warn("refresh messages failed", logging.F("session_id", sessionID), logging.Err(err))
		return remoteUnavailableError("load messages", err)
	}
	// A reset may have replaced the session while the request was in flight.
	if m.coordinator.CanonicalID() != sessionID {
		return nil
	}
	m.messages.LoadSnapshot(history)
	m.emit(Update{Kind: UpdateMessages})
	return nil
}

func (m *Machine) Status() types.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) Messages() []types.Message {
	return m.messages.Messages()
}

func (m *Machine) ConnectionStatus() types.ConnectionStatus {
	return m.stream.Status()
}

// IsExternal reports whether a user message arrived from another client.
func (m *Machine) IsExternal(messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.external[messageID]
	return ok
}

func (m *Machine) Session() (types.Session, bool) {
	return m.coordinator.Session()
}

// Err returns the last error worth showing, or "".
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Streaming reports whether a response is in progress and which message is
// receiving parts.
func (m *Machine) Streaming() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming, m.streamingID
}

// Subscribe registers fn for change notifications. The returned func
// unregisters it.
func (m *Machine) Subscribe(fn func(Update)) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Machine) closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == lifecycleTornDown
}

func (m *Machine) setStatus(status types.SessionStatus) {
	m.mu.Lock()
	changed := m.status != status
	m.status = status
	m.mu.Unlock()
	if changed {
		m.emit(Update{Kind: UpdateStatus, Status: status})
	}
}

func (m *Machine) emit(updates ...Update) {
	m.mu.Lock()
	listeners := make([]func(Update), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()
	for _, update := range updates {
		for _, fn := range listeners {
			fn(update)
		}
	}
}

type streamSubscriber struct {
	m *Machine
}

func (s streamSubscriber) Subscribe() {
	s.m.stream.Subscribe(s.m.handleEvent)
}

func (s streamSubscriber) Close() {
	s.m.stream.Close()
}
