// Package stream keeps a single live subscription to the server's event
// stream, reconnecting on failure, and turns raw frames into typed events.
package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"vibeshell/internal/logging"
	"vibeshell/internal/opencode"
	"vibeshell/internal/types"
)

// EventStream is one open connection. Frames is closed when it ends.
type EventStream interface {
	Frames() <-chan []byte
	Err() error
	Close()
}

type Source interface {
	Open(ctx context.Context) (EventStream, error)
}

type SourceFunc func(ctx context.Context) (EventStream, error)

func (f SourceFunc) Open(ctx context.Context) (EventStream, error) {
	return f(ctx)
}

// ClientSource opens streams through the transport client.
func ClientSource(client *opencode.Client) Source {
	return SourceFunc(func(ctx context.Context) (EventStream, error) {
		stream, err := client.SubscribeEvents(ctx)
		if err != nil {
			return nil, err
		}
		return stream, nil
	})
}

// Classifier decides whether a newly created user message is external.
type Classifier interface {
	Classify(messageID string) (external bool)
}

// Handler receives decoded events in stream order on the supervisor
// goroutine. ctx is cancelled when the supervisor stops. Handlers must not
// call Subscribe or Close synchronously.
type Handler func(ctx context.Context, event types.Event)

type StatusListener func(types.ConnectionStatus)

type Options struct {
	Policy     RetryPolicy
	Classifier Classifier
	Logger     logging.Logger
	// After replaces time.After for the retry wait.
	After func(time.Duration) <-chan time.Time
}

type Manager struct {
	source     Source
	policy     RetryPolicy
	classifier Classifier
	logger     logging.Logger
	after      func(time.Duration) <-chan time.Time

	// lifecycle serializes Subscribe and Close.
	lifecycle sync.Mutex
	// notify orders status transitions and their listener calls.
	notify sync.Mutex

	mu         sync.Mutex
	status     types.ConnectionStatus
	listeners  map[int]StatusListener
	nextID     int
	cancel     context.CancelFunc
	seenUsers  map[string]struct{}
	supervisor sync.WaitGroup
}

func NewManager(source Source, opts Options) *Manager {
	policy := opts.Policy
	if policy == nil {
		policy = FixedRetry{Interval: DefaultReconnectDelay}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	after := opts.After
	if after == nil {
		after = time.After
	}
	return &Manager{
		source:     source,
		policy:     policy,
		classifier: opts.Classifier,
		logger:     logger.With(logging.Component("stream")),
		after:      after,
		status:     types.ConnectionDisconnected,
		listeners:  map[int]StatusListener{},
		seenUsers:  map[string]struct{}{},
	}
}

func (m *Manager) Status() types.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// OnStatus registers a listener called on every status change. The returned
// func unregisters it.
func (m *Manager) OnStatus(listener StatusListener) func() {
	if listener == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Subscribe replaces any running subscription with a new one delivering to
// handler. It returns immediately; connection progress is reported through
// status listeners.
func (m *Manager) Subscribe(handler Handler) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stop()

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.transition(types.ConnectionReconnecting)
	m.supervisor.Add(1)
	go func() {
		defer m.supervisor.Done()
		m.run(ctx, handler)
	}()
}

// Close stops the supervisor and waits for it to exit.
func (m *Manager) Close() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stop()
	m.transition(types.ConnectionDisconnected)
}

// ResetSeen forgets which user messages were already classified.
func (m *Manager) ResetSeen() {
	m.mu.Lock()
	m.seenUsers = map[string]struct{}{}
	m.mu.Unlock()
}

func (m *Manager) stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.supervisor.Wait()
}

func (m *Manager) run(ctx context.Context, handler Handler) {
	attempt := 0
	for {
		conn, err := m.source.Open(ctx)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			m.logger.Warn("event stream open failed", logging.F("attempt", attempt+1), logging.Err(err))
		} else {
			attempt = 0
			m.transition(types.ConnectionConnected)
			m.logger.Info("event stream connected")
			m.consume(ctx, conn, handler)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("event stream dropped", logging.Err(conn.Err()))
		}
		m.transition(types.ConnectionDisconnected)
		m.transition(types.ConnectionReconnecting)

		delay := m.policy.Delay(attempt)
		attempt++
		m.logger.Debug("event stream retry scheduled", logging.F("delay", delay))
		select {
		case <-ctx.Done():
			return
		case <-m.after(delay):
		}
	}
}

func (m *Manager) consume(ctx context.Context, conn EventStream, handler Handler) {
	frames := conn.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			event, ok := m.decode(frame)
			if !ok || handler == nil {
				continue
			}
			handler(ctx, event)
		}
	}
}

func (m *Manager) decode(frame []byte) (types.Event, bool) {
	event, err := parseFrame(frame)
	if err != nil {
		m.logger.Debug("malformed event dropped", logging.Err(err), logging.F("bytes", len(frame)))
		return types.Event{}, false
	}
	return m.classify(event), true
}

// classify resolves message events. message.updated for a user message not
// seen before counts as creation, since servers emit it for new messages.
func (m *Manager) classify(event types.Event) types.Event {
	if event.Type != wireMessageCreated && event.Type != wireMessageUpdated {
		return event
	}
	info := event.Info
	if info == nil {
		return event
	}
	if info.Role != types.RoleUser {
		if event.Type == wireMessageCreated {
			event.Kind = types.EventMessageCreated
		}
		return event
	}
	id := strings.TrimSpace(info.ID)
	if !m.markSeen(id) {
		return event
	}
	event.Kind = types.EventMessageCreated
	if m.classifier != nil {
		event.IsExternal = m.classifier.Classify(id)
	}
	return event
}

// markSeen records id and reports whether it was new.
func (m *Manager) markSeen(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if _, ok := m.seenUsers[id]; ok {
			return false
		}
		if len(m.seenUsers) >= maxSeenUserMessages {
			m.seenUsers = map[string]struct{}{}
		}
		m.seenUsers[id] = struct{}{}
	}
	return true
}

func (m *Manager) transition(to types.ConnectionStatus) {
	m.notify.Lock()
	defer m.notify.Unlock()

	m.mu.Lock()
	from := m.status
	if from == to {
		m.mu.Unlock()
		return
	}
	if !canTransition(from, to) {
		m.mu.Unlock()
		m.logger.Warn("rejected connection transition", logging.F("from", from), logging.F("to", to))
		return
	}
	m.status = to
	listeners := make([]StatusListener, 0, len(m.listeners))
	for _, listener := range m.listeners {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	m.logger.Debug("connection status", logging.F("from", from), logging.F("to", to))
	for _, listener := range listeners {
		listener(to)
	}
}
