package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"vibeshell/internal/logging"
	"vibeshell/internal/types"
)

const defaultSweepLimit = 4

// Remote is the slice of the transport client the coordinator needs.
type Remote interface {
	ListSessions(ctx context.Context) ([]types.Session, error)
	CreateSession(ctx context.Context, title string) (*types.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	AbortSession(ctx context.Context, sessionID string) error
}

// Subscriber is the event subscription the coordinator tears down and
// restores around a reset.
type Subscriber interface {
	Subscribe()
	Close()
}

// Coordinator owns the canonical session id: the one server session, found
// by title, that this shell converses in.
type Coordinator struct {
	remote     Remote
	title      string
	sweepLimit int
	logger     logging.Logger

	mu      sync.RWMutex
	session *types.Session
}

func NewCoordinator(remote Remote, title string, logger logging.Logger) *Coordinator {
	title = strings.TrimSpace(title)
	if title == "" {
		title = types.DefaultSessionTitle
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		remote:     remote,
		title:      title,
		sweepLimit: defaultSweepLimit,
		logger:     logger.With(logging.Component("coordinator")),
	}
}

func (c *Coordinator) Title() string {
	return c.title
}

func (c *Coordinator) CanonicalID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

func (c *Coordinator) Session() (types.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return types.Session{}, false
	}
	return *c.session, true
}

func (c *Coordinator) adopt(session *types.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session == nil {
		c.session = nil
		return
	}
	copied := *session
	c.session = &copied
}

// EnsureSession adopts the first remote session carrying the canonical
// title, creating one if none exists.
func (c *Coordinator) EnsureSession(ctx context.Context) (types.Session, error) {
	sessions, err := c.remote.ListSessions(ctx)
	if err != nil {
		return types.Session{}, remoteUnavailableError("list sessions", err)
	}
	for i := range sessions {
		if sessions[i].HasTitle(c.title) && strings.TrimSpace(sessions[i].ID) != "" {
			c.adopt(&sessions[i])
			c.logger.Info("found existing session", logging.F("session_id", sessions[i].ID), logging.F("title", c.title))
			return sessions[i], nil
		}
	}
	created, err := c.remote.CreateSession(ctx, c.title)
	if err != nil {
		return types.Session{}, remoteUnavailableError("create session", err)
	}
	c.adopt(created)
	c.logger.Info("created session", logging.F("session_id", created.ID), logging.F("title", c.title))
	return *created, nil
}

// ResetSession discards the canonical session and every other session with
// the same title, then starts a fresh one. Teardown steps are best-effort.
// The subscription is restored even when creation fails.
func (c *Coordinator) ResetSession(ctx context.Context, sub Subscriber) (types.Session, []types.Message, error) {
	c.logger.Info("resetting session")
	if sub != nil {
		sub.Close()
		defer sub.Subscribe()
	}

	if current := c.CanonicalID(); current != "" {
		if err := c.remote.AbortSession(ctx, current); err != nil {
			c.logger.Debug("abort before reset failed", logging.F("session_id", current), logging.Err(err))
		}
		if err := c.remote.DeleteSession(ctx, current); err != nil {
			c.logger.Warn("delete canonical session failed", logging.F("session_id", current), logging.Err(err))
		}
	}
	c.adopt(nil)

	c.sweep(ctx)

	created, err := c.remote.CreateSession(ctx, c.title)
	if err != nil {
		c.logger.Error("create session after reset failed", logging.Err(err))
		return types.Session{}, nil, remoteUnavailableError("create session", err)
	}
	c.adopt(created)
	c.logger.Info("created fresh session", logging.F("session_id", created.ID))
	return *created, []types.Message{}, nil
}

// sweep deletes every remote session carrying the canonical title.
func (c *Coordinator) sweep(ctx context.Context) {
	sessions, err := c.remote.ListSessions(ctx)
	if err != nil {
		c.logger.Warn("list sessions for cleanup failed", logging.Err(err))
		return
	}
	var (
		group  errgroup.Group
		failed atomic.Int32
		total  int
	)
	group.SetLimit(c.sweepLimit)
	for _, session := range sessions {
		if !session.HasTitle(c.title) || strings.TrimSpace(session.ID) == "" {
			continue
		}
		total++
		id := session.ID
		group.Go(func() error {
			if err := c.remote.DeleteSession(ctx, id); err != nil {
				failed.Add(1)
				c.logger.Warn("delete duplicate session failed", logging.F("session_id", id), logging.Err(err))
			}
			return nil
		})
	}
	_ = group.Wait()
	if total > 0 {
		c.logger.Info("duplicate sessions swept", logging.F("matched", total), logging.F("failed", failed.Load()))
	}
}
