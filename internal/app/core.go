package app

import (
	"context"

	"vibeshell/internal/session"
	"vibeshell/internal/types"
)

// Core is the session surface the UI renders. It never exposes the server
// client directly.
type Core interface {
	Init(ctx context.Context) error
	Status() types.SessionStatus
	Messages() []types.Message
	ConnectionStatus() types.ConnectionStatus
	SendMessage(ctx context.Context, raw string) session.SubmitResult
	Abort(ctx context.Context) session.Result
	Reset(ctx context.Context) session.Result
	IsExternal(messageID string) bool
	Subscribe(fn func(session.Update)) func()
	Session() (types.Session, bool)
	Err() string
	Streaming() (bool, string)
}

// PreferenceStore is the subset of store.PreferenceStore the UI writes to.
type PreferenceStore interface {
	Load(ctx context.Context) (*types.Preferences, error)
	Save(ctx context.Context, prefs *types.Preferences) error
}

var _ Core = (*session.Machine)(nil)
