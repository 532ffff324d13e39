package signalfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitCommand(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case command := <-ch:
		return command
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for command")
	}
	return ""
}

func TestWatcherDeliversSentCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vibeos-command")
	commands := make(chan string, 4)
	watcher := NewWatcher(path, 20*time.Millisecond, func(command string) {
		commands <- command
	}, nil)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()

	if err := Send(path, " reset \n"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := waitCommand(t, commands); got != CommandReset {
		t.Fatalf("expected reset, got %q", got)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected signal file to be removed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := Send(path, "toggle"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := waitCommand(t, commands); got != CommandToggle {
		t.Fatalf("expected toggle, got %q", got)
	}
}

func TestWatcherPicksUpCommandWrittenBeforeStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd")
	if err := os.WriteFile(path, []byte("show"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	commands := make(chan string, 1)
	watcher := NewWatcher(path, time.Hour, func(command string) {
		commands <- command
	}, nil)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()
	if got := waitCommand(t, commands); got != CommandShow {
		t.Fatalf("expected show, got %q", got)
	}
}

func TestConsumeIgnoresBlankAndPassesUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd")
	var got []string
	watcher := NewWatcher(path, 0, func(command string) {
		got = append(got, command)
	}, nil)

	watcher.consume()
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	watcher.consume()
	if err := os.WriteFile(path, []byte("dance"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	watcher.consume()
	if len(got) != 1 || got[0] != "dance" {
		t.Fatalf("unexpected commands: %#v", got)
	}
	if IsKnown("dance") || !IsKnown(CommandHide) {
		t.Fatalf("unexpected IsKnown results")
	}
}

func TestStopIsIdempotentAndContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	watcher := NewWatcher(filepath.Join(t.TempDir(), "cmd"), 10*time.Millisecond, nil, nil)
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	watcher.Stop()
	watcher.Stop()
}

func TestSendRejectsEmptyCommand(t *testing.T) {
	if err := Send(filepath.Join(t.TempDir(), "cmd"), "  "); err == nil {
		t.Fatalf("expected error")
	}
	if err := Send(filepath.Join(t.TempDir(), "missing", "cmd"), "reset"); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
