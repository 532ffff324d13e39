package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"vibeshell/internal/types"
)

const (
	prefsTimeout = 2 * time.Second
	abortTimeout = 10 * time.Second
	resetTimeout = 60 * time.Second
)

func initCoreCmd(core Core) tea.Cmd {
	return func() tea.Msg {
		return initDoneMsg{err: core.Init(context.Background())}
	}
}

// sendMessageCmd has no deadline: a turn lasts as long as the agent works.
func sendMessageCmd(core Core, input string) tea.Cmd {
	return func() tea.Msg {
		result := core.SendMessage(context.Background(), input)
		return submitResultMsg{input: input, result: result}
	}
}

func abortCmd(core Core) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
		defer cancel()
		return abortResultMsg{result: core.Abort(ctx)}
	}
}

func resetCmd(core Core) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()
		return resetResultMsg{result: core.Reset(ctx)}
	}
}

func loadPrefsCmd(store PreferenceStore) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), prefsTimeout)
		defer cancel()
		prefs, err := store.Load(ctx)
		return prefsLoadedMsg{prefs: prefs, err: err}
	}
}

func savePrefsCmd(store PreferenceStore, prefs types.Preferences) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), prefsTimeout)
		defer cancel()
		return prefsSavedMsg{err: store.Save(ctx, &prefs)}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		method, err := copyTextToClipboard(text)
		return copyResultMsg{method: method, err: err}
	}
}
