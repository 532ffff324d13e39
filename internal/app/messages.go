package app

import (
	"vibeshell/internal/session"
	"vibeshell/internal/types"
)

type coreUpdateMsg struct {
	update session.Update
}

type initDoneMsg struct {
	err error
}

type submitResultMsg struct {
	input  string
	result session.SubmitResult
}

type abortResultMsg struct {
	result session.Result
}

type resetResultMsg struct {
	result session.Result
}

type prefsLoadedMsg struct {
	prefs *types.Preferences
	err   error
}

type prefsSavedMsg struct {
	err error
}

type copyResultMsg struct {
	method clipboardMethod
	err    error
}

type signalMsg struct {
	command string
}
