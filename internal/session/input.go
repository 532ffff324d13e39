package session

import "strings"

type InputKind string

const (
	InputNone   InputKind = "none"
	InputApp    InputKind = "app"
	InputShell  InputKind = "shell"
	InputPrompt InputKind = "prompt"
)

// Input is a classified line from the prompt box. Value holds the app name
// (lowercased), the shell command, or the prompt text.
type Input struct {
	Kind  InputKind
	Value string
}

// ClassifyInput routes "!name" to the app launcher, "$cmd" to a terminal and
// everything else to the agent.
func ClassifyInput(raw string) Input {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Input{Kind: InputNone}
	case strings.HasPrefix(trimmed, "!"):
		return Input{Kind: InputApp, Value: strings.ToLower(strings.TrimSpace(trimmed[1:]))}
	case strings.HasPrefix(trimmed, "$"):
		return Input{Kind: InputShell, Value: strings.TrimSpace(trimmed[1:])}
	default:
		return Input{Kind: InputPrompt, Value: trimmed}
	}
}
