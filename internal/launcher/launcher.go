// Package launcher starts desktop applications and terminal commands on
// behalf of the shell's "!app" and "$command" inputs.
package launcher

import (
	"errors"
	"os/exec"
	"strings"

	"vibeshell/internal/logging"
)

const DefaultTerminal = "xfce4-terminal"

var defaultAliases = map[string]string{
	"firefox":     "firefox",
	"ff":          "firefox",
	"chrome":      "google-chrome",
	"chromium":    "chromium",
	"browser":     "google-chrome",
	"files":       "pcmanfm",
	"filemanager": "pcmanfm",
	"fm":          "pcmanfm",
	"editor":      "mousepad",
	"edit":        "mousepad",
	"text":        "mousepad",
	"notepad":     "mousepad",
	"code":        "code",
	"vscode":      "code",
}

// Result reports the outcome of a launch. Target is the resolved executable
// or the command that was run.
type Result struct {
	Success bool   `json:"success"`
	Target  string `json:"target,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Starter starts a process without waiting for it.
type Starter func(name string, args ...string) error

type Options struct {
	Terminal string
	// Aliases extend or override the built-in alias table. Keys are
	// matched case-insensitively.
	Aliases map[string]string
	Start   Starter
	Logger  logging.Logger
}

type Launcher struct {
	terminal string
	aliases  map[string]string
	start    Starter
	logger   logging.Logger
}

func New(opts Options) *Launcher {
	terminal := strings.TrimSpace(opts.Terminal)
	if terminal == "" {
		terminal = DefaultTerminal
	}
	aliases := make(map[string]string, len(defaultAliases)+len(opts.Aliases)+2)
	for alias, target := range defaultAliases {
		aliases[alias] = target
	}
	aliases["terminal"] = terminal
	aliases["term"] = terminal
	for alias, target := range opts.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		target = strings.TrimSpace(target)
		if alias == "" || target == "" {
			continue
		}
		aliases[alias] = target
	}
	start := opts.Start
	if start == nil {
		start = StartDetached
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Launcher{
		terminal: terminal,
		aliases:  aliases,
		start:    start,
		logger:   logger.With(logging.Component("launcher")),
	}
}

func (l *Launcher) Terminal() string {
	return l.terminal
}

// Resolve maps an alias to its executable. Unknown names pass through.
func (l *Launcher) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if target, ok := l.aliases[strings.ToLower(name)]; ok {
		return target
	}
	return name
}

func (l *Launcher) LaunchApp(name string) Result {
	executable := l.Resolve(name)
	if executable == "" {
		return Result{Error: "App name required"}
	}
	l.logger.Info("launching app", logging.F("app", executable))
	if err := l.start(executable); err != nil {
		l.logger.Warn("launch failed", logging.F("app", executable), logging.Err(err))
		return Result{Target: executable, Error: err.Error()}
	}
	return Result{Success: true, Target: executable}
}

func (l *Launcher) RunInTerminal(command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Error: "Command required"}
	}
	args := TerminalArgs(l.terminal, command)
	l.logger.Info("launching terminal", logging.F("terminal", l.terminal), logging.F("args", strings.Join(args, " ")))
	if err := l.start(l.terminal, args...); err != nil {
		l.logger.Warn("terminal launch failed", logging.F("terminal", l.terminal), logging.Err(err))
		return Result{Target: command, Error: err.Error()}
	}
	return Result{Success: true, Target: command}
}

// TerminalArgs builds the argument list that runs command in terminal and
// leaves an interactive shell open afterwards where the terminal allows it.
func TerminalArgs(terminal, command string) []string {
	switch terminalName(terminal) {
	case "xfce4-terminal":
		return []string{"-e", "bash -c '" + shellQuote(command) + "; exec bash'"}
	case "alacritty", "foot":
		return []string{"-e", "bash", "-c", command + "; exec bash"}
	default:
		return []string{"-e", command}
	}
}

func terminalName(terminal string) string {
	terminal = strings.TrimSpace(terminal)
	if idx := strings.LastIndex(terminal, "/"); idx >= 0 {
		terminal = terminal[idx+1:]
	}
	return terminal
}

// shellQuote escapes single quotes for embedding inside '...'.
func shellQuote(command string) string {
	return strings.ReplaceAll(command, "'", `'\''`)
}

// StartDetached starts name with stdio discarded and reaps it in the
// background.
func StartDetached(name string, args ...string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("executable is required")
	}
	cmd := exec.Command(name, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
