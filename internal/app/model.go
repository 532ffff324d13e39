// Package app is the terminal chat shell. It renders the session core and
// forwards user intent to it; all server traffic stays behind Core.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vibeshell/internal/logging"
	"vibeshell/internal/session"
	"vibeshell/internal/signalfile"
	"vibeshell/internal/types"
)

const (
	minViewportWidth  = 20
	minViewportHeight = 3
	chromeLines       = 4
	defaultTitle      = "vibeshell"
)

type Options struct {
	Core        Core
	Preferences PreferenceStore
	Title       string
	// Template is used until stored preferences load.
	Template       string
	SignalPath     string
	SignalInterval time.Duration
	Logger         logging.Logger
}

type Model struct {
	core            Core
	prefs           PreferenceStore
	logger          logging.Logger
	keys            keyMap
	viewport        viewport.Model
	input           *ChatInput
	spinner         spinner.Model
	spinning        bool
	template        Template
	showToolDetails bool
	title           string
	width           int
	height          int
	follow          bool
	hidden          bool
	status          string
	statusErr       bool
}

func NewModel(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = defaultTitle
	}
	vp := viewport.New(minViewportWidth, minViewportHeight)
	input := NewChatInput(minViewportWidth)
	input.SetPlaceholder("Ask the agent, !app to launch, $cmd to run")
	input.Focus()
	return &Model{
		core:     opts.Core,
		prefs:    opts.Preferences,
		logger:   logger.With(logging.Component("ui")),
		keys:     defaultKeyMap(),
		viewport: vp,
		input:    input,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		template: LookupTemplate(opts.Template),
		title:    title,
		follow:   true,
	}
}

// Run starts the program and blocks until the user quits or ctx ends.
// Core updates and signal-file commands are delivered with Program.Send.
func Run(ctx context.Context, opts Options) error {
	model := NewModel(opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := opts.Core.Subscribe(func(update session.Update) {
		p.Send(coreUpdateMsg{update: update})
	})
	defer unsubscribe()

	if path := strings.TrimSpace(opts.SignalPath); path != "" {
		watcher := signalfile.NewWatcher(path, opts.SignalInterval, func(command string) {
			p.Send(signalMsg{command: command})
		}, model.logger)
		if err := watcher.Start(ctx); err != nil {
			model.logger.Warn("signal watcher unavailable", logging.F("path", path), logging.Err(err))
		} else {
			defer watcher.Stop()
		}
	}

	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(initCoreCmd(m.core), loadPrefsCmd(m.prefs), m.input.Focus(), m.startSpinner())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	case coreUpdateMsg:
		return m, m.applyCoreUpdate(msg.update)
	case initDoneMsg:
		if msg.err != nil {
			m.setStatusError(msg.err.Error())
		} else {
			m.setStatus("connected to " + m.sessionLabel())
		}
		m.renderViewport()
		return m, nil
	case submitResultMsg:
		m.applySubmitResult(msg)
		return m, nil
	case abortResultMsg:
		if !msg.result.Success {
			m.setStatusError("abort: " + msg.result.Error)
		} else {
			m.setStatus("aborted")
		}
		return m, nil
	case resetResultMsg:
		if !msg.result.Success {
			m.setStatusError("reset: " + msg.result.Error)
		} else {
			m.setStatus("new conversation")
		}
		m.follow = true
		m.renderViewport()
		return m, nil
	case prefsLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("load preferences failed", logging.Err(msg.err))
			return m, nil
		}
		m.applyPreferences(msg.prefs)
		return m, nil
	case prefsSavedMsg:
		if msg.err != nil {
			m.logger.Warn("save preferences failed", logging.Err(msg.err))
			m.setStatusError("preferences not saved")
		}
		return m, nil
	case copyResultMsg:
		if msg.err != nil {
			m.setStatusError("copy failed: " + msg.err.Error())
		} else {
			m.setStatus("copied reply (" + msg.method.String() + ")")
		}
		return m, nil
	case signalMsg:
		return m, m.handleSignal(msg.command)
	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Abort):
		if m.core.Status() != types.SessionBusy {
			return nil
		}
		m.setStatus("aborting" + ellipsis)
		return abortCmd(m.core)
	case key.Matches(msg, m.keys.Reset):
		return m.reset()
	case key.Matches(msg, m.keys.Template):
		m.template = nextTemplate(m.template.ID)
		m.setStatus("template: " + m.template.Name)
		m.renderViewport()
		return savePrefsCmd(m.prefs, m.preferences())
	case key.Matches(msg, m.keys.ToolDetails):
		m.showToolDetails = !m.showToolDetails
		if m.showToolDetails {
			m.setStatus("tool details shown")
		} else {
			m.setStatus("tool details hidden")
		}
		m.renderViewport()
		return savePrefsCmd(m.prefs, m.preferences())
	case key.Matches(msg, m.keys.Copy):
		text := lastAssistantText(m.core.Messages())
		if text == "" {
			m.setStatus("nothing to copy")
			return nil
		}
		return copyCmd(text)
	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfPageUp()
		m.follow = m.viewport.AtBottom()
		return nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfPageDown()
		m.follow = m.viewport.AtBottom()
		return nil
	}
	if m.hidden {
		return nil
	}
	return m.input.Update(msg)
}

func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return nil
	}
	if m.core.Status() == types.SessionBusy {
		m.setStatusError("Session is busy")
		return nil
	}
	m.input.Clear()
	m.follow = true
	m.setStatus("")
	return tea.Batch(sendMessageCmd(m.core, value), m.startSpinner())
}

func (m *Model) reset() tea.Cmd {
	m.setStatus("resetting" + ellipsis)
	return tea.Batch(resetCmd(m.core), m.startSpinner())
}

func (m *Model) applySubmitResult(msg submitResultMsg) {
	result := msg.result
	if !result.Success {
		// Give the text back so it can be retried.
		if m.input.Value() == "" && result.Kind == session.InputPrompt {
			m.input.SetValue(msg.input)
		}
		m.setStatusError(result.Error)
		return
	}
	switch result.Kind {
	case session.InputApp:
		m.setStatus("launched " + result.Target)
	case session.InputShell:
		m.setStatus("running in terminal: " + result.Target)
	}
}

func (m *Model) applyCoreUpdate(update session.Update) tea.Cmd {
	switch update.Kind {
	case session.UpdateMessages, session.UpdatePart, session.UpdateReset:
		m.renderViewport()
	case session.UpdateStatus:
		if update.Status == types.SessionError {
			if errText := m.core.Err(); errText != "" {
				m.setStatusError(errText)
			}
		} else {
			m.setStatus("")
		}
		m.renderViewport()
		return m.startSpinner()
	case session.UpdateConnection:
		m.logger.Debug("connection", logging.F("status", update.Connection.String()))
	}
	return nil
}

func (m *Model) handleSignal(command string) tea.Cmd {
	switch command {
	case signalfile.CommandReset:
		return m.reset()
	case signalfile.CommandShow:
		m.hidden = false
		m.setStatus("shown")
		return m.input.Focus()
	case signalfile.CommandHide:
		m.hidden = true
		m.input.Blur()
		return nil
	case signalfile.CommandToggle:
		if m.hidden {
			return m.handleSignal(signalfile.CommandShow)
		}
		return m.handleSignal(signalfile.CommandHide)
	default:
		m.logger.Warn("unknown signal command", logging.F("command", command))
	}
	return nil
}

func (m *Model) applyPreferences(prefs *types.Preferences) {
	if prefs == nil {
		return
	}
	if strings.TrimSpace(prefs.Template) != "" {
		m.template = LookupTemplate(prefs.Template)
	}
	m.showToolDetails = prefs.ShowToolDetails
	m.renderViewport()
}

func (m *Model) preferences() types.Preferences {
	return types.Preferences{Template: m.template.ID, ShowToolDetails: m.showToolDetails}
}

func (m *Model) busy() bool {
	status := m.core.Status()
	return status == types.SessionBusy || status == types.SessionLoading
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
}

func (m *Model) setStatusError(text string) {
	m.status = text
	m.statusErr = true
}

func (m *Model) sessionLabel() string {
	if current, ok := m.core.Session(); ok {
		return current.Title
	}
	return "server"
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Resize(max(1, width-lipgloss.Width(chatInputPrompt)))
	m.viewport.Width = max(minViewportWidth, width)
	m.viewport.Height = max(minViewportHeight, height-chromeLines-m.input.Height())
	m.renderViewport()
}

func (m *Model) renderViewport() {
	_, streamingID := m.core.Streaming()
	content := renderFeed(m.core.Messages(), feedOptions{
		width:           m.viewport.Width,
		template:        m.template,
		showToolDetails: m.showToolDetails,
		isExternal:      m.core.IsExternal,
		streamingID:     streamingID,
	})
	m.viewport.SetContent(content)
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) statusText() string {
	if m.status != "" {
		return m.status
	}
	switch status := m.core.Status(); status {
	case types.SessionBusy:
		return m.spinner.View() + " working" + ellipsis
	case types.SessionLoading:
		return m.spinner.View() + " connecting" + ellipsis
	case types.SessionError:
		if errText := m.core.Err(); errText != "" {
			return errText
		}
		return status.String()
	default:
		return status.String()
	}
}

func (m *Model) View() string {
	sessionID := ""
	if current, ok := m.core.Session(); ok {
		sessionID = current.ID
	}
	header := renderHeader(m.template, m.title, sessionID, m.core.ConnectionStatus(), m.width)
	statusLine := renderStatusLine(m.width, m.keys.help(), m.statusText(), m.statusErr)
	if m.hidden {
		return lipgloss.JoinVertical(lipgloss.Left, header, renderStatusLine(m.width, "hidden", "toggle to show", false))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		renderDivider(m.width),
		m.viewport.View(),
		renderDivider(m.width),
		m.input.View(),
		statusLine,
	)
}
