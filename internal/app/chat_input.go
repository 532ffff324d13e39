package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	chatInputMinHeight = 1
	chatInputMaxHeight = 6
	chatInputPrompt    = "› "
)

// ChatInput is the prompt editor. It grows with its content up to
// chatInputMaxHeight lines.
type ChatInput struct {
	input textarea.Model
}

func NewChatInput(width int) *ChatInput {
	input := textarea.New()
	input.Prompt = chatInputPrompt
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.MaxHeight = chatInputMaxHeight
	input.SetHeight(chatInputMinHeight)
	input.FocusedStyle.CursorLine = input.FocusedStyle.CursorLine.UnsetBackground()
	// Enter submits; newlines go through alt+enter.
	input.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	c := &ChatInput{input: input}
	c.Resize(width)
	return c
}

func (c *ChatInput) Resize(width int) {
	if width < 1 {
		width = 1
	}
	c.input.SetWidth(width)
	c.fitHeight()
}

func (c *ChatInput) Focus() tea.Cmd {
	return c.input.Focus()
}

func (c *ChatInput) Blur() {
	c.input.Blur()
}

func (c *ChatInput) Focused() bool {
	return c.input.Focused()
}

func (c *ChatInput) SetPlaceholder(value string) {
	c.input.Placeholder = value
}

func (c *ChatInput) SetValue(value string) {
	c.input.SetValue(value)
	c.fitHeight()
}

func (c *ChatInput) Value() string {
	return c.input.Value()
}

func (c *ChatInput) Clear() {
	c.input.Reset()
	c.fitHeight()
}

func (c *ChatInput) Height() int {
	return c.input.Height()
}

func (c *ChatInput) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	c.fitHeight()
	return cmd
}

func (c *ChatInput) View() string {
	return c.input.View()
}

func (c *ChatInput) fitHeight() {
	lines := strings.Count(c.input.Value(), "\n") + 1
	lines = max(chatInputMinHeight, min(lines, chatInputMaxHeight))
	if c.input.Height() != lines {
		c.input.SetHeight(lines)
	}
}
