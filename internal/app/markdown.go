package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

// maxRenderedBubbles bounds the output cache. The feed is re-rendered on
// every streamed part, so finished replies are served from here.
const maxRenderedBubbles = 256

type renderedBubbleKey struct {
	text  string
	width int
}

// bubbleMarkdown renders assistant text for agent bubbles. Term renderers
// are kept per content width and rendered output per text and width; both
// are dropped when the background changes.
type bubbleMarkdown struct {
	mu       sync.Mutex
	dark     bool
	terms    map[int]*glamour.TermRenderer
	rendered map[renderedBubbleKey]string
}

func newBubbleMarkdown(dark bool) *bubbleMarkdown {
	return &bubbleMarkdown{
		dark:     dark,
		terms:    map[int]*glamour.TermRenderer{},
		rendered: map[renderedBubbleKey]string{},
	}
}

var agentMarkdown = newBubbleMarkdown(true)

// renderMarkdown renders text for an agent bubble whose content area is
// width columns wide. Glamour failures fall back to the raw text.
func renderMarkdown(text string, width int) string {
	return agentMarkdown.Render(text, width)
}

func (m *bubbleMarkdown) Render(text string, width int) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := renderedBubbleKey{text: text, width: width}
	if out, ok := m.rendered[key]; ok {
		return out
	}
	term := m.termLocked(width)
	if term == nil {
		return text
	}
	out, err := term.Render(text)
	if err != nil {
		return text
	}
	// Glamour can overrun the wrap width on long unbroken tokens.
	out = xansi.Hardwrap(strings.TrimRight(out, "\n"), width, true)
	out = strings.TrimRight(out, "\n")
	if len(m.rendered) >= maxRenderedBubbles {
		clear(m.rendered)
	}
	m.rendered[key] = out
	return out
}

func (m *bubbleMarkdown) Dark() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dark
}

// SetDark switches the glamour base style and reports whether it changed.
func (m *bubbleMarkdown) SetDark(dark bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dark == dark {
		return false
	}
	m.dark = dark
	clear(m.terms)
	clear(m.rendered)
	return true
}

func (m *bubbleMarkdown) cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rendered)
}

func (m *bubbleMarkdown) termLocked(width int) *glamour.TermRenderer {
	if term, ok := m.terms[width]; ok {
		return term
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStyles(bubbleStyleConfig(m.dark)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	m.terms[width] = term
	return term
}

// bubbleStyleConfig strips glamour's document and code block margins; the
// bubble's lipgloss padding provides the frame.
func bubbleStyleConfig(dark bool) glamouransi.StyleConfig {
	base := styles.LightStyleConfig
	if dark {
		base = styles.DarkStyleConfig
	}
	zero := uint(0)
	base.Document.StylePrimitive.BlockPrefix = ""
	base.Document.StylePrimitive.BlockSuffix = ""
	base.Document.Margin = &zero
	base.CodeBlock.Margin = &zero
	faint := true
	quoteColor := "245"
	base.BlockQuote.StylePrimitive.Faint = &faint
	base.BlockQuote.StylePrimitive.Color = &quoteColor
	return base
}
