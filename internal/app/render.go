package app

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"vibeshell/internal/types"
)

const (
	maxToolOutputLines = 12
	ellipsis           = "…"
	externalBadgeText  = "external"
	streamingHint      = "thinking" + ellipsis
)

type feedOptions struct {
	width           int
	template        Template
	showToolDetails bool
	isExternal      func(messageID string) bool
	streamingID     string
}

// renderFeed draws the whole message list. Entries are separated by a blank
// line unless the template is compact.
func renderFeed(messages []types.Message, opts feedOptions) string {
	if len(messages) == 0 {
		return chatMetaStyle.Render("No messages yet. Type a prompt, !app or $command.")
	}
	if opts.width <= 0 {
		opts.width = 80
	}
	separator := "\n\n"
	if opts.template.Compact {
		separator = "\n"
	}
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		var block string
		switch msg.Info.Role {
		case types.RoleUser:
			block = renderUserMessage(msg, opts)
		default:
			block = renderAssistantMessage(msg, opts)
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, separator)
}

func renderUserMessage(msg types.Message, opts feedOptions) string {
	text := msg.Text()
	if text == "" {
		return ""
	}
	meta := []string{}
	if label := opts.template.UserLabel; label != "" {
		meta = append(meta, label)
	}
	if opts.isExternal != nil && opts.isExternal(msg.ID()) {
		meta = append(meta, externalStyle.Render(externalBadgeText))
	}
	if ts := formatMessageTime(msg); ts != "" {
		meta = append(meta, chatMetaStyle.Render(ts))
	}
	bubble := renderBubble(opts.template.UserBubble, text, opts.width)
	if len(meta) == 0 {
		return bubble
	}
	return strings.Join(meta, " ") + "\n" + bubble
}

func renderAssistantMessage(msg types.Message, opts feedOptions) string {
	style := opts.template.AgentBubble
	inner := bubbleContentWidth(style, opts.width)
	var out []string
	if label := opts.template.AgentLabel; label != "" {
		out = append(out, chatMetaStyle.Render(label))
	}
	var text []string
	hasContent := false
	flushText := func() {
		if len(text) == 0 {
			return
		}
		rendered := renderMarkdown(strings.Join(text, "\n\n"), inner)
		out = append(out, renderBubble(style, rendered, opts.width))
		text = nil
		hasContent = true
	}
	for _, part := range msg.Parts {
		switch part.Type {
		case types.PartText:
			if strings.TrimSpace(part.Text) != "" {
				text = append(text, part.Text)
			}
		case types.PartTool:
			flushText()
			out = append(out, renderToolCard(part, opts))
			hasContent = true
		}
	}
	flushText()
	if !hasContent {
		if opts.streamingID == "" || opts.streamingID != msg.ID() {
			return ""
		}
		out = append(out, chatMetaStyle.Render(streamingHint))
	}
	return strings.Join(out, "\n")
}

func renderToolCard(part types.Part, opts feedOptions) string {
	name := strings.TrimSpace(part.Tool)
	if name == "" {
		name = "tool"
	}
	status := string(part.ToolStatus())
	if status == "" {
		status = string(types.ToolPending)
	}
	lines := []string{toolNameStyle.Render("⚙ "+name) + " " + toolStatusStyle(status).Render(status)}
	if part.State != nil {
		if title := strings.TrimSpace(part.State.Title); title != "" {
			lines = append(lines, title)
		}
		if opts.showToolDetails {
			if output := strings.TrimRight(part.State.Output, "\n"); output != "" {
				lines = append(lines, clampLines(output, maxToolOutputLines))
			}
		}
		if errText := strings.TrimSpace(part.State.Error); errText != "" {
			lines = append(lines, errorStyle.Render(errText))
		}
	}
	return renderBubble(opts.template.ToolCard, strings.Join(lines, "\n"), opts.width)
}

func renderBubble(style lipgloss.Style, content string, width int) string {
	if width <= 0 {
		return style.Render(content)
	}
	return style.Width(max(1, width-style.GetHorizontalBorderSize())).Render(content)
}

func bubbleContentWidth(style lipgloss.Style, width int) int {
	return max(1, width-style.GetHorizontalFrameSize())
}

func clampLines(text string, limit int) string {
	lines := strings.Split(text, "\n")
	if limit <= 0 || len(lines) <= limit {
		return text
	}
	hidden := len(lines) - limit
	lines = append(lines[:limit], chatMetaStyle.Render("… "+pluralLines(hidden)+" hidden"))
	return strings.Join(lines, "\n")
}

func pluralLines(n int) string {
	if n == 1 {
		return "1 line"
	}
	return strconv.Itoa(n) + " lines"
}

func formatMessageTime(msg types.Message) string {
	created := msg.CreatedAt()
	if created.IsZero() {
		return ""
	}
	return created.Local().Format("15:04")
}

// lastAssistantText returns the text of the newest assistant message that
// has any.
func lastAssistantText(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Info.Role != types.RoleAssistant {
			continue
		}
		if text := messages[i].Text(); text != "" {
			return text
		}
	}
	return ""
}

func renderHeader(tmpl Template, title, sessionID string, conn types.ConnectionStatus, width int) string {
	left := tmpl.Header.Render(title)
	if sessionID != "" {
		left += " " + chatMetaStyle.Render(sessionID)
	}
	badge := connectionBadge(conn)
	return joinEnds(left, badge, width)
}

func connectionBadge(conn types.ConnectionStatus) string {
	switch conn {
	case types.ConnectionConnected:
		return connectedStyle.Render("● " + conn.String())
	case types.ConnectionReconnecting:
		return reconnectStyle.Render("◌ " + conn.String())
	default:
		return offlineStyle.Render("○ " + conn.String())
	}
}

// renderStatusLine puts help on the left and status on the right. The plain
// status text is truncated first so the line fits.
func renderStatusLine(width int, help, status string, statusErr bool) string {
	if width <= 0 {
		return helpStyle.Render(help) + " " + statusStyle.Render(status)
	}
	status = truncateText(status, max(0, width/2))
	help = truncateText(help, max(0, width-runewidth.StringWidth(status)-1))
	style := statusStyle
	if statusErr {
		style = errorStyle
	}
	return joinEnds(helpStyle.Render(help), style.Render(status), width)
}

func joinEnds(left, right string, width int) string {
	if width <= 0 {
		return left + " " + right
	}
	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

func truncateText(text string, width int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, ellipsis)
}

func renderDivider(width int) string {
	return dividerStyle.Render(strings.Repeat("─", max(1, width)))
}
