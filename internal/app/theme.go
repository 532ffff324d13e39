package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	chatBubblePaddingVertical   = 0
	chatBubblePaddingHorizontal = 1

	defaultTemplateID = "default"
)

var (
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	dividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	chatMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	externalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("61")).Padding(0, 1)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true).Padding(0, 1)
	reconnectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true).Padding(0, 1)
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Bold(true).Padding(0, 1)
	toolNameStyle  = lipgloss.NewStyle().Bold(true)
)

var toolStatusStyles = map[string]lipgloss.Style{
	"pending":   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true),
	"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
	"error":     lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
}

// Template is a named set of feed styles. Templates change presentation only.
type Template struct {
	ID          string
	Name        string
	Description string
	Header      lipgloss.Style
	UserBubble  lipgloss.Style
	AgentBubble lipgloss.Style
	ToolCard    lipgloss.Style
	UserLabel   string
	AgentLabel  string
	// Compact drops the blank line between feed entries.
	Compact bool
}

var templates = []Template{
	{
		ID:          "default",
		Name:        "Default",
		Description: "Bordered bubbles with labels",
		Header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		UserBubble:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Background(lipgloss.Color("236")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		AgentBubble: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		ToolCard:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("237")).Foreground(lipgloss.Color("245")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		UserLabel:   "You",
		AgentLabel:  "Agent",
	},
	{
		ID:          "minimal",
		Name:        "Minimal",
		Description: "Clean, distraction-free feed without borders",
		Header:      lipgloss.NewStyle().Bold(true),
		UserBubble:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		AgentBubble: lipgloss.NewStyle().Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		ToolCard:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		UserLabel:   ">",
		AgentLabel:  "",
		Compact:     true,
	},
	{
		ID:          "cherry",
		Name:        "Cherry",
		Description: "Warm accents with avatar labels",
		Header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		UserBubble:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("168")).Background(lipgloss.Color("53")).Foreground(lipgloss.Color("225")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		AgentBubble: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("132")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		ToolCard:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("96")).Foreground(lipgloss.Color("182")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal),
		UserLabel:   "● You",
		AgentLabel:  "✦ Assistant",
	},
}

// TemplateIDs lists the available templates in cycle order.
func TemplateIDs() []string {
	ids := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		ids = append(ids, tmpl.ID)
	}
	return ids
}

// LookupTemplate returns the template with the given id, or the default
// template when the id is unknown.
func LookupTemplate(id string) Template {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, tmpl := range templates {
		if tmpl.ID == id {
			return tmpl
		}
	}
	return templates[0]
}

func nextTemplate(id string) Template {
	current := LookupTemplate(id)
	for i, tmpl := range templates {
		if tmpl.ID == current.ID {
			return templates[(i+1)%len(templates)]
		}
	}
	return templates[0]
}

func toolStatusStyle(status string) lipgloss.Style {
	if style, ok := toolStatusStyles[status]; ok {
		return style
	}
	return statusStyle
}
