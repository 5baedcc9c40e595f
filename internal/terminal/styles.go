package terminal

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cyan      = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	purple    = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	amber     = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	rose      = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	secondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	muted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	welcomeStyle   = lipgloss.NewStyle().Foreground(purple).Bold(true)
	infoStyle      = lipgloss.NewStyle().Foreground(secondary)
	reasoningStyle = lipgloss.NewStyle().Foreground(muted).Italic(true)
	headerStyle    = lipgloss.NewStyle().Foreground(muted).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(amber)
	errorStyle     = lipgloss.NewStyle().Foreground(rose).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(purple).Bold(true)
)

// paint styles text line by line so a fragment never gets padded to a
// block
func paint(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
