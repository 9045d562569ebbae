// Package tui renders the terminal sign-in view for googler-web.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorPrimary   = lipgloss.Color("#4285F4") // google blue
	colorSuccess   = lipgloss.Color("#22C55E") // green
	colorWarning   = lipgloss.Color("#EAB308") // yellow
	colorError     = lipgloss.Color("#EF4444") // red
	colorInfo      = lipgloss.Color("#3B82F6") // blue
	colorMuted     = lipgloss.Color("#6B7280") // gray
	colorText      = lipgloss.Color("#CDD6F4") // light text
	colorSubtext   = lipgloss.Color("#A6ADC8") // dimmer text
	colorBorder    = lipgloss.Color("#45475A") // border
	colorHighlight = lipgloss.Color("#F5C2E7") // pink highlight
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHighlight).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	urlStyle = lipgloss.NewStyle().
			Foreground(colorInfo).
			Underline(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	subtextStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// Log level styles
var (
	logDebugStyle = lipgloss.NewStyle().Foreground(colorMuted)
	logInfoStyle  = lipgloss.NewStyle().Foreground(colorInfo)
	logWarnStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	logErrorStyle = lipgloss.NewStyle().Foreground(colorError)
)

// logLineStyle picks a style from the bracketed level in a formatted log line.
func logLineStyle(line string) lipgloss.Style {
	switch {
	case containsLevel(line, "debug"):
		return logDebugStyle
	case containsLevel(line, "warn"):
		return logWarnStyle
	case containsLevel(line, "error"), containsLevel(line, "fatal"), containsLevel(line, "panic"):
		return logErrorStyle
	default:
		return logInfoStyle
	}
}
