// Package styles provides consistent styling for the stoat CLI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	Primary   = lipgloss.Color("#D97706") // Amber
	Secondary = lipgloss.Color("#0891B2") // Cyan
	Success   = lipgloss.Color("#10B981") // Emerald
	Warning   = lipgloss.Color("#F59E0B") // Light amber
	ErrorRed  = lipgloss.Color("#EF4444") // Red
	TextMuted = lipgloss.Color("#9CA3AF") // Gray
)

// Text styles.
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Code = lipgloss.NewStyle().
		Foreground(Secondary)

	successStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(ErrorRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(Warning)
)

// FormatSuccess renders a success message.
func FormatSuccess(msg string) string {
	return successStyle.Render("✓ ") + msg
}

// FormatError renders an error message.
func FormatError(msg string) string {
	return errorStyle.Render("✗ ") + msg
}

// FormatWarning renders a warning message.
func FormatWarning(msg string) string {
	return warningStyle.Render("! ") + msg
}

// DisableColors turns off all color output.
func DisableColors() {
	Title = Title.UnsetForeground()
	Subtitle = Subtitle.UnsetForeground()
	Muted = Muted.UnsetForeground()
	Code = Code.UnsetForeground()
	successStyle = successStyle.UnsetForeground()
	errorStyle = errorStyle.UnsetForeground()
	warningStyle = warningStyle.UnsetForeground()
}
