package cmd

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	titleColor   = lipgloss.Color("#BD93F9") // Purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	accentColor  = lipgloss.Color("#8BE9FD") // Cyan
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(headerColor).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(titleColor).
			Bold(true)

	numberStyle = lipgloss.NewStyle().
			Foreground(numberColor)

	questionStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Italic(true)

	textStyle = lipgloss.NewStyle().
			Foreground(textColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	borderStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

const (
	defaultWidth = 80
	maxWidth     = 100
)

// terminalWidth returns the usable text width for story output.
func terminalWidth() int {
	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return min(width-2, maxWidth)
}

// wrapped renders text with style, word-wrapped to the terminal.
func wrapped(style lipgloss.Style, text string) string {
	return style.Width(terminalWidth()).Render(text)
}
