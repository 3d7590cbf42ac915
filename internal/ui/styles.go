package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/darkprince558/flip/internal/logging"
)

// Colors shared with the server's log level tags.
var (
	ColorPrimary   = logging.ColorInfo
	ColorSecondary = lipgloss.Color("#9F7AEA")
	ColorSuccess   = lipgloss.Color("#38A169")
	ColorWarn      = logging.ColorWarn
	ColorError     = logging.ColorError
	ColorSubtext   = logging.ColorDebug
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Italic(true)

	// AddrStyle highlights the server being sent to.
	AddrStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Background(lipgloss.Color("#2D3748")).
			Padding(0, 1).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	ContainerStyle = lipgloss.NewStyle().
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Width(60)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Width(12)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// ChunkValueStyle marks the chunk counter, the number that drives a flip
	// transfer.
	ChunkValueStyle = lipgloss.NewStyle().
			Foreground(ColorWarn).
			Bold(true)

	// OutputStyle renders the path of the reversed file.
	OutputStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)
)
