package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	user   lipgloss.Style
	system lipgloss.Style
	status lipgloss.Style
	err    lipgloss.Style
	title  lipgloss.Style
	dim    lipgloss.Style
	active lipgloss.Style
}

// newStyles binds styles to out so colors are dropped when out is not a terminal.
func newStyles(out io.Writer) styles {
	re := lipgloss.NewRenderer(out)
	return styles{
		user: re.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),
		system: re.NewStyle().
			Foreground(lipgloss.Color("252")),
		status: re.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true),
		err: re.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		title: re.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true),
		dim: re.NewStyle().
			Foreground(lipgloss.Color("8")),
		active: re.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true),
	}
}
