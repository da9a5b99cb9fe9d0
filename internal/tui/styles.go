package tui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style
	Option   lipgloss.Style
	Selected lipgloss.Style
	Pending  lipgloss.Style
	Success  lipgloss.Style
	Failure  lipgloss.Style
	Button   lipgloss.Style
	ButtonOn lipgloss.Style
}

// newStyles builds a palette for an explicitly passed theme mode; the form
// never inspects the terminal itself.
func newStyles(theme string) Styles {
	s := Styles{
		Title:    lipgloss.NewStyle().Bold(true),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Option:   lipgloss.NewStyle().PaddingLeft(2),
		Selected: lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("205")),
		Pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		Failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		Button:   lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("241")),
		ButtonOn: lipgloss.NewStyle().Padding(0, 2).Reverse(true),
	}
	if theme == "dark" {
		s.Label = s.Label.Foreground(lipgloss.Color("111"))
		s.Error = s.Error.Foreground(lipgloss.Color("203"))
		s.Pending = s.Pending.Foreground(lipgloss.Color("221"))
		s.Success = s.Success.Foreground(lipgloss.Color("84"))
		s.Failure = s.Failure.Foreground(lipgloss.Color("203"))
	}
	return s
}
