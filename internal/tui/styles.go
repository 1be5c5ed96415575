package tui

import (
	"charm.land/lipgloss/v2"
)

// Accent color for the ragctl brand.
const accentTeal = "#2DD4BF"

// Styles contains all lipgloss styles for the dashboard.
type Styles struct {
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	Header      lipgloss.Style
	User        lipgloss.Style
	Assistant   lipgloss.Style
	System      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Dim         lipgloss.Style
	Selected    lipgloss.Style
	Prompt      lipgloss.Style
	Separator   lipgloss.Style
	StatusBar   lipgloss.Style
	ProgressOn  lipgloss.Style
	ProgressOff lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		TabActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentTeal)).Underline(true),
		TabInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentTeal)),
		User:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:      lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Error:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Success:     lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		Dim:         lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Selected:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		Prompt:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		ProgressOn:  lipgloss.NewStyle().Foreground(lipgloss.Color(accentTeal)),
		ProgressOff: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}
