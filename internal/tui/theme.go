package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Header    lipgloss.Style
	Frame     lipgloss.Style
	Panel     lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Success   lipgloss.Style
	Alert     lipgloss.Style
	Danger    lipgloss.Style
	Input     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#00FFFF")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#00FF00")
	alert := lipgloss.Color("#FFBF00")
	danger := lipgloss.Color("#FF0055")

	return theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(secondary),
		Accent: lipgloss.NewStyle().
			Foreground(accent),
		Success: lipgloss.NewStyle().
			Foreground(success),
		Alert: lipgloss.NewStyle().
			Foreground(alert),
		Danger: lipgloss.NewStyle().
			Foreground(danger),
		Input: lipgloss.NewStyle().
			Foreground(accent),
		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Assistant: lipgloss.NewStyle().
			Bold(true).
			Foreground(success),
	}
}
