package ui

import "github.com/charmbracelet/lipgloss"

var (
	primary  = lipgloss.Color("33")  // blue
	subtle   = lipgloss.Color("240") // gray
	positive = lipgloss.Color("42")  // green
	danger   = lipgloss.Color("160") // red
	caution  = lipgloss.Color("214") // amber
	body     = lipgloss.Color("252")
	faint    = lipgloss.Color("245")

	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(primary).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(faint)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle)

	// List items
	selectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	normalStyle     = lipgloss.NewStyle().Foreground(body)
	cmdPreviewStyle = lipgloss.NewStyle().Foreground(faint).Italic(true)

	// Output pane
	outputTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(subtle)
	outputStyle      = lipgloss.NewStyle().Foreground(body)

	// Help bar
	helpStyle    = lipgloss.NewStyle().Foreground(faint)
	helpKeyStyle = lipgloss.NewStyle().Foreground(primary).Bold(true)

	// Form
	labelStyle = lipgloss.NewStyle().Foreground(primary).Bold(true)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	focusedInputStyle = inputStyle.BorderForeground(primary)

	// Status messages
	errorStyle   = lipgloss.NewStyle().Foreground(danger)
	successStyle = lipgloss.NewStyle().Foreground(positive).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(caution).Bold(true)
)
