package ui

import (
	"fmt"
	"strings"
)

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	// Title
	b.WriteString(titleStyle.Render("quickroot"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf(" %d commands • %s", len(a.commands), a.gateway.Elevation())))
	b.WriteString("\n\n")

	// Search bar
	b.WriteString(a.searchInput.View())
	b.WriteString("\n\n")

	// Command list
	listHeight := (a.height - a.output.Height - 10) / 2
	if listHeight < 3 {
		listHeight = 3
	}

	switch a.mode {
	case modeAdd:
		b.WriteString(a.renderForm())
	case modeExport:
		b.WriteString(a.renderExport())
	default:
		b.WriteString(a.renderList(listHeight))
	}

	// Delete confirmation
	if a.mode == modeDelete && len(a.filtered) > 0 {
		cmd := a.filtered[a.cursor]
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("Delete '%s'? (y/n)", cmd.Name)))
		b.WriteString("\n")
	}

	// Param input
	if a.mode == modeParam {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("Enter value for {{%s}}: ", a.paramNames[a.paramIndex])))
		b.WriteString(a.paramInput.View())
		b.WriteString("\n")
	}

	if a.mode == modeImportPath {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Import from: "))
		b.WriteString(a.pathInput.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: load • esc: cancel"))
		b.WriteString("\n")
	}

	if a.mode == modeImportDecision {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("Import %d commands from %s", len(a.flow.Pending()), a.importPath)))
		b.WriteString("\n")
		b.WriteString(helpKeyStyle.Render("a") + " " + helpStyle.Render("append to current list") + "  ")
		b.WriteString(helpKeyStyle.Render("o") + " " + helpStyle.Render("overwrite current list") + "  ")
		b.WriteString(helpKeyStyle.Render("esc") + " " + helpStyle.Render("cancel"))
		b.WriteString("\n")
	}

	// Output pane
	b.WriteString("\n")
	outputTitle := "OUTPUT"
	if a.running {
		outputTitle = "OUTPUT (running " + a.runningName + ")"
	}
	b.WriteString(outputTitleStyle.Render(outputTitle))
	b.WriteString("\n")

	outputBox := borderStyle.Width(a.width - 4).Render(outputStyle.Render(a.output.View()))
	b.WriteString(outputBox)
	b.WriteString("\n")

	// Status/error
	if a.err != "" {
		b.WriteString(errorStyle.Render("Error: " + a.err))
		b.WriteString("\n")
	}
	if a.status != "" {
		b.WriteString(successStyle.Render(a.status))
		b.WriteString("\n")
	}

	// Help bar
	b.WriteString(a.renderHelp())

	return appStyle.Render(b.String())
}

func (a *App) renderList(height int) string {
	if len(a.filtered) == 0 {
		if len(a.commands) == 0 {
			return mutedStyle.Render("No commands yet. Press 'a' to add one or 'i' to import a JSON file.\n")
		}
		return mutedStyle.Render("No commands match.\n")
	}

	var lines []string
	start := 0
	if a.cursor >= height {
		start = a.cursor - height + 1
	}

	end := start + height
	if end > len(a.filtered) {
		end = len(a.filtered)
	}

	for i := start; i < end; i++ {
		cmd := a.filtered[i]
		prefix := "  "
		style := normalStyle
		if i == a.cursor {
			prefix = "▸ "
			style = selectedStyle
		}

		name := style.Render(prefix + cmd.Name)
		preview := cmdPreviewStyle.Render("  " + truncate(firstLine(cmd.Script), a.width-10))
		lines = append(lines, name, preview)
	}

	return strings.Join(lines, "\n") + "\n"
}

func (a *App) renderForm() string {
	var b strings.Builder

	b.WriteString(labelStyle.Render("New Command"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Name: "))
	style := inputStyle
	if a.formFocus == 0 {
		style = focusedInputStyle
	}
	b.WriteString(style.Width(a.width - 20).Render(a.nameInput.View()))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Script: "))
	b.WriteString("\n")
	style = inputStyle
	if a.formFocus == 1 {
		style = focusedInputStyle
	}
	b.WriteString(style.Render(a.scriptInput.View()))
	b.WriteString("\n\n")

	b.WriteString(helpStyle.Render("tab: next field • ctrl+s: save • ctrl+n: save & add another • esc: cancel"))
	b.WriteString("\n")

	return b.String()
}

func (a *App) renderExport() string {
	var b strings.Builder

	b.WriteString(labelStyle.Render("Export Commands"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Preview JSON, saved to " + a.flow.Dir()))
	b.WriteString("\n")
	b.WriteString(borderStyle.Width(a.width - 4).Render(a.preview.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: export • ↑/↓: scroll • esc: cancel"))
	b.WriteString("\n")

	return b.String()
}

func (a *App) renderHelp() string {
	var keys []struct{ key, desc string }
	switch a.mode {
	case modeNormal:
		keys = []struct{ key, desc string }{
			{"enter", "run"},
			{"/", "search"},
			{"a", "add"},
			{"d", "delete"},
			{"i", "import"},
			{"x", "export"},
			{"q", "quit"},
		}
	case modeSearch:
		keys = []struct{ key, desc string }{
			{"enter", "done"},
			{"esc", "clear"},
		}
	default:
		return ""
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k.key)+" "+helpStyle.Render(k.desc))
	}

	return strings.Join(parts, "  ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ⏎"
	}
	return s
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
