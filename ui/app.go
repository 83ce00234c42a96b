package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"quickroot/model"
	"quickroot/repo"
	"quickroot/runner"
	"quickroot/transfer"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeAdd
	modeDelete
	modeParam
	modeExport
	modeImportPath
	modeImportDecision
)

type App struct {
	repo    *repo.Repository
	gateway *runner.Gateway
	flow    *transfer.Flow
	now     func() time.Time

	commands []model.Command
	filtered []model.Command

	// UI state
	mode   mode
	cursor int
	width  int
	height int
	err    string
	status string

	// Search
	searchInput textinput.Model

	// Output
	output      viewport.Model
	outputLines []string
	running     bool
	runningName string
	outputChan  chan runner.OutputMsg

	// Add form
	nameInput   textinput.Model
	scriptInput textarea.Model
	formFocus   int

	// Param input
	paramNames  []string
	paramValues map[string]string
	paramIndex  int
	paramInput  textinput.Model
	pendingCmd  *model.Command

	// Import / export
	preview    viewport.Model
	pathInput  textinput.Model
	importPath string
}

func NewApp(r *repo.Repository, gateway *runner.Gateway, flow *transfer.Flow) *App {
	search := textinput.New()
	search.Placeholder = "Press / to search commands..."

	app := &App{
		repo:        r,
		gateway:     gateway,
		flow:        flow,
		now:         time.Now,
		commands:    r.List(),
		searchInput: search,
		output:      viewport.New(80, 10),
		preview:     viewport.New(80, 12),
		paramValues: make(map[string]string),
	}
	app.filtered = app.commands

	return app
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

type outputMsg runner.OutputMsg

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width - 4   // account for app padding
		a.height = msg.Height - 2 // account for app padding
		a.output.Width = a.width - 4
		a.output.Height = a.height / 3
		a.preview.Width = a.width - 4
		a.preview.Height = a.height / 2
		return a, nil

	case outputMsg:
		if msg.Done {
			a.running = false
			a.outputChan = nil
			if msg.ErrMsg != "" {
				a.outputLines = append(a.outputLines, errorStyle.Render(fmt.Sprintf("Error: %s (exit %d)", msg.ErrMsg, msg.ExitCode)))
				a.err = fmt.Sprintf("%s failed", a.runningName)
			} else {
				a.outputLines = append(a.outputLines, successStyle.Render("exit 0"))
				a.status = fmt.Sprintf("%s executed", a.runningName)
			}
			a.output.SetContent(strings.Join(a.outputLines, "\n"))
			a.output.GotoBottom()
			return a, nil
		}
		line := msg.Line
		if msg.IsErr {
			line = errorStyle.Render(line)
		}
		a.outputLines = append(a.outputLines, line)
		a.output.SetContent(strings.Join(a.outputLines, "\n"))
		a.output.GotoBottom()
		// Keep reading from channel
		return a, waitForOutput(a.outputChan)

	case tea.KeyMsg:
		a.err = ""
		a.status = ""

		switch a.mode {
		case modeNormal:
			return a.updateNormal(msg)
		case modeSearch:
			return a.updateSearch(msg)
		case modeAdd:
			return a.updateForm(msg)
		case modeDelete:
			return a.updateDelete(msg)
		case modeParam:
			return a.updateParam(msg)
		case modeExport:
			return a.updateExport(msg)
		case modeImportPath:
			return a.updateImportPath(msg)
		case modeImportDecision:
			return a.updateImportDecision(msg)
		}
	}

	return a, nil
}

func (a *App) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return a, tea.Quit

	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}

	case "down", "j":
		if a.cursor < len(a.filtered)-1 {
			a.cursor++
		}

	case "enter":
		if len(a.filtered) > 0 {
			return a.runSelectedCommand()
		}

	case "/":
		a.mode = modeSearch
		return a, a.searchInput.Focus()

	case "a":
		a.mode = modeAdd
		return a, a.initForm()

	case "d":
		if len(a.filtered) > 0 {
			a.mode = modeDelete
		}

	case "x":
		if len(a.commands) == 0 {
			a.err = "Nothing to export"
			return a, nil
		}
		content, err := a.flow.Preview()
		if err != nil {
			a.err = err.Error()
			return a, nil
		}
		a.preview.SetContent(content)
		a.preview.GotoTop()
		a.mode = modeExport

	case "i":
		if err := a.flow.BeginImport(); err != nil {
			a.err = err.Error()
			return a, nil
		}
		a.pathInput = textinput.New()
		a.pathInput.Placeholder = "Path to a quickroot JSON file"
		a.mode = modeImportPath
		return a, a.pathInput.Focus()

	case "esc":
		a.searchInput.SetValue("")
		a.filterCommands()
	}

	return a, nil
}

func (a *App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.searchInput.SetValue("")
		a.filterCommands()
		fallthrough

	case "enter", "down", "up":
		a.searchInput.Blur()
		a.mode = modeNormal
		return a, nil

	default:
		var cmd tea.Cmd
		a.searchInput, cmd = a.searchInput.Update(msg)
		a.filterCommands()
		return a, cmd
	}
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.mode = modeNormal
		return a, nil

	case "tab", "shift+tab":
		a.formFocus = 1 - a.formFocus
		return a, a.focusFormInput()

	case "ctrl+s":
		return a.submitForm(false)

	case "ctrl+n":
		return a.submitForm(true)

	case "enter":
		if a.formFocus == 0 {
			a.formFocus = 1
			return a, a.focusFormInput()
		}
	}

	var cmd tea.Cmd
	if a.formFocus == 0 {
		a.nameInput, cmd = a.nameInput.Update(msg)
	} else {
		a.scriptInput, cmd = a.scriptInput.Update(msg)
	}
	return a, cmd
}

func (a *App) updateDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if len(a.filtered) > 0 {
			cmd := a.filtered[a.cursor]
			if _, err := a.repo.Delete(cmd.ID); err != nil {
				a.err = err.Error()
			} else {
				a.status = "Deleted!"
				a.refreshCommands()
				if a.cursor >= len(a.filtered) && a.cursor > 0 {
					a.cursor--
				}
			}
		}
		a.mode = modeNormal
		return a, nil

	case "n", "N", "esc":
		a.mode = modeNormal
		return a, nil
	}

	return a, nil
}

func (a *App) updateParam(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.mode = modeNormal
		return a, nil

	case "enter":
		// Save current param value
		a.paramValues[a.paramNames[a.paramIndex]] = a.paramInput.Value()
		a.paramIndex++

		if a.paramIndex >= len(a.paramNames) {
			// All params collected, run the command
			return a.executeCommand()
		}

		// Next param
		a.paramInput.SetValue("")
		a.paramInput.Placeholder = a.paramNames[a.paramIndex]
		return a, nil

	default:
		var cmd tea.Cmd
		a.paramInput, cmd = a.paramInput.Update(msg)
		return a, cmd
	}
}

func (a *App) updateExport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.mode = modeNormal
		return a, nil

	case "enter":
		n, _ := a.flow.Export(a.now())
		a.showNotice(n)
		if n.Kind != transfer.NoticeError {
			a.mode = modeNormal
		}
		return a, nil

	default:
		var cmd tea.Cmd
		a.preview, cmd = a.preview.Update(msg)
		return a, cmd
	}
}

func (a *App) updateImportPath(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.flow.Cancel()
		a.mode = modeNormal
		return a, nil

	case "enter":
		path := expandHome(strings.TrimSpace(a.pathInput.Value()))
		if path == "" {
			return a, nil
		}
		f, err := os.Open(path)
		if err != nil {
			a.flow.Cancel()
			a.err = err.Error()
			a.mode = modeNormal
			return a, nil
		}
		defer f.Close()

		n, err := a.flow.Receive(f)
		if err != nil {
			a.err = err.Error()
			a.mode = modeNormal
			return a, nil
		}
		if n.Kind == transfer.NoticeError {
			a.showNotice(n)
			a.mode = modeNormal
			return a, nil
		}
		a.importPath = path
		a.mode = modeImportDecision
		return a, nil

	default:
		var cmd tea.Cmd
		a.pathInput, cmd = a.pathInput.Update(msg)
		return a, cmd
	}
}

// updateImportDecision waits for an explicit merge policy. Every other key is
// ignored so the list cannot change while the decision is open.
func (a *App) updateImportDecision(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var policy transfer.Policy
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "a", "A":
		policy = transfer.PolicyAppend
	case "o", "O":
		policy = transfer.PolicyOverwrite
	case "esc":
		a.flow.Cancel()
		a.mode = modeNormal
		return a, nil
	default:
		return a, nil
	}

	n, err := a.flow.Resolve(policy)
	if err != nil {
		a.err = err.Error()
	} else {
		a.showNotice(n)
	}
	a.refreshCommands()
	a.mode = modeNormal
	return a, nil
}

func (a *App) showNotice(n transfer.Notice) {
	switch n.Kind {
	case transfer.NoticeError:
		a.err = n.Text
	case transfer.NoticeSuccess:
		a.status = n.Text
	}
}

func (a *App) runSelectedCommand() (tea.Model, tea.Cmd) {
	if a.running {
		a.err = "A command is already running"
		return a, nil
	}

	cmd := a.filtered[a.cursor]
	params := runner.ExtractParams(cmd.Script)

	if len(params) > 0 {
		a.mode = modeParam
		a.paramNames = params
		a.paramValues = make(map[string]string)
		a.paramIndex = 0
		a.pendingCmd = &cmd
		a.paramInput = textinput.New()
		a.paramInput.Placeholder = params[0]
		a.paramInput.Focus()
		return a, nil
	}

	a.pendingCmd = &cmd
	a.paramValues = make(map[string]string)
	return a.executeCommand()
}

func (a *App) executeCommand() (tea.Model, tea.Cmd) {
	cmd := a.pendingCmd
	finalScript := runner.SubstituteParams(cmd.Script, a.paramValues)

	a.running = true
	a.runningName = cmd.Name
	prompt := "# "
	if a.gateway.Elevation() == runner.ElevationNone {
		prompt = "$ "
	}
	a.outputLines = []string{cmdPreviewStyle.Render(prompt + finalScript), ""}
	a.output.SetContent(strings.Join(a.outputLines, "\n"))

	a.mode = modeNormal

	// Start command in goroutine
	a.outputChan = make(chan runner.OutputMsg)
	go a.gateway.Run(context.Background(), finalScript, a.outputChan)

	return a, waitForOutput(a.outputChan)
}

func waitForOutput(ch chan runner.OutputMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return outputMsg{Done: true}
		}
		return outputMsg(msg)
	}
}

func (a *App) initForm() tea.Cmd {
	a.nameInput = textinput.New()
	a.nameInput.Placeholder = "Name (e.g., remount system)"

	a.scriptInput = textarea.New()
	a.scriptInput.Placeholder = "Script (use {{param}} for dynamic values)"
	a.scriptInput.ShowLineNumbers = false
	a.scriptInput.SetHeight(4)
	if a.width > 20 {
		a.scriptInput.SetWidth(a.width - 20)
	}

	a.formFocus = 0
	return a.focusFormInput()
}

func (a *App) focusFormInput() tea.Cmd {
	if a.formFocus == 0 {
		a.scriptInput.Blur()
		return a.nameInput.Focus()
	}
	a.nameInput.Blur()
	return a.scriptInput.Focus()
}

// submitForm saves the form. With another set the form is cleared and stays
// open for the next command.
func (a *App) submitForm(another bool) (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(a.nameInput.Value())
	script := a.scriptInput.Value()

	if name == "" {
		a.err = "Name is required"
		return a, nil
	}

	if _, err := a.repo.Add(name, script); err != nil {
		a.err = err.Error()
		return a, nil
	}
	a.status = "Added!"
	a.refreshCommands()

	if another {
		return a, a.initForm()
	}
	a.mode = modeNormal
	return a, nil
}

func (a *App) refreshCommands() {
	a.commands = a.repo.List()
	a.filterCommands()
}

func (a *App) filterCommands() {
	query := a.searchInput.Value()
	if query == "" {
		a.filtered = a.commands
	} else {
		// Build searchable strings
		var targets []string
		for _, c := range a.commands {
			targets = append(targets, c.Name+" "+c.Script)
		}

		matches := fuzzy.Find(query, targets)
		a.filtered = make([]model.Command, len(matches))
		for i, m := range matches {
			a.filtered[i] = a.commands[m.Index]
		}
	}

	if a.cursor >= len(a.filtered) {
		a.cursor = max(0, len(a.filtered)-1)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
