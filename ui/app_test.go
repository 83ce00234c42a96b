package ui

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickroot/db"
	"quickroot/repo"
	"quickroot/runner"
	"quickroot/transfer"
)

func newTestApp(t *testing.T) (*App, *repo.Repository) {
	t.Helper()
	store, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r, err := repo.New(store, nil)
	require.NoError(t, err)

	app := NewApp(r, runner.NewGateway(runner.ElevationNone, nil), transfer.New(r, t.TempDir(), nil))
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, r
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(app *App, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = app.Update(key(k))
	}
	return cmd
}

func typeText(app *App, s string) {
	for _, r := range s {
		app.Update(key(string(r)))
	}
}

// drain feeds command results back into the app until no command is left.
func drain(app *App, cmd tea.Cmd) {
	for cmd != nil {
		msg := cmd()
		if _, isOutput := msg.(outputMsg); !isOutput {
			return
		}
		_, cmd = app.Update(msg)
	}
}

func TestAddCommand(t *testing.T) {
	app, r := newTestApp(t)

	press(app, "a")
	require.Equal(t, modeAdd, app.mode)
	typeText(app, "list")
	press(app, "tab")
	typeText(app, "ls -la")
	press(app, "ctrl+s")

	assert.Equal(t, modeNormal, app.mode)
	require.Len(t, r.List(), 1)
	assert.Equal(t, "list", r.List()[0].Name)
	assert.Equal(t, "ls -la", r.List()[0].Script)
	assert.Len(t, app.commands, 1)
}

func TestAddAnotherKeepsFormOpen(t *testing.T) {
	app, r := newTestApp(t)

	press(app, "a")
	typeText(app, "one")
	press(app, "ctrl+n")
	assert.Equal(t, modeAdd, app.mode)
	assert.Empty(t, app.nameInput.Value())

	typeText(app, "two")
	press(app, "ctrl+s")

	require.Len(t, r.List(), 2)
	assert.Equal(t, "one", r.List()[0].Name)
	assert.Equal(t, "two", r.List()[1].Name)
}

func TestAddRequiresName(t *testing.T) {
	app, r := newTestApp(t)

	press(app, "a", "ctrl+s")
	assert.Equal(t, modeAdd, app.mode)
	assert.Equal(t, "Name is required", app.err)
	assert.Empty(t, r.List())
}

func TestDeleteCommand(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("first", "true")
	require.NoError(t, err)
	second, err := r.Add("second", "true")
	require.NoError(t, err)
	app.refreshCommands()

	press(app, "d")
	require.Equal(t, modeDelete, app.mode)
	press(app, "y")

	assert.Equal(t, "Deleted!", app.status)
	assert.Equal(t, []int64{second.ID}, []int64{r.List()[0].ID})
	assert.Len(t, r.List(), 1)
}

func TestRunCommandReportsExit(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("hello", "echo hi")
	require.NoError(t, err)
	app.refreshCommands()

	cmd := press(app, "enter")
	require.True(t, app.running)
	drain(app, cmd)

	assert.False(t, app.running)
	assert.Equal(t, "hello executed", app.status)
	assert.Contains(t, strings.Join(app.outputLines, "\n"), "hi")
}

func TestRunFailureSurfaced(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("broken", "exit 4")
	require.NoError(t, err)
	app.refreshCommands()

	drain(app, press(app, "enter"))

	assert.Equal(t, "broken failed", app.err)
	assert.Contains(t, strings.Join(app.outputLines, "\n"), "exit 4")
}

func TestRunWithParams(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("greet", "echo hello {{who}}")
	require.NoError(t, err)
	app.refreshCommands()

	press(app, "enter")
	require.Equal(t, modeParam, app.mode)
	typeText(app, "root")
	drain(app, press(app, "enter"))

	assert.Contains(t, strings.Join(app.outputLines, "\n"), "hello root")
}

func TestSearchFilters(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("list files", "ls -la")
	require.NoError(t, err)
	_, err = r.Add("whoami", "id")
	require.NoError(t, err)
	app.refreshCommands()

	press(app, "/")
	require.Equal(t, modeSearch, app.mode)
	typeText(app, "whoa")
	require.Len(t, app.filtered, 1)
	assert.Equal(t, "whoami", app.filtered[0].Name)

	press(app, "esc")
	assert.Equal(t, modeNormal, app.mode)
	assert.Len(t, app.filtered, 2)
}

func TestImportAppend(t *testing.T) {
	app, r := newTestApp(t)
	existing, err := r.Add("reboot", "reboot")
	require.NoError(t, err)
	app.refreshCommands()

	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":`+strconv.FormatInt(existing.ID, 10)+`,"name":"id","script":"id"}]`), 0644))

	press(app, "i")
	require.Equal(t, modeImportPath, app.mode)
	typeText(app, path)
	press(app, "enter")
	require.Equal(t, modeImportDecision, app.mode)

	// no default policy: unrelated keys do nothing
	press(app, "d", "enter", "x")
	assert.Equal(t, modeImportDecision, app.mode)
	assert.Len(t, r.List(), 1)

	press(app, "a")
	assert.Equal(t, modeNormal, app.mode)
	list := r.List()
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].ID, list[1].ID)
	assert.Equal(t, "id", list[1].Name)
	assert.Len(t, app.commands, 2)
}

func TestImportOverwrite(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("old", "true")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":7,"name":"new","script":"id"}]`), 0644))

	press(app, "i")
	typeText(app, path)
	press(app, "enter", "o")

	require.Len(t, r.List(), 1)
	assert.Equal(t, int64(7), r.List()[0].ID)
}

func TestImportInvalidJSON(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("keep", "true")
	require.NoError(t, err)
	before := r.List()

	path := filepath.Join(t.TempDir(), "junk.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0644))

	press(app, "i")
	typeText(app, path)
	press(app, "enter")

	assert.Equal(t, modeNormal, app.mode)
	assert.Contains(t, app.err, "Invalid JSON")
	assert.Equal(t, before, r.List())
	assert.Equal(t, transfer.StateIdle, app.flow.State())
}

func TestImportCancel(t *testing.T) {
	app, _ := newTestApp(t)

	press(app, "i", "esc")
	assert.Equal(t, modeNormal, app.mode)
	assert.Empty(t, app.err)
	assert.Equal(t, transfer.StateIdle, app.flow.State())
}

func TestExport(t *testing.T) {
	app, r := newTestApp(t)
	_, err := r.Add("id", "id")
	require.NoError(t, err)
	app.refreshCommands()

	press(app, "x")
	require.Equal(t, modeExport, app.mode)
	press(app, "enter")

	assert.Equal(t, modeNormal, app.mode)
	assert.Contains(t, app.status, "Exported to")
	entries, err := os.ReadDir(app.flow.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "quickroot_"))
}

func TestExportEmptyList(t *testing.T) {
	app, _ := newTestApp(t)

	press(app, "x")
	assert.Equal(t, modeNormal, app.mode)
	assert.Equal(t, "Nothing to export", app.err)
}

func TestViewRenders(t *testing.T) {
	app, r := newTestApp(t)
	assert.Contains(t, app.View(), "No commands yet")

	_, err := r.Add("remount", "mount -o remount,rw /\necho done")
	require.NoError(t, err)
	app.refreshCommands()
	assert.Contains(t, app.View(), "remount")
}
