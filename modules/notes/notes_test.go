package notes

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

func testEnv() (*hub.Env, *bytes.Buffer) {
	buf := &bytes.Buffer{}

	return &hub.Env{
		PortName: "TEST",
		Screen:   term.NewScreen(buf, false),
		ReadKey:  func() (byte, error) { return ' ', nil },
		Logger:   logger.GetLogger(),
	}, buf
}

func notesDir(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("body of "+n+"\r\n"), 0o644))
	}

	return dir
}

func enter(t *testing.T, m *Module, env *hub.Env) hub.ModuleState {
	t.Helper()

	st, err := m.NewSession(env)
	require.NoError(t, err)

	return st
}

func TestMenuListsNotes(t *testing.T) {
	m := New(notesDir(t, "first.txt", "second.txt"))
	env, buf := testEnv()

	enter(t, m, env)

	out := buf.String()
	assert.Contains(t, out, "Notes:")
	assert.Contains(t, out, " 1] first.txt")
	assert.Contains(t, out, " 2] second.txt")
}

func TestMenuEmpty(t *testing.T) {
	m := New(t.TempDir())
	env, buf := testEnv()

	enter(t, m, env)

	assert.Contains(t, buf.String(), "No notes available.")
	assert.Contains(t, buf.String(), "C=Create, Q=Quit")
}

func TestReadNote(t *testing.T) {
	m := New(notesDir(t, "first.txt"))
	env, buf := testEnv()
	st := enter(t, m, env)

	_, cmd, err := m.HandleInput(st, "1", env)
	require.NoError(t, err)
	assert.Equal(t, hub.ActionContinue, cmd.Action)
	assert.Contains(t, buf.String(), "body of first.txt")
}

func TestCreateNote(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)
	env, buf := testEnv()
	st := enter(t, m, env)

	_, _, err := m.HandleInput(st, "C", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Note name: ")

	_, _, err = m.HandleInput(st, "shopping", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Type END on a line by itself to save.")

	for _, l := range []string{"eggs", "bacon", "END"} {
		_, _, err = m.HandleInput(st, l, env)
		require.NoError(t, err)
	}

	assert.Contains(t, buf.String(), "Saved shopping.txt.")

	data, err := os.ReadFile(filepath.Join(dir, "shopping.txt"))
	require.NoError(t, err)
	assert.Equal(t, "eggs\r\nbacon\r\n", string(data))

	// The fresh note shows up in the redrawn menu.
	assert.Contains(t, buf.String(), " 1] shopping.txt")
}

func TestCreateNoteKeepsBlankBodyLines(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)
	env, _ := testEnv()
	st := enter(t, m, env)

	_, _, err := m.HandleInput(st, "C", env)
	require.NoError(t, err)
	_, _, err = m.HandleInput(st, "memo", env)
	require.NoError(t, err)

	for _, l := range []string{"first paragraph", "", "second paragraph", "END"} {
		_, _, err = m.HandleInput(st, l, env)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "memo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first paragraph\r\n\r\nsecond paragraph\r\n", string(data))
}

func TestDeleteNoteConfirmed(t *testing.T) {
	dir := notesDir(t, "doomed.txt", "keeper.txt")
	m := New(dir)
	env, buf := testEnv()
	st := enter(t, m, env)

	_, _, err := m.HandleInput(st, "D 1", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Delete doomed.txt? (Y/N): ")

	_, _, err = m.HandleInput(st, "Y", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Deleted doomed.txt.")

	_, statErr := os.Stat(filepath.Join(dir, "doomed.txt"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "keeper.txt"))
	assert.NoError(t, statErr)
}

func TestDeleteNoteDeclined(t *testing.T) {
	dir := notesDir(t, "safe.txt")
	m := New(dir)
	env, buf := testEnv()
	st := enter(t, m, env)

	_, _, err := m.HandleInput(st, "D1", env)
	require.NoError(t, err)

	_, _, err = m.HandleInput(st, "N", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Not deleted.")

	_, statErr := os.Stat(filepath.Join(dir, "safe.txt"))
	assert.NoError(t, statErr)
}

func TestInvalidInputs(t *testing.T) {
	m := New(notesDir(t, "only.txt"))
	env, buf := testEnv()
	st := enter(t, m, env)

	_, _, err := m.HandleInput(st, "5", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Invalid note number")

	_, _, err = m.HandleInput(st, "D x", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Invalid delete syntax")

	_, _, err = m.HandleInput(st, "hello", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Invalid command")
}

func TestQuitReturnsToMenu(t *testing.T) {
	m := New(notesDir(t))
	env, _ := testEnv()
	st := enter(t, m, env)

	_, cmd, err := m.HandleInput(st, "Q", env)
	require.NoError(t, err)
	assert.Equal(t, hub.ActionReturnToMenu, cmd.Action)
}
