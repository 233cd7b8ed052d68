// Package notes serves the notes board: list, read, create and delete
// plain-text notes in the hub's notes directory.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
)

// endMarker saves a note under creation when typed on a line by itself.
const endMarker = "END"

// Module serves one notes directory.
type Module struct {
	dir string
}

// New creates a notes module over dir.
func New(dir string) *Module {
	return &Module{dir: dir}
}

// Factory returns a module factory for registration.
func Factory(dir string) hub.Factory {
	return func() (hub.Module, error) {
		return New(dir), nil
	}
}

type stage int

const (
	stageMenu stage = iota
	stageCreateName
	stageCreateBody
	stageDeleteConfirm
)

type session struct {
	notes []string
	stage stage

	draftName string
	draftBody []string
	doomed    string
}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	st := &session{}

	if err := m.refresh(st); err != nil {
		return nil, err
	}
	if err := m.renderMenu(st, env); err != nil {
		return nil, err
	}

	return st, nil
}

func (m *Module) HandleInput(state hub.ModuleState, line string, env *hub.Env) (bool, hub.Command, error) {
	st := state.(*session)

	switch st.stage {
	case stageCreateName:
		return m.createName(st, line, env)
	case stageCreateBody:
		return m.createBody(st, line, env)
	case stageDeleteConfirm:
		return m.deleteConfirm(st, line, env)
	}

	switch upper := strings.ToUpper(line); {
	case line == "":
		return true, hub.Command{}, m.renderMenu(st, env)
	case upper == "Q":
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	case upper == "C":
		st.stage = stageCreateName
		return true, hub.Command{}, env.Screen.Print("\r\nNote name: ")
	case strings.HasPrefix(upper, "D"):
		return m.pickDelete(st, strings.TrimSpace(line[1:]), env)
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		if perr := env.Screen.Print("Invalid command\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}
	if n < 1 || n > len(st.notes) {
		if perr := env.Screen.Print("Invalid note number\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}

	return true, hub.Command{}, m.show(st, st.notes[n-1], env)
}

func (m *Module) show(st *session, name string, env *hub.Env) error {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		env.Logger.Warn("notes: read failed", "note", name, "error", err)
		if perr := env.Screen.Printf("\r\n*** Error reading note: %s ***\r\n", name); perr != nil {
			return perr
		}
		return m.renderMenu(st, env)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	if err := env.Screen.Clear(); err != nil {
		return err
	}
	if _, err := env.Screen.Paginate(lines, term.DefaultPageLines, env.ReadKey, true); err != nil {
		return err
	}

	return m.renderMenu(st, env)
}

func (m *Module) createName(st *session, line string, env *hub.Env) (bool, hub.Command, error) {
	name := strings.TrimSpace(line)
	if name == "" {
		return true, hub.Command{}, env.Screen.Print("Note name: ")
	}
	if strings.EqualFold(name, "Q") {
		st.stage = stageMenu
		return true, hub.Command{}, m.renderMenu(st, env)
	}

	name = filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(name), ".txt") {
		name += ".txt"
	}

	st.draftName = name
	st.draftBody = st.draftBody[:0]
	st.stage = stageCreateBody

	return true, hub.Command{},
		env.Screen.Printf("\r\nEnter note text. Type %s on a line by itself to save.\r\n", endMarker)
}

func (m *Module) createBody(st *session, line string, env *hub.Env) (bool, hub.Command, error) {
	if strings.ToUpper(strings.TrimSpace(line)) == endMarker {
		return m.saveDraft(st, env)
	}

	st.draftBody = append(st.draftBody, line)

	return true, hub.Command{}, nil
}

func (m *Module) saveDraft(st *session, env *hub.Env) (bool, hub.Command, error) {
	body := strings.Join(st.draftBody, "\r\n") + "\r\n"
	path := filepath.Join(m.dir, st.draftName)

	st.stage = stageMenu

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		env.Logger.Warn("notes: save failed", "note", st.draftName, "error", err)
		if perr := env.Screen.Printf("\r\n*** Unable to save %s ***\r\n", st.draftName); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, m.renderMenu(st, env)
	}

	if err := env.Screen.Printf("\r\nSaved %s.\r\n", st.draftName); err != nil {
		return false, hub.Command{}, err
	}

	st.draftName = ""
	st.draftBody = nil

	if err := m.refresh(st); err != nil {
		env.Logger.Warn("notes: listing refresh failed", "error", err)
	}

	return true, hub.Command{}, m.renderMenu(st, env)
}

// pickDelete handles "D 3" or "D3" from the menu.
func (m *Module) pickDelete(st *session, rest string, env *hub.Env) (bool, hub.Command, error) {
	n, err := strconv.Atoi(rest)
	if err != nil {
		if perr := env.Screen.Print("Invalid delete syntax\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}
	if n < 1 || n > len(st.notes) {
		if perr := env.Screen.Print("Invalid note number\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}

	st.doomed = st.notes[n-1]
	st.stage = stageDeleteConfirm

	return true, hub.Command{}, env.Screen.Printf("\r\nDelete %s? (Y/N): ", st.doomed)
}

func (m *Module) deleteConfirm(st *session, line string, env *hub.Env) (bool, hub.Command, error) {
	st.stage = stageMenu
	name := st.doomed
	st.doomed = ""

	if !strings.EqualFold(strings.TrimSpace(line), "Y") {
		if err := env.Screen.Print("\r\nNot deleted.\r\n"); err != nil {
			return false, hub.Command{}, err
		}
		return true, hub.Command{}, m.renderMenu(st, env)
	}

	if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
		env.Logger.Warn("notes: delete failed", "note", name, "error", err)
		if perr := env.Screen.Printf("\r\n*** Unable to delete %s ***\r\n", name); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, m.renderMenu(st, env)
	}

	if err := env.Screen.Printf("\r\nDeleted %s.\r\n", name); err != nil {
		return false, hub.Command{}, err
	}

	if err := m.refresh(st); err != nil {
		env.Logger.Warn("notes: listing refresh failed", "error", err)
	}

	return true, hub.Command{}, m.renderMenu(st, env)
}

func (m *Module) refresh(st *session) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("notes: reading %s: %w", m.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	st.notes = names

	return nil
}

func (m *Module) renderMenu(st *session, env *hub.Env) error {
	if len(st.notes) == 0 {
		if err := env.Screen.Print("\r\nNo notes available.\r\n"); err != nil {
			return err
		}
		if err := env.Screen.Print("\r\nC=Create, Q=Quit\r\n"); err != nil {
			return err
		}
		return env.Screen.Print("Command: ")
	}

	if err := env.Screen.Print("\r\nNotes:\r\n\r\n"); err != nil {
		return err
	}

	display := make([]string, len(st.notes))
	for i, n := range st.notes {
		display[i] = term.Truncate(n, term.DefaultMaxName)
	}
	for _, line := range term.TwoColumns(display, term.DefaultLeftPad) {
		if err := env.Screen.Line(line); err != nil {
			return err
		}
	}

	if err := env.Screen.Print("\r\nEnter number to read, C=Create, D=Delete, Q=Quit\r\n"); err != nil {
		return err
	}

	return env.Screen.Print("Command: ")
}
