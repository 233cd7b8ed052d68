// Package textlib serves the text library: a two-column listing of the .txt
// files in the hub's text directory with paginated viewing.
package textlib

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

// Module serves one text directory.
type Module struct {
	dir string
}

// New creates a text library module over dir.
func New(dir string) *Module {
	return &Module{dir: dir}
}

// Factory returns a module factory for registration.
func Factory(dir string) hub.Factory {
	return func() (hub.Module, error) {
		return New(dir), nil
	}
}

type session struct {
	files []string
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

	switch strings.ToUpper(line) {
	case "":
		return true, hub.Command{}, m.renderMenu(st, env)
	case "Q":
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		if perr := env.Screen.Print("Invalid command\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}
	if n < 1 || n > len(st.files) {
		if perr := env.Screen.Print("Invalid file number\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}

	return true, hub.Command{}, m.show(st, st.files[n-1], env)
}

// show paginates one file and redraws the menu with a fresh listing.
func (m *Module) show(st *session, name string, env *hub.Env) error {
	lines, err := readLines(filepath.Join(m.dir, name))
	if err != nil {
		env.Logger.Warn("textlib: read failed", "file", name, "error", err)
		if perr := env.Screen.Printf("\r\n*** Error reading file: %s ***\r\n", name); perr != nil {
			return perr
		}
		return m.renderMenu(st, env)
	}

	if err := env.Screen.Clear(); err != nil {
		return err
	}
	if err := env.Screen.Print("\r\n"); err != nil {
		return err
	}
	if _, err := env.Screen.Paginate(lines, term.DefaultPageLines, env.ReadKey, true); err != nil {
		return err
	}

	if err := m.refresh(st); err != nil {
		env.Logger.Warn("textlib: listing refresh failed", "error", err)
	}

	return m.renderMenu(st, env)
}

func (m *Module) refresh(st *session) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("textlib: reading %s: %w", m.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	st.files = names

	return nil
}

func (m *Module) renderMenu(st *session, env *hub.Env) error {
	if len(st.files) == 0 {
		if err := env.Screen.Print("\r\nNo text files available.\r\n"); err != nil {
			return err
		}
		if err := env.Screen.Print("\r\nEnter Q to return to the main menu.\r\n"); err != nil {
			return err
		}
		return env.Screen.Print("Command: ")
	}

	if err := env.Screen.Print("\r\nText library:\r\n\r\n"); err != nil {
		return err
	}

	display := make([]string, len(st.files))
	for i, f := range st.files {
		display[i] = term.Truncate(f, term.DefaultMaxName)
	}
	for _, line := range term.TwoColumns(display, term.DefaultLeftPad) {
		if err := env.Screen.Line(line); err != nil {
			return err
		}
	}

	if err := env.Screen.Print("\r\nEnter the number to read the file. Enter Q to return to the main menu.\r\n"); err != nil {
		return err
	}

	return env.Screen.Print("Command: ")
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRight(l, "\r\n")
	}

	return lines, nil
}
