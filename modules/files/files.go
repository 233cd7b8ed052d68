// Package files serves the file transfer menu: a two-column listing of the
// hub's files directory, download by number under the selected protocol,
// and XMODEM upload into the same directory.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
	"github.com/TheDeepLogic/RetroSerialHub/xfer"
)

// Module serves one files directory. Safe to reload; all per-session state
// lives in the session object.
type Module struct {
	dir string
}

// New creates a files module over dir.
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
	stageUploadName
)

type session struct {
	files []string
	mode  xfer.Protocol
	stage stage

	// payload is the open file lent to the transfer engine; closed in
	// TransferDone or Abandoned.
	payload   *os.File
	uploading bool
}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	st := &session{mode: xfer.XModem}

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

	if st.stage == stageUploadName {
		return m.uploadName(st, line, env)
	}

	switch strings.ToUpper(line) {
	case "":
		return true, hub.Command{}, m.renderMenu(st, env)
	case "Q":
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	case "U":
		st.stage = stageUploadName
		return true, hub.Command{}, env.Screen.Print("\r\nEnter filename to save as: ")
	case "X":
		st.mode = xfer.XModem
		return true, hub.Command{}, m.renderMenu(st, env)
	case "Y":
		st.mode = xfer.YModem
		return true, hub.Command{}, m.renderMenu(st, env)
	case "A":
		st.mode = xfer.ASCII
		return true, hub.Command{}, m.renderMenu(st, env)
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

	return m.startDownload(st, st.files[n-1], env)
}

// startDownload opens the picked file and hands a send job to the engine.
func (m *Module) startDownload(st *session, name string, env *hub.Env) (bool, hub.Command, error) {
	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		env.Logger.Warn("files: open failed", "file", name, "error", err)
		if perr := env.Screen.Print("\r\nFile not found.\r\n"); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, m.renderMenu(st, env)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return false, hub.Command{}, err
	}

	if err := env.Screen.Printf("\r\n%s SEND: %s\r\n", st.mode, name); err != nil {
		f.Close()
		return false, hub.Command{}, err
	}
	if st.mode != xfer.ASCII {
		if err := env.Screen.Print("Start your receiver now.\r\n"); err != nil {
			f.Close()
			return false, hub.Command{}, err
		}
	}

	st.payload = f
	st.uploading = false

	job := &xfer.Job{
		Protocol:  st.mode,
		Direction: xfer.Send,
		Check:     checkFor(st.mode),
		Name:      name,
		Size:      info.Size(),
		Source:    f,
	}

	return true, hub.Command{Action: hub.ActionStartTransfer, Job: job}, nil
}

// uploadName consumes the filename prompt and starts the receive job.
func (m *Module) uploadName(st *session, line string, env *hub.Env) (bool, hub.Command, error) {
	name := strings.TrimSpace(line)
	if name == "" {
		return true, hub.Command{}, env.Screen.Print("Filename: ")
	}

	st.stage = stageMenu

	// Strip any path the caller typed; uploads land in the files dir.
	name = filepath.Base(name)

	f, err := os.Create(filepath.Join(m.dir, name))
	if err != nil {
		env.Logger.Warn("files: create failed", "file", name, "error", err)
		if perr := env.Screen.Printf("\r\n*** Unable to create %s ***\r\n", name); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, m.renderMenu(st, env)
	}

	if err := env.Screen.Printf("\r\n%s RECEIVE: saving to %s\r\n", st.mode, name); err != nil {
		f.Close()
		return false, hub.Command{}, err
	}
	if err := env.Screen.Print("Start your sender now.\r\n"); err != nil {
		f.Close()
		return false, hub.Command{}, err
	}

	st.payload = f
	st.uploading = true

	job := &xfer.Job{
		Protocol:  st.mode,
		Direction: xfer.Receive,
		Check:     checkFor(st.mode),
		Name:      name,
		Sink:      f,
	}

	return true, hub.Command{Action: hub.ActionStartTransfer, Job: job}, nil
}

// TransferDone closes the lent file, reports the outcome and redraws the
// menu with a fresh listing.
func (m *Module) TransferDone(state hub.ModuleState, env *hub.Env, res xfer.Result) {
	st := state.(*session)

	if st.payload != nil {
		st.payload.Close()
		st.payload = nil
	}

	switch res.Status {
	case xfer.StatusCompleted:
		if st.uploading {
			_ = env.Screen.Print("\r\nUpload complete.\r\n")
		} else {
			_ = env.Screen.Printf("\r\nTransfer complete, %d bytes.\r\n", res.Bytes)
		}
	case xfer.StatusAborted:
		_ = env.Screen.Printf("\r\n*** Transfer failed: %s ***\r\n", reason(res))
	default:
		return
	}

	if err := m.refresh(st); err != nil {
		env.Logger.Warn("files: listing refresh failed", "error", err)
	}
	_ = m.renderMenu(st, env)
}

// Abandoned releases the lent file when the session bails out with ATM.
func (m *Module) Abandoned(state hub.ModuleState, env *hub.Env) {
	st := state.(*session)

	if st.payload != nil {
		st.payload.Close()
		st.payload = nil
	}
}

func (m *Module) refresh(st *session) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("files: reading %s: %w", m.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	st.files = names

	return nil
}

func (m *Module) renderMenu(st *session, env *hub.Env) error {
	if err := env.Screen.Printf("\r\nFile Transfer Menu (Current mode: %s)\r\n\r\n", st.mode); err != nil {
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

	if err := env.Screen.Print("\r\nEnter number to transfer, U=Upload, X=XMODEM, Y=YMODEM, A=ASCII, Q=Quit\r\n"); err != nil {
		return err
	}

	return env.Screen.Print("Command: ")
}

func checkFor(p xfer.Protocol) xfer.CheckMode {
	if p == xfer.YModem {
		return xfer.CRC16
	}
	return xfer.Checksum8
}

func reason(res xfer.Result) string {
	if res.Err == nil {
		return "aborted"
	}
	return res.Err.Error()
}
