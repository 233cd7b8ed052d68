// Package bbs serves the BBS directory: a paginated two-column listing of
// configured boards, with dial-out over TCP handed to the bridge engine.
package bbs

import (
	"context"
	"strconv"
	"strings"

	"github.com/TheDeepLogic/RetroSerialHub/bridge"
	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
)

// menuPageLines leaves room for the pagination prompt below the listing.
const menuPageLines = 19

// Module serves the BBS directory from the hub configuration.
type Module struct{}

// New creates a BBS directory module.
func New() *Module {
	return &Module{}
}

// Factory returns a module factory for registration.
func Factory() hub.Factory {
	return func() (hub.Module, error) {
		return New(), nil
	}
}

type session struct {
	dialed string // host:port of the last dial, for reporting
}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	st := &session{}

	if err := m.renderMenu(env); err != nil {
		return nil, err
	}

	return st, nil
}

func (m *Module) HandleInput(state hub.ModuleState, line string, env *hub.Env) (bool, hub.Command, error) {
	st := state.(*session)
	boards := env.Services.Config().BBSes

	switch strings.ToUpper(line) {
	case "":
		return true, hub.Command{}, m.renderMenu(env)
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
	if n < 1 || n > len(boards) {
		if perr := env.Screen.Print("Invalid BBS number\r\nCommand: "); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}

	return m.dial(st, boards[n-1].Host, boards[n-1].Port, env)
}

// dial connects to the picked board. Connection failures surface to the
// terminal as NO CARRIER, never as a session fault.
func (m *Module) dial(st *session, host string, port int, env *hub.Env) (bool, hub.Command, error) {
	remote, err := env.Services.Dial(context.Background(), host, port)
	if err != nil {
		env.Logger.Info("bbs: dial failed", "host", host, "port", port, "error", err)
		if perr := env.Screen.Printf("\r\n*** Unable to connect to %s:%d ***\r\nNO CARRIER\r\n", host, port); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, m.renderMenu(env)
	}

	st.dialed = remote.Name()

	if err := env.Screen.Print("\r\nCONNECT\r\n"); err != nil {
		remote.Close()
		return false, hub.Command{}, err
	}

	return true, hub.Command{Action: hub.ActionStartBridge, Remote: remote}, nil
}

// BridgeDone reports the disconnect and redraws the directory.
func (m *Module) BridgeDone(state hub.ModuleState, env *hub.Env, res bridge.Result) {
	st := state.(*session)

	env.Logger.Info("bbs: call ended",
		"remote", st.dialed, "cause", res.Cause, "sent", res.AToB, "received", res.BToA)
	st.dialed = ""

	_ = env.Screen.Print("\r\nNO CARRIER\r\n")
	_ = m.renderMenu(env)
}

func (m *Module) renderMenu(env *hub.Env) error {
	boards := env.Services.Config().BBSes

	if len(boards) == 0 {
		if err := env.Screen.Print("\r\nNo BBS entries configured.\r\n"); err != nil {
			return err
		}
		if err := env.Screen.Print("\r\nEnter Q to return to the main menu.\r\n"); err != nil {
			return err
		}
		return env.Screen.Print("Command: ")
	}

	if err := env.Screen.Clear(); err != nil {
		return err
	}
	if err := env.Screen.Print("\r\nAvailable BBS Systems:\r\n\r\n"); err != nil {
		return err
	}

	names := make([]string, len(boards))
	for i, b := range boards {
		names[i] = term.Truncate(b.Name, term.DefaultMaxName)
	}

	if _, err := env.Screen.Paginate(term.TwoColumns(names, term.DefaultLeftPad), menuPageLines, env.ReadKey, false); err != nil {
		return err
	}

	return env.Screen.Print("\r\nCommand: ")
}
