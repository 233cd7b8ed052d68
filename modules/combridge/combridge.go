// Package combridge serves the COM port bridge: staged prompts collect the
// target port's line parameters, the port is claimed from the hub (taking
// it over from another session when necessary), and the raw relay is handed
// to the bridge engine.
package combridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TheDeepLogic/RetroSerialHub/bridge"
	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/link"
)

const (
	defaultPortNum  = 1
	defaultBaud     = 115200
	defaultDataBits = 8
	defaultStopBits = 1
)

// Module serves COM bridge setup. All state is per session.
type Module struct{}

// New creates a COM bridge module.
func New() *Module {
	return &Module{}
}

// Factory returns a module factory for registration.
func Factory() hub.Factory {
	return func() (hub.Module, error) {
		return New(), nil
	}
}

type stage int

const (
	stagePort stage = iota
	stageBaud
	stageDataBits
	stageStopBits
	stageParity
	stageXonXoff
	stageRtsCts
)

type session struct {
	stage  stage
	params link.Params

	// claimed is the device held across the bridge run, released in
	// BridgeDone or Abandoned.
	claimed string
}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	st := &session{}

	if err := env.Screen.Print("\r\nCOM Port Bridge setup. Press Enter to accept the default for any prompt.\r\n\r\n"); err != nil {
		return nil, err
	}
	if err := env.Screen.Printf("COM Port Number (Default: %d): ", defaultPortNum); err != nil {
		return nil, err
	}

	return st, nil
}

func (m *Module) HandleInput(state hub.ModuleState, line string, env *hub.Env) (bool, hub.Command, error) {
	st := state.(*session)
	txt := strings.TrimSpace(line)

	if strings.EqualFold(txt, "Q") {
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	}

	switch st.stage {
	case stagePort:
		return m.portStage(st, txt, env)
	case stageBaud:
		return m.baudStage(st, txt, env)
	case stageDataBits:
		return m.dataBitsStage(st, txt, env)
	case stageStopBits:
		return m.stopBitsStage(st, txt, env)
	case stageParity:
		return m.parityStage(st, txt, env)
	case stageXonXoff:
		return m.xonXoffStage(st, txt, env)
	case stageRtsCts:
		return m.rtsCtsStage(st, txt, env)
	default:
		return false, hub.Command{}, nil
	}
}

func (m *Module) portStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	num := defaultPortNum
	if txt != "" {
		n, err := strconv.Atoi(txt)
		if err != nil || n <= 0 {
			return true, hub.Command{},
				env.Screen.Printf("\r\nInvalid port number. COM Port Number (Default: %d): ", defaultPortNum)
		}
		num = n
	}

	st.params.Device = fmt.Sprintf("COM%d", num)
	st.params.Name = "bridge-" + st.params.Device
	st.stage = stageBaud

	return true, hub.Command{}, env.Screen.Printf("\r\nBaud (Default: %d): ", defaultBaud)
}

func (m *Module) baudStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	baud := defaultBaud
	if txt != "" {
		n, err := strconv.Atoi(txt)
		if err != nil || n <= 0 {
			return true, hub.Command{},
				env.Screen.Printf("\r\nInvalid baud. Baud (Default: %d): ", defaultBaud)
		}
		baud = n
	}

	st.params.Baud = baud
	st.stage = stageDataBits

	return true, hub.Command{}, env.Screen.Print("\r\nData Bits (Options: 8,7 Default: 8): ")
}

func (m *Module) dataBitsStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	bits := defaultDataBits
	if txt != "" {
		n, err := strconv.Atoi(txt)
		if err != nil || (n != 7 && n != 8) {
			return true, hub.Command{},
				env.Screen.Print("\r\nInvalid. Data Bits (Options: 8,7 Default: 8): ")
		}
		bits = n
	}

	st.params.DataBits = bits
	st.stage = stageStopBits

	return true, hub.Command{}, env.Screen.Print("\r\nStop Bits (Default: 1): ")
}

func (m *Module) stopBitsStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	bits := defaultStopBits
	if txt != "" {
		n, err := strconv.Atoi(txt)
		if err != nil || (n != 1 && n != 2) {
			return true, hub.Command{},
				env.Screen.Print("\r\nInvalid. Stop Bits (Default: 1): ")
		}
		bits = n
	}

	st.params.StopBits = bits
	st.stage = stageParity

	return true, hub.Command{}, env.Screen.Print("\r\nParity (Options: O, E, N, Default: N): ")
}

func (m *Module) parityStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	parity := link.ParityNone
	if txt != "" {
		p, err := link.ParseParity(strings.ToUpper(txt[:1]))
		if err != nil {
			return true, hub.Command{},
				env.Screen.Print("\r\nInvalid. Parity (Options: O, E, N, Default: N): ")
		}
		parity = p
	}

	st.params.Parity = parity
	st.stage = stageXonXoff

	return true, hub.Command{}, env.Screen.Print("\r\nXON/XOFF (Options: Y, N, Default: N): ")
}

func (m *Module) xonXoffStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	on, ok := yesNo(txt)
	if !ok {
		return true, hub.Command{},
			env.Screen.Print("\r\nInvalid. XON/XOFF (Options: Y, N, Default: N): ")
	}

	st.params.XonXoff = on
	st.stage = stageRtsCts

	return true, hub.Command{}, env.Screen.Print("\r\nRTS/CTS (Options: Y, N, Default: N): ")
}

// rtsCtsStage is the last prompt; it claims the port and starts the bridge.
func (m *Module) rtsCtsStage(st *session, txt string, env *hub.Env) (bool, hub.Command, error) {
	on, ok := yesNo(txt)
	if !ok {
		return true, hub.Command{},
			env.Screen.Print("\r\nInvalid. RTS/CTS (Options: Y, N, Default: N): ")
	}
	st.params.RtsCts = on

	device := st.params.Device

	if hubOwned(env, device) {
		if err := env.Screen.Printf("\r\nNote: %s is currently owned by this hub. Taking over...\r\n", device); err != nil {
			return false, hub.Command{}, err
		}
	}

	remote, err := env.Services.ClaimPort(device, st.params)
	if err != nil {
		env.Logger.Warn("combridge: claim failed", "device", device, "error", err)
		if perr := env.Screen.Printf("\r\n*** Unable to open %s: %v ***\r\n", device, err); perr != nil {
			return false, hub.Command{}, perr
		}
		st.stage = stagePort
		st.params = link.Params{}
		if perr := env.Screen.Printf("\r\nCOM Port Number (Default: %d): ", defaultPortNum); perr != nil {
			return false, hub.Command{}, perr
		}
		return true, hub.Command{}, nil
	}

	st.claimed = device

	if err := env.Screen.Printf("\r\nBridging to %s at %d baud. Type ATH to hang up.\r\n", device, st.params.Baud); err != nil {
		remote.Close()
		env.Services.ReleasePort(device)
		st.claimed = ""
		return false, hub.Command{}, err
	}

	return true, hub.Command{Action: hub.ActionStartBridge, Remote: remote}, nil
}

// BridgeDone releases the claimed port and returns to the setup prompt.
func (m *Module) BridgeDone(state hub.ModuleState, env *hub.Env, res bridge.Result) {
	st := state.(*session)

	if st.claimed != "" {
		env.Services.ReleasePort(st.claimed)
		env.Logger.Info("combridge: bridge ended",
			"device", st.claimed, "cause", res.Cause, "sent", res.AToB, "received", res.BToA)
		st.claimed = ""
	}

	_ = env.Screen.Print("\r\nBridge closed.\r\n")

	st.stage = stagePort
	st.params = link.Params{}
	_ = env.Screen.Printf("\r\nCOM Port Number (Default: %d): ", defaultPortNum)
}

// Abandoned releases the claimed port if the session left mid-bridge setup.
func (m *Module) Abandoned(state hub.ModuleState, env *hub.Env) {
	st := state.(*session)

	if st.claimed != "" {
		env.Services.ReleasePort(st.claimed)
		st.claimed = ""
	}
}

// hubOwned reports whether the device belongs to one of the hub's own
// configured ports, which means claiming it displaces a session.
func hubOwned(env *hub.Env, device string) bool {
	for _, p := range env.Services.Config().Ports {
		if strings.EqualFold(p.Device, device) {
			return true
		}
	}

	return false
}

func yesNo(txt string) (value, ok bool) {
	if txt == "" {
		return false, true
	}
	switch strings.ToUpper(txt[:1]) {
	case "Y":
		return true, true
	case "N":
		return false, true
	default:
		return false, false
	}
}
