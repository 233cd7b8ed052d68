package hub

import (
	"context"

	"github.com/TheDeepLogic/RetroSerialHub/bridge"
	"github.com/TheDeepLogic/RetroSerialHub/config"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
	"github.com/TheDeepLogic/RetroSerialHub/link"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
	"github.com/TheDeepLogic/RetroSerialHub/xfer"
)

// Action is what a module asks the supervisor to do after handling a line.
type Action int

const (
	// ActionContinue keeps the module active and waits for the next line.
	ActionContinue Action = iota
	// ActionReturnToMenu ends the module and shows the main menu.
	ActionReturnToMenu
	// ActionStartTransfer hands the link to the transfer engine.
	ActionStartTransfer
	// ActionStartBridge hands the link to the bridge engine.
	ActionStartBridge
	// ActionDisconnect hangs up the session.
	ActionDisconnect
	// ActionReloadModule reloads the active module under a new generation.
	ActionReloadModule
)

// Command is a module's response to one input line.
type Command struct {
	Action Action

	// Job describes the transfer for ActionStartTransfer.
	Job *xfer.Job

	// Remote is the far side for ActionStartBridge. The supervisor owns
	// it for the bridge's duration and closes it afterwards.
	Remote link.Link
}

// Services exposes hub facilities to modules. Modules must not retain the
// session link or any service result beyond the call that uses it.
type Services interface {
	// Dial connects to a remote endpoint for BBS dial-out.
	Dial(ctx context.Context, host string, port int) (link.Link, error)

	// ClaimPort takes over a serial device for a COM bridge, displacing
	// the session that owns it if necessary.
	ClaimPort(device string, p link.Params) (link.Link, error)

	// ReleasePort returns a claimed device to the hub.
	ReleasePort(device string)

	// PortSurrendered reports whether a device is currently claimed away
	// from its owning session.
	PortSurrendered(device string) bool

	// Config returns the immutable hub configuration.
	Config() *config.Config
}

// Env carries the per-session context a module needs to render output and
// request hub services.
type Env struct {
	// PortName is the logical name of the attached computer.
	PortName string

	// ANSI reports whether the terminal understands escape sequences.
	ANSI bool

	// Screen renders output to the terminal.
	Screen *term.Screen

	// ReadKey returns the next raw keypress, for pagination.
	ReadKey term.KeyReader

	// Services exposes hub facilities.
	Services Services

	// Logger is scoped to the session.
	Logger logger.Logger
}

// ModuleState is a module's per-session state, opaque to the supervisor.
type ModuleState any

// Module is the contract every content handler implements.
//
// NewSession renders the module's entry screen and returns fresh state.
// HandleInput processes one line and reports whether it consumed the input
// plus the action the supervisor should take. Modules must be safe to
// reload between invocations.
type Module interface {
	NewSession(env *Env) (ModuleState, error)
	HandleInput(state ModuleState, line string, env *Env) (consumed bool, cmd Command, err error)
}

// Abandoner is implemented by modules that hold resources needing release
// when the session abandons them with ATM.
type Abandoner interface {
	Abandoned(state ModuleState, env *Env)
}

// TransferReporter is implemented by modules that render their own report
// after a transfer the module requested has finished.
type TransferReporter interface {
	TransferDone(state ModuleState, env *Env, res xfer.Result)
}

// BridgeReporter is implemented by modules that render their own report
// after a bridge the module requested has ended.
type BridgeReporter interface {
	BridgeDone(state ModuleState, env *Env, res bridge.Result)
}

// Factory constructs one module instance. It is called at registration and
// again on every reload.
type Factory func() (Module, error)
