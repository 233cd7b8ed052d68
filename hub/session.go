package hub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/TheDeepLogic/RetroSerialHub/bridge"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
	"github.com/TheDeepLogic/RetroSerialHub/link"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
	"github.com/TheDeepLogic/RetroSerialHub/xfer"
)

// sessionState tracks where a session is in its lifecycle.
type sessionState int

const (
	stateAtMainMenu sessionState = iota
	stateInModule
	stateDisconnecting
)

const (
	mainMenuBanner = "\r\nWelcome to the LogicNet Bulletin Board System\r\n" +
		"v1.0, copyright (c) 2025\r\n\r\n"
	commandPrompt = "Command: "
)

// Session drives one attached computer through its command loop. It owns
// the link exclusively until a transfer or bridge borrows it, and always
// closes it on exit.
type Session struct {
	id       string
	portName string
	device   string
	link     link.Link
	ansi     bool

	registry *ModuleRegistry
	services Services
	logger   logger.Logger

	xferEngine   *xfer.Engine
	bridgeEngine *bridge.Engine

	reader *lineReader
	screen *term.Screen

	state      sessionState
	activeName string
	activeGen  *Generation
	activeMod  ModuleState
}

// NewSession wires a session for one opened link. The transfer and bridge
// engines are shared across sessions.
func NewSession(portName, device string, l link.Link, ansi bool,
	registry *ModuleRegistry, services Services,
	xe *xfer.Engine, be *bridge.Engine, lg logger.Logger) *Session {
	if lg == nil {
		lg = logger.GetLogger()
	}

	id := uuid.NewString()

	return &Session{
		id:           id,
		portName:     portName,
		device:       device,
		link:         l,
		ansi:         ansi,
		registry:     registry,
		services:     services,
		logger:       lg.With("session", id, "port", portName),
		xferEngine:   xe,
		bridgeEngine: be,
		reader:       newLineReader(l, true),
		screen:       term.NewScreen(l, ansi),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Run executes the session loop until the terminal hangs up, the link
// drops, or ctx ends. The link is closed before Run returns.
func (s *Session) Run(ctx context.Context) {
	defer s.link.Close()

	s.logger.Info("session: started")

	s.state = stateAtMainMenu
	if err := s.showMainMenu(); err != nil {
		s.logger.Warn("session: link lost", "error", err)
		return
	}

	for s.state != stateDisconnecting {
		line, err := s.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("session: shutting down")
			} else {
				s.logger.Warn("session: link lost", "error", err)
			}
			s.abandonModule()
			return
		}

		if err := s.handleLine(ctx, line); err != nil {
			s.logger.Warn("session: link lost", "error", err)
			s.abandonModule()
			return
		}

		// A surrendered port means another session took the device
		// over for a COM bridge; this session must get out of the way.
		if s.services.PortSurrendered(s.device) {
			s.logger.Info("session: port surrendered, exiting")
			s.abandonModule()
			return
		}
	}

	s.logger.Info("session: disconnected")
}

// handleLine dispatches one complete input line according to the current
// state. Special commands are handled here regardless of state.
func (s *Session) handleLine(ctx context.Context, line string) error {
	switch strings.ToUpper(line) {
	case "ATH":
		s.abandonModule()
		s.state = stateDisconnecting
		return s.screen.Print("\r\nDisconnecting...\r\n")
	case "ATM":
		s.abandonModule()
		return s.toMenu()
	case "ATR":
		if s.state == stateInModule {
			return s.reloadActive(ctx, s.env(ctx))
		}
	}

	switch s.state {
	case stateAtMainMenu:
		return s.menuSelect(ctx, line)
	case stateInModule:
		return s.moduleInput(ctx, line)
	default:
		return nil
	}
}

// menuSelect interprets a main-menu line as a 1-based item number.
func (s *Session) menuSelect(ctx context.Context, line string) error {
	items := s.registry.Menu()

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(items) {
		return s.screen.Print("Invalid command\r\n" + commandPrompt)
	}

	return s.enterModule(ctx, items[n-1].Name)
}

// enterModule activates a module's current generation and runs its entry
// screen. A panicking or failing module drops the session back to the menu.
func (s *Session) enterModule(ctx context.Context, name string) error {
	gen, err := s.registry.Dispatch(name)
	if err != nil {
		s.logger.Error("session: dispatch failed", "module", name, "error", err)
		return s.toMenu()
	}

	env := s.env(ctx)

	state, err := s.safeNewSession(gen, env)
	if err != nil {
		s.logger.Error("session: module entry failed", "module", name, "error", err)
		if perr := s.screen.Print("\r\nService unavailable.\r\n"); perr != nil {
			return perr
		}
		return s.toMenu()
	}

	s.state = stateInModule
	s.activeName = name
	s.activeGen = gen
	s.activeMod = state

	// Modules see bare Enter as an empty line, for default-accepting
	// prompts. The main menu never does.
	s.reader.AllowEmpty(true)

	s.logger.Debug("session: entered module", "module", name, "generation", gen.Gen)

	return nil
}

// moduleInput feeds one line to the active module and executes whatever
// command it returns.
func (s *Session) moduleInput(ctx context.Context, line string) error {
	env := s.env(ctx)

	consumed, cmd, err := s.safeHandleInput(line, env)
	if err != nil {
		s.logger.Error("session: module failed", "module", s.activeName, "error", err)
		s.clearModule()
		if perr := s.screen.Print("\r\nService failed.\r\n"); perr != nil {
			return perr
		}
		return s.toMenu()
	}

	if !consumed {
		return s.screen.Print("Invalid command\r\n")
	}

	switch cmd.Action {
	case ActionContinue:
		return nil

	case ActionReturnToMenu:
		s.clearModule()
		return s.toMenu()

	case ActionDisconnect:
		s.clearModule()
		s.state = stateDisconnecting
		return s.screen.Print("\r\nDisconnecting...\r\n")

	case ActionStartTransfer:
		return s.runTransfer(ctx, env, cmd.Job)

	case ActionStartBridge:
		return s.runBridge(ctx, env, cmd.Remote)

	case ActionReloadModule:
		return s.reloadActive(ctx, env)

	default:
		s.logger.Error("session: unknown module action", "module", s.activeName, "action", int(cmd.Action))
		return nil
	}
}

// runTransfer lends the link to the transfer engine and reports the
// outcome. A lost link during transfer ends the session.
func (s *Session) runTransfer(ctx context.Context, env *Env, job *xfer.Job) error {
	if job == nil {
		s.logger.Error("session: transfer requested without a job", "module", s.activeName)
		return s.toMenu()
	}

	res := s.xferEngine.Run(ctx, s.link, job)

	if res.Status == xfer.StatusLinkLost {
		s.clearModule()
		return fmt.Errorf("transfer: %w", res.Err)
	}

	if rep, ok := s.activeGen.Module.(TransferReporter); ok {
		rep.TransferDone(s.activeMod, env, res)
		return nil
	}

	switch res.Status {
	case xfer.StatusCompleted:
		if err := s.screen.Printf("\r\nTransfer complete, %d bytes.\r\n", res.Bytes); err != nil {
			return err
		}
	default:
		if err := s.screen.Print("\r\nTransfer failed.\r\n"); err != nil {
			return err
		}
	}

	s.clearModule()

	return s.toMenu()
}

// runBridge lends the link to the bridge engine until either side closes
// or the terminal sends ATH inside the bridged stream. The remote link is
// always closed here; the session link never is.
func (s *Session) runBridge(ctx context.Context, env *Env, remote link.Link) error {
	if remote == nil {
		s.logger.Error("session: bridge requested without a remote", "module", s.activeName)
		return s.toMenu()
	}
	defer remote.Close()

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	local := watchForHangup(s.link, cancel)

	res := s.bridgeEngine.Run(bctx, local, remote)

	if rep, ok := s.activeGen.Module.(BridgeReporter); ok {
		rep.BridgeDone(s.activeMod, env, res)
	} else if err := s.screen.Print("\r\nNO CARRIER\r\n"); err != nil {
		return err
	}

	if res.Cause == bridge.ClosedByA {
		// The terminal side went away mid-bridge.
		s.clearModule()
		return fmt.Errorf("bridge: %w", res.Err)
	}

	return nil
}

// reloadActive swaps in a fresh generation of the active module and
// restarts its entry screen. On reload failure the old generation stays.
func (s *Session) reloadActive(ctx context.Context, env *Env) error {
	name := s.activeName

	gen, err := s.registry.Reload(name)
	if err != nil {
		if perr := s.screen.Print("\r\nReload failed, previous version kept.\r\n"); perr != nil {
			return perr
		}
		return nil
	}

	s.clearModule()

	if err := s.screen.Printf("\r\nReloaded (generation %d).\r\n", gen.Gen); err != nil {
		return err
	}

	return s.enterModule(ctx, name)
}

// abandonModule notifies the active module that the session is leaving it
// without a clean exit, so it can release held resources.
func (s *Session) abandonModule() {
	if s.state != stateInModule || s.activeGen == nil {
		return
	}

	if ab, ok := s.activeGen.Module.(Abandoner); ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("session: module panic during abandon",
						"module", s.activeName, "panic", r)
				}
			}()
			ab.Abandoned(s.activeMod, s.env(context.Background()))
		}()
	}

	s.clearModule()
}

func (s *Session) clearModule() {
	s.activeName = ""
	s.activeGen = nil
	s.activeMod = nil
	s.state = stateAtMainMenu
	s.reader.AllowEmpty(false)
}

func (s *Session) toMenu() error {
	s.state = stateAtMainMenu
	return s.showMainMenu()
}

func (s *Session) showMainMenu() error {
	if err := s.screen.Clear(); err != nil {
		return err
	}

	if err := s.screen.Print(mainMenuBanner); err != nil {
		return err
	}
	if err := s.screen.Print("Please select a command from the options below:\r\n\r\n"); err != nil {
		return err
	}

	for i, item := range s.registry.Menu() {
		if err := s.screen.Printf("%2d] %s\r\n", i+1, item.Title); err != nil {
			return err
		}
	}

	return s.screen.Print("\r\n" + commandPrompt)
}

func (s *Session) env(ctx context.Context) *Env {
	return &Env{
		PortName: s.portName,
		ANSI:     s.ansi,
		Screen:   s.screen,
		ReadKey: func() (byte, error) {
			return s.reader.ReadKey(ctx)
		},
		Services: s.services,
		Logger:   s.logger,
	}
}

// safeNewSession calls the module's NewSession with panic containment.
func (s *Session) safeNewSession(gen *Generation, env *Env) (state ModuleState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panic: %v", r)
		}
	}()

	return gen.Module.NewSession(env)
}

// safeHandleInput calls the module's HandleInput with panic containment.
func (s *Session) safeHandleInput(line string, env *Env) (consumed bool, cmd Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			consumed, cmd = false, Command{}
			err = fmt.Errorf("module panic: %v", r)
		}
	}()

	return s.activeGen.Module.HandleInput(s.activeMod, line, env)
}
