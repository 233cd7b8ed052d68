// Package wargames serves the WOPR easter egg: a fake IMSAI CP/M prompt
// with the movie's wardialer and terminal program behind it.
package wargames

import (
	"strings"

	"github.com/TheDeepLogic/RetroSerialHub/hub"
)

var gamesList = []string{
	"FALKEN'S MAZE",
	"BLACK JACK",
	"GIN RUMMY",
	"HEARTS",
	"BRIDGE",
	"CHECKERS",
	"CHESS",
	"POKER",
	"FIGHTER COMBAT",
	"GUERRILLA ENGAGEMENT",
	"DESERT WARFARE",
	"AIR-TO-GROUND ACTIONS",
	"THEATERWIDE TACTICAL WARFARE",
	"THEATERWIDE BIOTOXIC AND CHEMICAL WARFARE",
}

// Module serves the easter egg. Stateless between sessions.
type Module struct{}

// New creates a wargames module.
func New() *Module {
	return &Module{}
}

// Factory returns a module factory for registration.
func Factory() hub.Factory {
	return func() (hub.Module, error) {
		return New(), nil
	}
}

type submode int

const (
	modeCPM submode = iota
	modeDialer
	modeTerm
	modeTermSchool
	modeTermAirline
	modeTermBank
	modeTermProto
)

type session struct {
	mode submode
}

func (m *Module) NewSession(env *hub.Env) (hub.ModuleState, error) {
	st := &session{mode: modeCPM}

	if err := env.Screen.Print("IMSAI 8080 CP/M version 1.0\r\n"); err != nil {
		return nil, err
	}
	if err := env.Screen.Print("(c) 1974 Digital Research Inc.\r\n\r\n"); err != nil {
		return nil, err
	}
	if err := env.Screen.Print("A>"); err != nil {
		return nil, err
	}

	return st, nil
}

func (m *Module) HandleInput(state hub.ModuleState, line string, env *hub.Env) (bool, hub.Command, error) {
	st := state.(*session)
	cmd := strings.TrimSpace(line)

	switch st.mode {
	case modeCPM:
		return m.cpm(st, cmd, env)
	case modeDialer:
		// Any key leaves the dialer.
		st.mode = modeCPM
		if err := env.Screen.Print("\r\n"); err != nil {
			return false, hub.Command{}, err
		}
		return true, hub.Command{}, cpmBanner(env)
	case modeTerm:
		return m.term(st, cmd, env)
	case modeTermSchool:
		return m.school(st, cmd, env)
	case modeTermAirline, modeTermBank:
		st.mode = modeCPM
		if err := env.Screen.Print("\r\nACCESS DENIED\r\n"); err != nil {
			return false, hub.Command{}, err
		}
		return true, hub.Command{}, cpmBanner(env)
	case modeTermProto:
		return m.protovision(cmd, env)
	default:
		return false, hub.Command{}, nil
	}
}

func (m *Module) cpm(st *session, cmd string, env *hub.Env) (bool, hub.Command, error) {
	switch strings.ToLower(cmd) {
	case "":
		return true, hub.Command{}, env.Screen.Print("A>")
	case "q", "exit", "bye":
		return true, hub.Command{Action: hub.ActionReturnToMenu}, nil
	case "dir":
		if err := env.Screen.Print("\r\nA: DIALER   COM\r\nA: TERM     COM\r\n\r\nA>"); err != nil {
			return false, hub.Command{}, err
		}
		return true, hub.Command{}, nil
	case "dialer", "dialer.com", "a:dialer", "a:dialer.com":
		st.mode = modeDialer
		return true, hub.Command{}, enterDialer(env)
	case "term", "term.com", "a:term", "a:term.com":
		st.mode = modeTerm
		return true, hub.Command{}, enterTerm(env)
	default:
		return true, hub.Command{}, env.Screen.Print("\r\nBad command or file name\r\n\r\nA>")
	}
}

func (m *Module) term(st *session, cmd string, env *hub.Env) (bool, hub.Command, error) {
	switch cmd {
	case "1":
		st.mode = modeTermSchool
		return true, hub.Command{}, env.Screen.Print("\r\nENTER STUDENT NAME: ")
	case "2":
		st.mode = modeTermAirline
		return true, hub.Command{}, env.Screen.Print("\r\nPAN AM AIRLINES RESERVATION SYSTEM\r\nLOGIN: ")
	case "3":
		st.mode = modeTermBank
		return true, hub.Command{}, env.Screen.Print("\r\nWELCOME TO FIRST NATIONAL BANK\r\n\r\nLOGIN: ")
	case "4":
		st.mode = modeTermProto
		return true, hub.Command{}, env.Screen.Print("\r\nGREETINGS PROFESSOR FALKEN.\r\n\r\n> ")
	default:
		st.mode = modeCPM
		if err := env.Screen.Print("\r\nInvalid selection. Press any key to return to CP/M.\r\n"); err != nil {
			return false, hub.Command{}, err
		}
		return true, hub.Command{}, cpmBanner(env)
	}
}

func (m *Module) school(st *session, name string, env *hub.Env) (bool, hub.Command, error) {
	if name == "" {
		return true, hub.Command{}, env.Screen.Print("ENTER STUDENT NAME: ")
	}

	st.mode = modeCPM

	lines := []string{
		"\r\nENTER STUDENT NAME: " + name + "\r\n\r\n",
		"ASS #  COURSE TITLE                 GRADE    TEACH\r\n",
		"--------------------------------------------\r\n",
		"202   BIOLOGY 2                     D       LIGGE\r\n",
		"314   ENGLISH 11B                   C       TURMA\r\n",
		"\r\nPress any key to return to CP/M.\r\n",
	}
	for _, l := range lines {
		if err := env.Screen.Print(l); err != nil {
			return false, hub.Command{}, err
		}
	}

	return true, hub.Command{}, nil
}

func (m *Module) protovision(cmd string, env *hub.Env) (bool, hub.Command, error) {
	if strings.EqualFold(cmd, "list games") {
		if err := env.Screen.Print("\r\n"); err != nil {
			return false, hub.Command{}, err
		}
		for _, g := range gamesList {
			if err := env.Screen.Print(g + "\r\n"); err != nil {
				return false, hub.Command{}, err
			}
		}
		return true, hub.Command{}, env.Screen.Print("\r\n> ")
	}

	return true, hub.Command{}, env.Screen.Print("\r\nI'M NOT SURE I UNDERSTAND.\r\n\r\n> ")
}

func cpmBanner(env *hub.Env) error {
	if err := env.Screen.Print("IMSAI 8080 CP/M version 1.0\r\n"); err != nil {
		return err
	}
	if err := env.Screen.Print("(c) 1974 Digital Research Inc.\r\n\r\n"); err != nil {
		return err
	}

	return env.Screen.Print("A>")
}

func enterDialer(env *hub.Env) error {
	lines := []string{
		"\r\nTO SCAN FOR CARRIER TONES, PLEASE LIST\r\n",
		"DESIRED AREA CODES AND PREFIXES\r\n\r\n",
		"     AREA           AREA           AREA           AREA\r\n",
		"CODE PRFX NUMBER  CODE PRFX NUMBER  CODE PRFX NUMBER  CODE PRFX NUMBER\r\n\r\n",
		"(311) 399-0001   (311) 437        (311) 767\r\n",
		"(311) 399-0002\r\n",
		"(311) 399-0003\r\n",
		"\r\nDIALING...",
	}
	for _, l := range lines {
		if err := env.Screen.Print(l); err != nil {
			return err
		}
	}

	return nil
}

func enterTerm(env *hub.Env) error {
	lines := []string{
		"\r\nTERMINAL PROGRAM v1.0\r\n\r\n",
		"1] School System\r\n",
		"2] Airline System\r\n",
		"3] Banking System\r\n",
		"4] Protovision\r\n\r\n",
		"Select system (1-4): ",
	}
	for _, l := range lines {
		if err := env.Screen.Print(l); err != nil {
			return err
		}
	}

	return nil
}
