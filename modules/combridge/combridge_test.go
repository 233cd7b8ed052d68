package combridge

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheDeepLogic/RetroSerialHub/bridge"
	"github.com/TheDeepLogic/RetroSerialHub/config"
	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/internal/term"
	"github.com/TheDeepLogic/RetroSerialHub/link"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

type fakePort struct{}

func (f *fakePort) Read(p []byte) (int, error)  { return 0, nil }
func (f *fakePort) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakePort) Close() error                { return nil }
func (f *fakePort) Name() string                { return "COM2" }

func (f *fakePort) SetReadDeadline(t time.Time) error { return nil }

type stubServices struct {
	cfg      *config.Config
	claimErr error

	claimedDevice string
	claimedParams link.Params
	released      []string
}

func (s *stubServices) Dial(ctx context.Context, host string, port int) (link.Link, error) {
	return nil, link.ErrPortBusy
}

func (s *stubServices) ClaimPort(device string, p link.Params) (link.Link, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}

	s.claimedDevice = device
	s.claimedParams = p

	return &fakePort{}, nil
}

func (s *stubServices) ReleasePort(device string) {
	s.released = append(s.released, device)
}

func (s *stubServices) PortSurrendered(device string) bool { return false }

func (s *stubServices) Config() *config.Config { return s.cfg }

func testEnv(svc hub.Services) (*hub.Env, *bytes.Buffer) {
	buf := &bytes.Buffer{}

	return &hub.Env{
		PortName: "TEST",
		Screen:   term.NewScreen(buf, false),
		ReadKey:  func() (byte, error) { return ' ', nil },
		Services: svc,
		Logger:   logger.GetLogger(),
	}, buf
}

func hubConfig() *config.Config {
	return &config.Config{
		Ports: []config.Port{
			{Name: "APPLE2", Device: "COM3", Baud: 9600, DataBits: 8, Parity: "N", StopBits: 1},
		},
	}
}

// walk answers every prompt up to and including RTS/CTS.
func walk(t *testing.T, m *Module, st hub.ModuleState, env *hub.Env, answers []string) hub.Command {
	t.Helper()

	var last hub.Command
	for _, a := range answers {
		consumed, cmd, err := m.HandleInput(st, a, env)
		require.NoError(t, err)
		require.True(t, consumed)
		last = cmd
	}

	return last
}

func TestSetupDefaultsAndClaim(t *testing.T) {
	m := New()
	svc := &stubServices{cfg: hubConfig()}
	env, buf := testEnv(svc)

	st, err := m.NewSession(env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "COM Port Bridge setup.")
	assert.Contains(t, buf.String(), "COM Port Number (Default: 1): ")

	cmd := walk(t, m, st, env, []string{"", "", "", "", "", "", ""})

	require.Equal(t, hub.ActionStartBridge, cmd.Action)
	require.NotNil(t, cmd.Remote)
	assert.Equal(t, "COM1", svc.claimedDevice)
	assert.Equal(t, 115200, svc.claimedParams.Baud)
	assert.Equal(t, 8, svc.claimedParams.DataBits)
	assert.Equal(t, 1, svc.claimedParams.StopBits)
	assert.Equal(t, link.ParityNone, svc.claimedParams.Parity)
	assert.False(t, svc.claimedParams.XonXoff)
	assert.False(t, svc.claimedParams.RtsCts)
	assert.Contains(t, buf.String(), "Bridging to COM1 at 115200 baud.")
}

func TestSetupExplicitValues(t *testing.T) {
	m := New()
	svc := &stubServices{cfg: hubConfig()}
	env, _ := testEnv(svc)

	st, err := m.NewSession(env)
	require.NoError(t, err)

	cmd := walk(t, m, st, env, []string{"2", "2400", "7", "2", "E", "Y", "Y"})

	require.Equal(t, hub.ActionStartBridge, cmd.Action)
	assert.Equal(t, "COM2", svc.claimedDevice)
	assert.Equal(t, 2400, svc.claimedParams.Baud)
	assert.Equal(t, 7, svc.claimedParams.DataBits)
	assert.Equal(t, 2, svc.claimedParams.StopBits)
	assert.Equal(t, link.ParityEven, svc.claimedParams.Parity)
	assert.True(t, svc.claimedParams.XonXoff)
	assert.True(t, svc.claimedParams.RtsCts)
}

func TestSetupRejectsBadValues(t *testing.T) {
	m := New()
	env, buf := testEnv(&stubServices{cfg: hubConfig()})

	st, err := m.NewSession(env)
	require.NoError(t, err)

	_, cmd, err := m.HandleInput(st, "zero", env)
	require.NoError(t, err)
	assert.Equal(t, hub.ActionContinue, cmd.Action)
	assert.Contains(t, buf.String(), "Invalid port number.")

	// A valid answer still advances after a rejection.
	_, _, err = m.HandleInput(st, "4", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Baud (Default: 115200): ")

	_, _, err = m.HandleInput(st, "fast", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Invalid baud.")
}

func TestTakeoverNoteForHubOwnedPort(t *testing.T) {
	m := New()
	svc := &stubServices{cfg: hubConfig()}
	env, buf := testEnv(svc)

	st, err := m.NewSession(env)
	require.NoError(t, err)

	cmd := walk(t, m, st, env, []string{"3", "", "", "", "", "", ""})

	require.Equal(t, hub.ActionStartBridge, cmd.Action)
	assert.Contains(t, buf.String(), "Note: COM3 is currently owned by this hub. Taking over...")
}

func TestClaimFailureRestartsPrompts(t *testing.T) {
	m := New()
	svc := &stubServices{cfg: hubConfig(), claimErr: link.ErrPortBusy}
	env, buf := testEnv(svc)

	st, err := m.NewSession(env)
	require.NoError(t, err)

	cmd := walk(t, m, st, env, []string{"", "", "", "", "", "", ""})

	assert.Equal(t, hub.ActionContinue, cmd.Action)
	assert.Contains(t, buf.String(), "*** Unable to open COM1:")

	// The prompts start over from the port number.
	_, _, err = m.HandleInput(st, "2", env)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Baud (Default: 115200): ")
}

func TestBridgeDoneReleasesPort(t *testing.T) {
	m := New()
	svc := &stubServices{cfg: hubConfig()}
	env, buf := testEnv(svc)

	st, err := m.NewSession(env)
	require.NoError(t, err)

	cmd := walk(t, m, st, env, []string{"", "", "", "", "", "", ""})
	require.Equal(t, hub.ActionStartBridge, cmd.Action)

	m.BridgeDone(st, env, bridge.Result{Cause: bridge.ClosedByB})

	assert.Equal(t, []string{"COM1"}, svc.released)
	assert.Contains(t, buf.String(), "Bridge closed.")
}

func TestAbandonedReleasesClaimedPort(t *testing.T) {
	m := New()
	svc := &stubServices{cfg: hubConfig()}
	env, _ := testEnv(svc)

	st, err := m.NewSession(env)
	require.NoError(t, err)

	cmd := walk(t, m, st, env, []string{"", "", "", "", "", "", ""})
	require.Equal(t, hub.ActionStartBridge, cmd.Action)

	m.Abandoned(st, env)
	assert.Equal(t, []string{"COM1"}, svc.released)
}

func TestQuitAtAnyStage(t *testing.T) {
	m := New()
	env, _ := testEnv(&stubServices{cfg: hubConfig()})

	st, err := m.NewSession(env)
	require.NoError(t, err)

	_, _, err = m.HandleInput(st, "5", env)
	require.NoError(t, err)

	_, cmd, err := m.HandleInput(st, "Q", env)
	require.NoError(t, err)
	assert.Equal(t, hub.ActionReturnToMenu, cmd.Action)
}
