package hub

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheDeepLogic/RetroSerialHub/config"
	"github.com/TheDeepLogic/RetroSerialHub/link"
)

// echoModule is a minimal module that echoes lines back and exits on BYE.
type echoModule struct {
	entered  int
	abandons int
	mu       sync.Mutex
}

type echoState struct{ lines int }

func (m *echoModule) NewSession(env *Env) (ModuleState, error) {
	m.mu.Lock()
	m.entered++
	m.mu.Unlock()

	if err := env.Screen.Print("ECHO READY\r\n"); err != nil {
		return nil, err
	}

	return &echoState{}, nil
}

func (m *echoModule) HandleInput(state ModuleState, line string, env *Env) (bool, Command, error) {
	st := state.(*echoState)
	st.lines++

	if strings.EqualFold(line, "BYE") {
		return true, Command{Action: ActionReturnToMenu}, nil
	}
	if strings.EqualFold(line, "BOOM") {
		panic("echo module exploded")
	}

	if err := env.Screen.Printf("GOT %s\r\n", line); err != nil {
		return false, Command{}, err
	}

	return true, Command{Action: ActionContinue}, nil
}

func (m *echoModule) Abandoned(state ModuleState, env *Env) {
	m.mu.Lock()
	m.abandons++
	m.mu.Unlock()
}

func (m *echoModule) abandonCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.abandons
}

// sessionHarness drives a session over a pipe, reading terminal output in
// the background.
type sessionHarness struct {
	t        *testing.T
	session  *Session
	terminal net.Conn
	cancel   context.CancelFunc
	done     chan struct{}

	mu  sync.Mutex
	out strings.Builder
}

func newSessionHarness(t *testing.T, registry *ModuleRegistry, services Services) *sessionHarness {
	t.Helper()

	hubSide, termSide := net.Pipe()
	l := link.NewConnLink(hubSide, "TESTPORT")

	sess := NewSession("TESTPORT", "COM9", l, false, registry, services, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())

	h := &sessionHarness{
		t:        t,
		session:  sess,
		terminal: termSide,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	// Capture everything the session writes to the terminal.
	go func() {
		buf := make([]byte, 512)
		for {
			n, err := termSide.Read(buf)
			if n > 0 {
				h.mu.Lock()
				h.out.Write(buf[:n])
				h.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		sess.Run(ctx)
		close(h.done)
	}()

	t.Cleanup(func() {
		cancel()
		termSide.Close()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("session did not terminate")
		}
	})

	return h
}

func (h *sessionHarness) send(line string) {
	h.t.Helper()

	require.NoError(h.t, h.terminal.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := h.terminal.Write([]byte(line + "\r\n"))
	require.NoError(h.t, err)
}

func (h *sessionHarness) output() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.out.String()
}

// waitFor polls until the captured output contains want.
func (h *sessionHarness) waitFor(want string) {
	h.t.Helper()

	require.Eventually(h.t, func() bool {
		return strings.Contains(h.output(), want)
	}, 5*time.Second, 10*time.Millisecond, "terminal output never contained %q, got:\n%s", want, h.output())
}

func (h *sessionHarness) waitDone() {
	h.t.Helper()

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		h.t.Fatal("session did not finish")
	}
}

// stubServices satisfies Services with canned behavior for session tests.
type stubServices struct {
	surrendered bool
	released    []string
}

func (s *stubServices) Dial(ctx context.Context, host string, port int) (link.Link, error) {
	return nil, link.ErrPortBusy
}

func (s *stubServices) ClaimPort(device string, p link.Params) (link.Link, error) {
	return nil, link.ErrPortBusy
}

func (s *stubServices) ReleasePort(device string) {
	s.released = append(s.released, device)
}

func (s *stubServices) PortSurrendered(device string) bool { return s.surrendered }

func (s *stubServices) Config() *config.Config { return nil }

// scriptedLink serves canned bytes then EOF, for hangup watcher tests.
type scriptedLink struct {
	data []byte
}

func (l *scriptedLink) Read(p []byte) (int, error) {
	if len(l.data) == 0 {
		return 0, io.EOF
	}

	n := copy(p, l.data)
	l.data = l.data[n:]

	return n, nil
}

func (l *scriptedLink) Write(p []byte) (int, error) { return len(p), nil }

func (l *scriptedLink) Close() error { return nil }

func (l *scriptedLink) Name() string { return "scripted" }

func (l *scriptedLink) SetReadDeadline(t time.Time) error { return nil }
