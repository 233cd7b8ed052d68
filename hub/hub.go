package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/TheDeepLogic/RetroSerialHub/bridge"
	"github.com/TheDeepLogic/RetroSerialHub/config"
	"github.com/TheDeepLogic/RetroSerialHub/internal/pool"
	"github.com/TheDeepLogic/RetroSerialHub/internal/task"
	"github.com/TheDeepLogic/RetroSerialHub/link"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
	"github.com/TheDeepLogic/RetroSerialHub/xfer"
)

// DefaultStopTimeout bounds how long Stop waits for session workers to
// finish before giving up.
const DefaultStopTimeout = 10 * time.Second

// Hub supervises one session worker per configured serial port. It opens
// the ports, runs sessions until they disconnect, and reopens each port
// for the next caller. It also implements [Services] for modules.
type Hub struct {
	cfg     *config.Config
	modules *ModuleRegistry
	links   *link.Registry
	logger  logger.Logger

	xferEngine   *xfer.Engine
	bridgeEngine *bridge.Engine

	taskMgr  *task.Manager
	sessions *xsync.MapOf[string, *Session] // by device
}

// NewHub assembles a hub over a validated configuration. A nil opener uses
// the real serial opener; tests inject fakes.
func NewHub(cfg *config.Config, modules *ModuleRegistry, opener link.Opener, l logger.Logger) *Hub {
	if l == nil {
		l = logger.GetLogger()
	}

	xferCfg, _ := xfer.NewConfig(xfer.WithLogger(l))

	return &Hub{
		cfg:          cfg,
		modules:      modules,
		links:        link.NewRegistry(opener, l),
		logger:       l,
		xferEngine:   xfer.NewEngine(xferCfg),
		bridgeEngine: bridge.NewEngine(l),
		sessions:     xsync.NewMapOf[string, *Session](),
	}
}

// Start opens every configured port and launches a session worker for each
// one that is present. Malformed port configuration is fatal; absent
// hardware is skipped.
func (h *Hub) Start(ctx context.Context) error {
	h.taskMgr = task.NewManager(ctx, h.logger)

	results, err := h.links.OpenAll(h.cfg.PortParams())
	if err != nil {
		return fmt.Errorf("hub: invalid port configuration: %w", err)
	}

	started := 0
	for _, port := range h.cfg.Ports {
		res, ok := results[port.Name]
		if !ok || res.Status != link.StatusOpened {
			continue
		}

		if err := h.startWorker(port, res.Link); err != nil {
			return err
		}
		started++
	}

	h.logger.Info("hub: started", "ports", started, "modules", len(h.modules.Menu()))

	return nil
}

// startWorker runs the open-session-reopen cycle for one port. The worker
// owns the device except while a COM bridge has claimed it away.
func (h *Hub) startWorker(port config.Port, first link.Link) error {
	params := port.Params()
	device := port.Device
	current := first

	fn := func() bool {
		sess := NewSession(port.Name, device, current, port.ANSI,
			h.modules, h, h.xferEngine, h.bridgeEngine, h.logger)

		h.sessions.Store(device, sess)
		sess.Run(h.taskMgr.Context())
		h.sessions.Delete(device)

		ctx := h.taskMgr.Context()
		if ctx.Err() != nil {
			return false
		}

		// If a bridge took the device over, wait until it is handed
		// back before reopening for the next caller.
		if h.links.Surrendered(device) {
			if err := h.links.AwaitRelease(ctx, device); err != nil {
				return false
			}
		} else {
			h.links.Detach(device)
		}

		l, err := h.links.Reopen(params)
		if err != nil {
			h.logger.Error("hub: port reopen failed, worker exiting",
				"name", port.Name, "device", device, "error", err)
			return false
		}
		current = l

		return true
	}

	cleanup := func() {
		h.sessions.Delete(device)
		h.links.Detach(device)
	}

	return h.taskMgr.Start("session-"+port.Name, fn, cleanup)
}

// Stop signals all session workers and waits up to timeout for them to
// terminate. A non-positive timeout uses DefaultStopTimeout.
func (h *Hub) Stop(timeout time.Duration) error {
	if h.taskMgr == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	h.taskMgr.Stop()

	done := make(chan struct{})
	go func() {
		h.taskMgr.Wait()
		close(done)
	}()

	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case <-done:
		h.logger.Info("hub: stopped")
		return nil
	case <-timer.C:
		return fmt.Errorf("hub: shutdown timed out after %s", timeout)
	}
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	return h.sessions.Size()
}

// Dial implements [Services] for BBS dial-out.
func (h *Hub) Dial(ctx context.Context, host string, port int) (link.Link, error) {
	return h.bridgeEngine.Dial(ctx, host, port, bridge.DefaultDialTimeout)
}

// ClaimPort implements [Services] for COM-bridge takeover.
func (h *Hub) ClaimPort(device string, p link.Params) (link.Link, error) {
	return h.links.Claim(device, p)
}

// ReleasePort implements [Services].
func (h *Hub) ReleasePort(device string) {
	h.links.Release(device)
}

// PortSurrendered implements [Services].
func (h *Hub) PortSurrendered(device string) bool {
	return h.links.Surrendered(device)
}

// Config implements [Services].
func (h *Hub) Config() *config.Config {
	return h.cfg
}
