package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

const (
	// claimAttempts and claimBackoff bound the reopen loop during a port
	// takeover. After the previous owner closes its handle, the OS may
	// hold the device for a short moment before it can be reopened.
	claimAttempts = 6
	claimBackoff  = 250 * time.Millisecond
)

// OpenStatus classifies the outcome of opening one configured port.
type OpenStatus int

const (
	// StatusOpened means the port opened and a live Link is available.
	StatusOpened OpenStatus = iota
	// StatusAbsent means the hardware is not present; the port is skipped.
	StatusAbsent
)

// String returns a short status label for logging.
func (s OpenStatus) String() string {
	switch s {
	case StatusOpened:
		return "opened"
	case StatusAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// OpenResult is the typed per-port outcome of Registry.OpenAll.
type OpenResult struct {
	Status OpenStatus
	Link   Link  // non-nil only when Status == StatusOpened
	Err    error // non-nil only when Status == StatusAbsent
}

// Opener opens a Link for the given parameters. The default is [Open];
// tests inject fakes.
type Opener func(Params) (Link, error)

// portState tracks one live device owned by the registry.
type portState struct {
	mu          sync.Mutex
	params      Params
	link        Link
	surrendered bool
	released    chan struct{} // closed on Release after a surrender
}

// Registry holds the validated, immutable set of configured physical links
// and tracks which device each live Link belongs to.
//
// A device is owned by exactly one holder at a time. Claim transfers
// ownership to a COM-bridge takeover; Release returns it.
type Registry struct {
	opener Opener
	logger logger.Logger
	ports  *xsync.MapOf[string, *portState]
}

// NewRegistry creates a port registry. A nil opener defaults to [Open].
func NewRegistry(opener Opener, l logger.Logger) *Registry {
	if opener == nil {
		opener = Open
	}
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		opener: opener,
		logger: l,
		ports:  xsync.NewMapOf[string, *portState](),
	}
}

func deviceKey(device string) string { return strings.ToUpper(device) }

// OpenAll validates every configured port, then attempts to open each.
//
// Malformed configuration (duplicate device identity, invalid parameter
// combination) returns a non-nil error and no ports are opened: startup
// must halt. Hardware absence is never an error; the affected port is
// reported as StatusAbsent and all other ports still open normally.
func (r *Registry) OpenAll(configs []Params) (map[string]OpenResult, error) {
	seen := make(map[string]string, len(configs))

	var confErr error
	for _, p := range configs {
		if err := p.Validate(); err != nil {
			confErr = errors.Join(confErr, err)
			continue
		}

		key := deviceKey(p.Device)
		if prev, dup := seen[key]; dup {
			confErr = errors.Join(confErr,
				fmt.Errorf("%w: %s used by both %q and %q", ErrDuplicateDevice, p.Device, prev, p.Name))
			continue
		}
		seen[key] = p.Name
	}

	if confErr != nil {
		return nil, confErr
	}

	results := make(map[string]OpenResult, len(configs))
	for _, p := range configs {
		l, err := r.opener(p)
		if err != nil {
			r.logger.Info("link: port not available, skipping",
				"name", p.Name, "device", p.Device, "error", err)
			results[p.Name] = OpenResult{Status: StatusAbsent, Err: err}

			continue
		}

		r.ports.Store(deviceKey(p.Device), &portState{params: p, link: l})
		r.logger.Info("link: port opened",
			"name", p.Name, "device", p.Device, "baud", p.Baud)
		results[p.Name] = OpenResult{Status: StatusOpened, Link: l}
	}

	return results, nil
}

// Detach removes a device from the live table without a takeover, e.g.
// when its session closed the link.
func (r *Registry) Detach(device string) {
	r.ports.Delete(deviceKey(device))
}

// Claim takes over a device for a COM-bridge session.
//
// If the device is currently owned by this hub, the owner's link is closed
// first and the device is marked surrendered; the displaced session worker
// can wait on AwaitRelease before reopening. The device is then opened with
// the requested parameters, retrying briefly while the OS releases it.
func (r *Registry) Claim(device string, p Params) (Link, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := deviceKey(device)

	if state, ok := r.ports.Load(key); ok {
		state.mu.Lock()
		if state.link != nil {
			r.logger.Info("link: taking over hub-owned port", "device", device)

			state.surrendered = true
			state.released = make(chan struct{})
			_ = state.link.Close()
			state.link = nil
		}
		state.mu.Unlock()
	}

	var (
		l   Link
		err error
	)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		l, err = r.opener(p)
		if err == nil {
			return l, nil
		}

		time.Sleep(claimBackoff)
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrPortBusy, device, err)
}

// Reopen opens a device again after its surrender was released and puts it
// back in the live table. Shares the Claim retry budget since the OS may
// still hold the device briefly.
func (r *Registry) Reopen(p Params) (Link, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var (
		l   Link
		err error
	)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		l, err = r.opener(p)
		if err == nil {
			r.ports.Store(deviceKey(p.Device), &portState{params: p, link: l})
			return l, nil
		}

		time.Sleep(claimBackoff)
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrPortBusy, p.Device, err)
}

// Release returns a previously claimed device, waking any worker blocked
// in AwaitRelease.
func (r *Registry) Release(device string) {
	key := deviceKey(device)

	state, ok := r.ports.Load(key)
	if !ok {
		return
	}

	state.mu.Lock()
	if state.surrendered {
		state.surrendered = false
		close(state.released)
	}
	state.mu.Unlock()
	r.ports.Delete(key)
}

// Surrendered reports whether the device was taken over by a bridge claim.
func (r *Registry) Surrendered(device string) bool {
	state, ok := r.ports.Load(deviceKey(device))
	if !ok {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.surrendered
}

// AwaitRelease blocks until a surrendered device is released or ctx ends.
func (r *Registry) AwaitRelease(ctx context.Context, device string) error {
	state, ok := r.ports.Load(deviceKey(device))
	if !ok {
		return nil
	}

	state.mu.Lock()
	if !state.surrendered {
		state.mu.Unlock()
		return nil
	}
	released := state.released
	state.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-released:
		return nil
	}
}
