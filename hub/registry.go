package hub

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

// Generation is one immutable published instance of a module. Sessions
// holding an old generation finish their in-flight call on it; the next
// dispatch observes the new one.
type Generation struct {
	Module Module
	Gen    uint64
}

type moduleEntry struct {
	name    string
	title   string
	factory Factory

	mu      sync.Mutex // serializes reloads
	current atomic.Pointer[Generation]
}

// MenuItem is one main-menu entry, in registration order.
type MenuItem struct {
	Name  string
	Title string
}

// ModuleRegistry maps module names to their current generation.
//
// Dispatch is lock-free; Reload builds a new instance and publishes it with
// an atomic swap. A failing reload leaves the previous generation active.
type ModuleRegistry struct {
	logger  logger.Logger
	entries *xsync.MapOf[string, *moduleEntry]

	mu    sync.Mutex // protects order
	order []*moduleEntry
}

// NewModuleRegistry creates an empty module registry.
func NewModuleRegistry(l logger.Logger) *ModuleRegistry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &ModuleRegistry{
		logger:  l,
		entries: xsync.NewMapOf[string, *moduleEntry](),
	}
}

// Register constructs the module's first generation and adds it to the main
// menu in registration order.
func (r *ModuleRegistry) Register(name, title string, factory Factory) error {
	mod, err := factory()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModuleLoad, name, err)
	}

	entry := &moduleEntry{name: name, title: title, factory: factory}
	entry.current.Store(&Generation{Module: mod, Gen: 1})

	if _, loaded := r.entries.LoadOrStore(name, entry); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}

	r.mu.Lock()
	r.order = append(r.order, entry)
	r.mu.Unlock()

	r.logger.Debug("hub: module registered", "module", name)

	return nil
}

// Dispatch returns the module's current generation.
func (r *ModuleRegistry) Dispatch(name string) (*Generation, error) {
	entry, ok := r.entries.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}

	return entry.current.Load(), nil
}

// Reload constructs a new instance of the module and atomically publishes
// it under the next generation number. On factory failure the previous
// generation stays active and the error is returned.
func (r *ModuleRegistry) Reload(name string) (*Generation, error) {
	entry, ok := r.entries.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	mod, err := entry.factory()
	if err != nil {
		r.logger.Warn("hub: module reload failed, keeping previous generation",
			"module", name, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrModuleLoad, name, err)
	}

	next := &Generation{Module: mod, Gen: entry.current.Load().Gen + 1}
	entry.current.Store(next)

	r.logger.Info("hub: module reloaded", "module", name, "generation", next.Gen)

	return next, nil
}

// Menu returns the registered modules in registration order.
func (r *ModuleRegistry) Menu() []MenuItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]MenuItem, 0, len(r.order))
	for _, entry := range r.order {
		items = append(items, MenuItem{Name: entry.name, Title: entry.title})
	}

	return items
}
