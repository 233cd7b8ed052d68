package hub

import "errors"

var (
	// ErrModuleLoad indicates a module factory failed. On reload the
	// previous generation stays active.
	ErrModuleLoad = errors.New("hub: module load failed")

	// ErrUnknownModule indicates a dispatch or reload for a name that
	// was never registered.
	ErrUnknownModule = errors.New("hub: unknown module")

	// ErrDuplicateModule indicates a second registration under one name.
	ErrDuplicateModule = errors.New("hub: duplicate module")
)
