package link

import "errors"

var (
	// ErrPortAbsent indicates the configured device is not present on this
	// system. The port is skipped; startup continues.
	ErrPortAbsent = errors.New("link: port absent")

	// ErrInvalidParams indicates a malformed port configuration. This is
	// fatal at startup.
	ErrInvalidParams = errors.New("link: invalid port parameters")

	// ErrDuplicateDevice indicates two configured ports share one device
	// identity. This is fatal at startup.
	ErrDuplicateDevice = errors.New("link: duplicate device")

	// ErrPortBusy indicates a takeover attempt could not open the device
	// after the previous owner released it.
	ErrPortBusy = errors.New("link: port busy")

	// ErrLinkClosed indicates an operation on a closed link.
	ErrLinkClosed = errors.New("link: link closed")
)
