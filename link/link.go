package link

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Link is the minimal byte-link capability used by the hub core.
//
// Both serial ports and TCP connections satisfy it. Reads honor the deadline
// set with SetReadDeadline; a zero deadline means reads block indefinitely.
type Link interface {
	io.ReadWriteCloser

	// SetReadDeadline sets the absolute deadline for future Read calls.
	// A zero time value disables the deadline.
	SetReadDeadline(t time.Time) error

	// Name returns the link's device identity ("COM4", "/dev/ttyUSB0",
	// "bbs.example.net:6400").
	Name() string
}

// Parity is the serial parity setting.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// String returns the conventional single-letter parity code.
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	default:
		return "?"
	}
}

// ParseParity parses a single-letter parity code (N, O, E), case-insensitively.
func ParseParity(s string) (Parity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "N", "NONE", "":
		return ParityNone, nil
	case "O", "ODD":
		return ParityOdd, nil
	case "E", "EVEN":
		return ParityEven, nil
	default:
		return ParityNone, fmt.Errorf("%w: unknown parity %q", ErrInvalidParams, s)
	}
}

// Params holds the line parameters for one configured port.
//
// Params is immutable after load; one instance exists per configured
// computer and is owned by the port registry.
type Params struct {
	// Name is the logical name of the attached computer ("APPLE2", "C64").
	Name string

	// Device is the OS device identity ("COM4", "/dev/ttyUSB0").
	Device string

	Baud     int
	DataBits int // 7 or 8
	Parity   Parity
	StopBits int // 1 or 2

	// XonXoff enables software flow control on the line.
	XonXoff bool
	// RtsCts enables hardware flow control on the line.
	RtsCts bool

	// ANSI indicates the attached terminal understands ANSI escape
	// sequences (clear screen, cursor home).
	ANSI bool
}

// Validate checks the parameter combination. A failure here is a
// configuration error and halts hub startup.
func (p Params) Validate() error {
	if p.Device == "" {
		return fmt.Errorf("%w: empty device for %q", ErrInvalidParams, p.Name)
	}
	if p.Baud <= 0 {
		return fmt.Errorf("%w: baud %d for %q", ErrInvalidParams, p.Baud, p.Name)
	}
	if p.DataBits != 7 && p.DataBits != 8 {
		return fmt.Errorf("%w: data bits %d for %q, want 7 or 8", ErrInvalidParams, p.DataBits, p.Name)
	}
	if p.StopBits != 1 && p.StopBits != 2 {
		return fmt.Errorf("%w: stop bits %d for %q, want 1 or 2", ErrInvalidParams, p.StopBits, p.Name)
	}
	if p.DataBits == 7 && p.Parity == ParityNone && p.StopBits == 1 {
		// 7N1 cannot frame an 8-bit transfer protocol and is not a
		// combination any of the supported vintage systems use.
		return fmt.Errorf("%w: 7N1 is not supported for %q", ErrInvalidParams, p.Name)
	}
	return nil
}
