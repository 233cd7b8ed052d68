package link

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
)

// serialLink adapts a go.bug.st/serial port to the Link interface.
//
// The library exposes a relative read timeout rather than an absolute
// deadline, so the deadline is re-armed before every Read call.
type serialLink struct {
	port serial.Port
	name string

	mu       sync.Mutex
	deadline time.Time
	closed   bool
}

// Open opens the serial device described by p with its configured line
// parameters.
//
// A device that is not present on this system returns an error wrapping
// [ErrPortAbsent]; the caller decides whether that is fatal (it is not,
// for registry startup).
func Open(p Params) (Link, error) {
	mode := &serial.Mode{
		BaudRate: p.Baud,
		DataBits: p.DataBits,
	}

	switch p.Parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	if p.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}

	if p.RtsCts {
		// Assert RTS/DTR at open so CTS-gated vintage gear sees a live line.
		mode.InitialStatusBits = &serial.ModemOutputBits{RTS: true, DTR: true}
	}

	port, err := serial.Open(p.Device, mode)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("%w: %s", ErrPortAbsent, p.Device)
		}
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPortAbsent, p.Device)
		}

		return nil, fmt.Errorf("link: open %s: %w", p.Device, err)
	}

	return &serialLink{port: port, name: p.Device}, nil
}

func (l *serialLink) Name() string { return l.name }

func (l *serialLink) SetReadDeadline(t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLinkClosed
	}
	l.deadline = t

	return nil
}

func (l *serialLink) Read(p []byte) (int, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return 0, ErrLinkClosed
		}
		deadline := l.deadline
		l.mu.Unlock()

		if deadline.IsZero() {
			if err := l.port.SetReadTimeout(serial.NoTimeout); err != nil {
				return 0, err
			}

			n, err := l.port.Read(p)
			if n == 0 && err == nil {
				continue // spurious zero-byte wakeup
			}

			return n, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, os.ErrDeadlineExceeded
		}

		if err := l.port.SetReadTimeout(remaining); err != nil {
			return 0, err
		}

		n, err := l.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		// Zero-byte read: driver timeout expired. Loop to re-check the
		// deadline, which reports os.ErrDeadlineExceeded once passed.
	}
}

func (l *serialLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrLinkClosed
	}
	l.mu.Unlock()

	return l.port.Write(p)
}

func (l *serialLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	return l.port.Close()
}
