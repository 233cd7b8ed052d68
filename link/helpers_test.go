package link

import (
	"errors"
	"sync/atomic"
	"time"
)

// fakeLink is an in-memory Link used to exercise the registry without
// hardware.
type fakeLink struct {
	name   string
	closed atomic.Bool
}

func (l *fakeLink) Read(p []byte) (int, error) {
	if l.closed.Load() {
		return 0, ErrLinkClosed
	}
	return 0, nil
}

func (l *fakeLink) Write(p []byte) (int, error) {
	if l.closed.Load() {
		return 0, ErrLinkClosed
	}
	return len(p), nil
}

func (l *fakeLink) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *fakeLink) SetReadDeadline(t time.Time) error { return nil }
func (l *fakeLink) Name() string                      { return l.name }

// fakeOpener returns an Opener that succeeds for every device except those
// listed in absent, and records every opened link by device.
func fakeOpener(absent ...string) (Opener, map[string]*fakeLink) {
	missing := make(map[string]bool, len(absent))
	for _, d := range absent {
		missing[d] = true
	}

	opened := make(map[string]*fakeLink)
	opener := func(p Params) (Link, error) {
		if missing[p.Device] {
			return nil, errors.Join(ErrPortAbsent, errors.New(p.Device))
		}
		l := &fakeLink{name: p.Device}
		opened[p.Device] = l
		return l, nil
	}

	return opener, opened
}

func testParams(name, device string) Params {
	return Params{
		Name:     name,
		Device:   device,
		Baud:     9600,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
	}
}
