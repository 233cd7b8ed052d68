package hub

import (
	"github.com/TheDeepLogic/RetroSerialHub/link"
)

// hangupWatch wraps a session link for the duration of a bridge. The bridged
// stream is transparent, so the ATH hangup command cannot be interpreted by
// normal line dispatch; the watcher scans the terminal's outbound bytes and
// fires onHangup when a line consisting of ATH goes by. The bytes themselves
// are still relayed unmodified.
type hangupWatch struct {
	link.Link
	onHangup func()
	lineBuf  []byte
}

func watchForHangup(l link.Link, onHangup func()) link.Link {
	return &hangupWatch{Link: l, onHangup: onHangup}
}

func (w *hangupWatch) Read(p []byte) (int, error) {
	n, err := w.Link.Read(p)

	for _, b := range p[:n] {
		switch b {
		case '\r', '\n':
			if isHangupWord(w.lineBuf) {
				w.onHangup()
			}
			w.lineBuf = w.lineBuf[:0]
		default:
			// Only short lines can ever match; cap the buffer.
			if len(w.lineBuf) < 8 {
				w.lineBuf = append(w.lineBuf, b)
			}
		}
	}

	return n, err
}

func isHangupWord(buf []byte) bool {
	if len(buf) != 3 {
		return false
	}

	up := func(b byte) byte {
		if b >= 'a' && b <= 'z' {
			return b - ('a' - 'A')
		}
		return b
	}

	return up(buf[0]) == 'A' && up(buf[1]) == 'T' && up(buf[2]) == 'H'
}
