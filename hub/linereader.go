package hub

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/TheDeepLogic/RetroSerialHub/link"
)

// readPoll bounds how long a line read stays blocked before re-checking the
// session context.
const readPoll = 250 * time.Millisecond

// lineReader assembles CR/LF-delimited command lines from a link, echoing
// input back to the terminal in command mode.
type lineReader struct {
	link link.Link
	echo bool
	buf  []byte

	// allowEmpty delivers bare terminators as empty lines instead of
	// skipping them. Modules need this for press-Enter-for-default
	// prompts; the main menu keeps it off.
	allowEmpty bool

	// sawCR is set when a line ended on a CR that was the last buffered
	// byte, so a following LF in the next chunk is not a second line.
	sawCR bool
}

func newLineReader(l link.Link, echo bool) *lineReader {
	return &lineReader{link: l, echo: echo}
}

// AllowEmpty controls whether bare terminators are delivered as empty lines.
func (r *lineReader) AllowEmpty(on bool) {
	r.allowEmpty = on
}

// ReadLine blocks until a complete line arrives or ctx ends. CR, LF and CRLF
// all terminate a line; empty lines are dropped unless AllowEmpty is on.
func (r *lineReader) ReadLine(ctx context.Context) (string, error) {
	chunk := make([]byte, 256)

	for {
		if line, ok := r.takeLine(); ok {
			return line, nil
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		if err := r.link.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			return "", err
		}

		n, err := r.link.Read(chunk)
		if n > 0 {
			if r.echo {
				_, _ = r.link.Write(chunk[:n])
			}
			r.buf = append(r.buf, chunk[:n]...)
		}
		if err != nil && !isTimeout(err) {
			return "", err
		}
	}
}

// ReadKey returns the next raw byte, for pagination prompts. Buffered bytes
// left over from line assembly are consumed first.
func (r *lineReader) ReadKey(ctx context.Context) (byte, error) {
	for {
		if len(r.buf) > 0 {
			b := r.buf[0]
			r.buf = r.buf[1:]
			if r.sawCR {
				r.sawCR = false
				if b == '\n' {
					continue
				}
			}
			return b, nil
		}

		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := r.link.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			return 0, err
		}

		var one [1]byte
		n, err := r.link.Read(one[:])
		if n == 1 {
			if r.sawCR {
				r.sawCR = false
				if one[0] == '\n' {
					continue
				}
			}
			return one[0], nil
		}
		if err != nil && !isTimeout(err) {
			return 0, err
		}
	}
}

// takeLine extracts the first complete line from the buffer, trimming it.
// CRLF counts as one terminator even when the LF arrives in a later chunk.
func (r *lineReader) takeLine() (string, bool) {
	for {
		if r.sawCR && len(r.buf) > 0 {
			if r.buf[0] == '\n' {
				r.buf = r.buf[1:]
			}
			r.sawCR = false
		}

		i := -1
		for j, b := range r.buf {
			if b == '\r' || b == '\n' {
				i = j
				break
			}
		}
		if i < 0 {
			return "", false
		}

		line := strings.TrimSpace(string(r.buf[:i]))

		rest := r.buf[i+1:]
		if r.buf[i] == '\r' {
			if len(rest) > 0 {
				if rest[0] == '\n' {
					rest = rest[1:]
				}
			} else {
				r.sawCR = true
			}
		}
		r.buf = append(r.buf[:0], rest...)

		if line != "" || r.allowEmpty {
			return line, true
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}
