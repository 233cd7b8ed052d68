package xfer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

// sendASCII streams the payload unframed, normalizing bare LF to CRLF for
// the remote terminal, and finishes with a SUB end marker.
func (e *Engine) sendASCII(ctx context.Context, s Stream, job *Job, log logger.Logger) Result {
	br := bufio.NewReader(job.Source)
	bw := bufio.NewWriter(s)

	var sent int64
	var prev byte

	for {
		if ctx.Err() != nil {
			return aborted(sent, ErrCanceled)
		}

		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return aborted(sent, err)
		}

		if b == '\n' && prev != '\r' {
			if err := bw.WriteByte('\r'); err != nil {
				return linkLost(sent, err)
			}
		}
		if err := bw.WriteByte(b); err != nil {
			return linkLost(sent, err)
		}

		prev = b
		sent++
	}

	if err := bw.WriteByte(SUB); err != nil {
		return linkLost(sent, err)
	}
	if err := bw.Flush(); err != nil {
		return linkLost(sent, err)
	}

	e.metrics.addBytesSent(sent)

	return completed(sent)
}

// recvASCII copies incoming bytes until a SUB end marker arrives or the line
// goes quiet for the configured inactivity window.
func (e *Engine) recvASCII(ctx context.Context, s Stream, job *Job, log logger.Logger) Result {
	var total int64
	buf := make([]byte, 512)

	// The first byte may take a while; the sender is a human picking a
	// file on the far end.
	timeout := e.cfg.startupTimeout

	for {
		if ctx.Err() != nil {
			return aborted(total, ErrCanceled)
		}

		if err := s.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return linkLost(total, err)
		}

		n, err := s.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			done := false
			if i := bytes.IndexByte(chunk, SUB); i >= 0 {
				chunk = chunk[:i]
				done = true
			}

			if len(chunk) > 0 {
				if _, werr := job.Sink.Write(chunk); werr != nil {
					return aborted(total, werr)
				}
				total += int64(len(chunk))
				e.metrics.addBytesRecv(int64(len(chunk)))
			}

			if done {
				return completed(total)
			}

			timeout = e.cfg.asciiIdleWindow
		}

		if err != nil {
			if isTimeout(err) {
				if total == 0 {
					return aborted(0, ErrStartupTimeout)
				}
				// Inactivity gap: the stream has ended.
				return completed(total)
			}
			return linkLost(total, err)
		}
	}
}
