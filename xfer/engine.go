package xfer

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

// Stream is the raw byte stream a transfer runs over. Both link.Link and
// net.Conn satisfy it.
type Stream interface {
	io.ReadWriter

	// SetReadDeadline sets the absolute deadline for future Read calls.
	SetReadDeadline(t time.Time) error
}

// Engine runs transfer jobs. One Engine is shared by all sessions; each Run
// call is independent and operates only on its own stream and job.
type Engine struct {
	cfg     *Config
	logger  logger.Logger
	metrics EngineMetrics
}

// NewEngine creates a transfer engine. A nil cfg uses the defaults.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg, _ = NewConfig()
	}

	return &Engine{cfg: cfg, logger: cfg.logger}
}

// Metrics returns the engine's metric counters.
func (e *Engine) Metrics() *EngineMetrics { return &e.metrics }

// Run executes one transfer job over the stream and blocks until the job
// reaches a terminal outcome. The caller must own the stream exclusively for
// the duration of the call.
func (e *Engine) Run(ctx context.Context, s Stream, job *Job) Result {
	if err := job.validate(); err != nil {
		return aborted(0, err)
	}

	log := e.logger.With(
		"job", uuid.NewString(),
		"protocol", job.Protocol.String(),
		"direction", job.Direction.String(),
	)
	log.Info("xfer: transfer started", "name", job.Name)

	var res Result
	switch job.Protocol {
	case XModem:
		if job.Direction == Send {
			res = e.sendXModem(ctx, s, job, log)
		} else {
			res = e.recvXModem(ctx, s, job, log)
		}
	case YModem:
		if job.Direction == Send {
			res = e.sendYModem(ctx, s, job, log)
		} else {
			res = e.recvYModem(ctx, s, job, log)
		}
	case ASCII:
		if job.Direction == Send {
			res = e.sendASCII(ctx, s, job, log)
		} else {
			res = e.recvASCII(ctx, s, job, log)
		}
	}

	e.metrics.recordResult(res)
	switch res.Status {
	case StatusCompleted:
		log.Info("xfer: transfer completed", "bytes", res.Bytes)
	case StatusAborted:
		log.Warn("xfer: transfer aborted", "bytes", res.Bytes, "error", res.Err)
	case StatusLinkLost:
		log.Warn("xfer: link lost mid-transfer", "bytes", res.Bytes, "error", res.Err)
	}

	return res
}

// classify maps an engine error to its terminal result. Protocol-level
// failures abort; anything else means the stream itself failed.
func classify(bytes int64, err error) Result {
	switch {
	case errors.Is(err, ErrCanceled),
		errors.Is(err, ErrMaxRetries),
		errors.Is(err, ErrStartupTimeout),
		errors.Is(err, ErrBlockTimeout),
		errors.Is(err, ErrChecksumMismatch):
		return aborted(bytes, err)
	default:
		return linkLost(bytes, err)
	}
}

// isTimeout reports whether err is a read-deadline expiry rather than a
// stream fault.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}

// readByte reads a single byte within timeout.
func readByte(s Stream, timeout time.Duration) (byte, error) {
	if err := s.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	var buf [1]byte
	for {
		n, err := s.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// readFull fills buf within a single deadline covering the whole read.
func readFull(s Stream, buf []byte, timeout time.Duration) error {
	if err := s.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	_, err := io.ReadFull(s, buf)

	return err
}

// sendCancel emits the out-of-band cancel sequence. Errors are ignored; the
// transfer is already over.
func sendCancel(s Stream) {
	_, _ = s.Write([]byte{CAN, CAN})
}

// awaitPoll waits for the receiver's negotiation byte and returns the check
// mode it requested.
func (e *Engine) awaitPoll(ctx context.Context, s Stream) (CheckMode, error) {
	deadline := time.Now().Add(e.cfg.startupTimeout)

	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return 0, ErrCanceled
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, ErrStartupTimeout
		}
		if wait > e.cfg.negotiateInterval {
			wait = e.cfg.negotiateInterval
		}

		b, err := readByte(s, wait)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return 0, err
		}

		switch b {
		case NAK:
			return Checksum8, nil
		case CRCReq:
			return CRC16, nil
		case CAN:
			return 0, ErrCanceled
		default:
			// Line noise before the handshake; keep waiting.
		}
	}
}

// pollForSender repeats the receiver's negotiation byte until the sender's
// first meaningful byte arrives, and returns that byte.
func (e *Engine) pollForSender(ctx context.Context, s Stream, poll byte) (byte, error) {
	deadline := time.Now().Add(e.cfg.startupTimeout)

	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return 0, ErrCanceled
		}

		if _, err := s.Write([]byte{poll}); err != nil {
			return 0, err
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, ErrStartupTimeout
		}
		if wait > e.cfg.negotiateInterval {
			wait = e.cfg.negotiateInterval
		}

		b, err := readByte(s, wait)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return 0, err
		}

		return b, nil
	}
}

// sendFramed transmits one framed block and waits for its ACK, retrying on
// NAK or silence up to the retry limit.
func (e *Engine) sendFramed(ctx context.Context, s Stream, frame []byte, log logger.Logger) error {
	retries := 0

	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return ErrCanceled
		}

		if _, err := s.Write(frame); err != nil {
			return err
		}

		resend, err := e.awaitBlockReply(s)
		if err != nil {
			return err
		}
		if !resend {
			e.metrics.incBlockSendCount()
			return nil
		}

		retries++
		e.metrics.incBlockRetryCount()
		if retries > e.cfg.retryLimit {
			sendCancel(s)
			return ErrMaxRetries
		}
		log.Debug("xfer: block not acknowledged, retrying", "retries", retries)
	}
}

// awaitBlockReply waits for the receiver's verdict on one block. It returns
// resend=true when the block must be retransmitted (NAK or silence).
func (e *Engine) awaitBlockReply(s Stream) (resend bool, err error) {
	for {
		b, err := readByte(s, e.cfg.blockTimeout)
		if err != nil {
			if isTimeout(err) {
				return true, nil
			}
			return false, err
		}

		switch b {
		case ACK:
			return false, nil
		case NAK:
			return true, nil
		case CAN:
			return false, ErrCanceled
		default:
			// Stray byte between blocks; keep waiting for the reply.
		}
	}
}

// sendEOT signals end of file and waits for the final ACK, re-sending EOT on
// NAK or silence up to the retry limit.
func (e *Engine) sendEOT(ctx context.Context, s Stream) error {
	retries := 0

	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return ErrCanceled
		}

		if _, err := s.Write([]byte{EOT}); err != nil {
			return err
		}

		b, err := readByte(s, e.cfg.blockTimeout)
		if err != nil {
			if !isTimeout(err) {
				return err
			}
		} else {
			switch b {
			case ACK:
				return nil
			case CAN:
				return ErrCanceled
			}
		}

		retries++
		if retries > e.cfg.retryLimit {
			return ErrMaxRetries
		}
	}
}
