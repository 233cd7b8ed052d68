package xfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

func (e *Engine) sendXModem(ctx context.Context, s Stream, job *Job, log logger.Logger) Result {
	mode, err := e.awaitPoll(ctx, s)
	if err != nil {
		return classify(0, err)
	}
	log.Debug("xfer: receiver ready", "check", mode.String())

	var sent int64
	seq := byte(1)
	buf := make([]byte, ShortBlockSize)

	for {
		n, rerr := io.ReadFull(job.Source, buf)
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			sendCancel(s)
			return aborted(sent, fmt.Errorf("xfer: payload read: %w", rerr))
		}

		// Pad the final short block out to the full size.
		for i := n; i < ShortBlockSize; i++ {
			buf[i] = SUB
		}

		if err := e.sendFramed(ctx, s, packBlock(SOH, seq, buf, mode), log); err != nil {
			return classify(sent, err)
		}

		sent += int64(n)
		e.metrics.addBytesSent(int64(n))
		seq++

		if rerr != nil {
			// Short block was the last one.
			break
		}
	}

	if err := e.sendEOT(ctx, s); err != nil {
		return classify(sent, err)
	}

	return completed(sent)
}

func (e *Engine) recvXModem(ctx context.Context, s Stream, job *Job, log logger.Logger) Result {
	mode := job.checkMode()

	first, err := e.pollForSender(ctx, s, mode.pollByte())
	if err != nil {
		return classify(0, err)
	}

	n, rerr := e.receiveStream(ctx, s, first, job.Sink, mode, 0, false, log)
	if rerr != nil {
		return classify(n, rerr)
	}

	return completed(n)
}

// receiveStream runs the receiver side of the block loop. first is the
// already-consumed byte that ended negotiation. limit, when positive, is the
// exact payload size; bytes beyond it are treated as padding and dropped.
// allowLong additionally accepts 1024-byte STX blocks.
func (e *Engine) receiveStream(ctx context.Context, s Stream, first byte, sink io.Writer, mode CheckMode, limit int64, allowLong bool, log logger.Logger) (int64, error) {
	var total int64
	expected := byte(1)
	faults := 0

	// reject NAKs a bad block and enforces the fault ceiling.
	reject := func(cause error) error {
		faults++
		if faults > e.cfg.retryLimit {
			sendCancel(s)
			return fmt.Errorf("%w: %v", ErrMaxRetries, cause)
		}
		log.Debug("xfer: rejecting block", "cause", cause, "faults", faults)
		if _, werr := s.Write([]byte{NAK}); werr != nil {
			return werr
		}
		return nil
	}

	header := first
	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return total, ErrCanceled
		}

		switch header {
		case SOH, STX:
			size := ShortBlockSize
			if header == STX {
				if !allowLong {
					if err := reject(fmt.Errorf("xfer: unexpected STX block")); err != nil {
						return total, err
					}
					break
				}
				size = LongBlockSize
			}

			body := make([]byte, 2+size+mode.Size())
			if err := readFull(s, body, e.cfg.blockTimeout); err != nil {
				if !isTimeout(err) && !errors.Is(err, io.ErrUnexpectedEOF) {
					return total, err
				}
				if err := reject(fmt.Errorf("xfer: truncated block")); err != nil {
					return total, err
				}
				break
			}

			seq, data, verr := verifyBlock(body, mode)
			if verr != nil {
				if err := reject(verr); err != nil {
					return total, err
				}
				break
			}

			switch seq {
			case expected:
				keep := int64(len(data))
				if limit > 0 && total+keep > limit {
					keep = limit - total
				}
				if keep > 0 {
					if _, werr := sink.Write(data[:keep]); werr != nil {
						sendCancel(s)
						return total, fmt.Errorf("xfer: payload write: %w", werr)
					}
				}

				total += keep
				e.metrics.incBlockRecvCount()
				e.metrics.addBytesRecv(keep)
				expected++
				faults = 0

				if _, werr := s.Write([]byte{ACK}); werr != nil {
					return total, werr
				}
			case expected - 1:
				// Duplicate of the previous block: the sender missed our
				// ACK. Acknowledge again without re-consuming the data.
				if _, werr := s.Write([]byte{ACK}); werr != nil {
					return total, werr
				}
			default:
				if err := reject(fmt.Errorf("xfer: out-of-sequence block %d, expected %d", seq, expected)); err != nil {
					return total, err
				}
			}

		case EOT:
			if _, werr := s.Write([]byte{ACK}); werr != nil {
				return total, werr
			}
			return total, nil

		case CAN:
			return total, ErrCanceled

		default:
			// Line noise between blocks; ignored.
		}

		var err error
		header, err = readByte(s, e.cfg.blockTimeout)
		if err != nil {
			if !isTimeout(err) {
				return total, err
			}
			if err := reject(ErrBlockTimeout); err != nil {
				return total, err
			}
			header = 0
		}
	}
}
