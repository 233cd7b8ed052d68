package xfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

// metaBlock builds the YMODEM block 0 payload: filename, NUL, decimal size,
// zero-padded to 128 bytes. An empty name produces the batch terminator. A
// name too long for the block is truncated so the NUL and size always fit.
func metaBlock(name string, size int64) []byte {
	data := make([]byte, ShortBlockSize)
	if name == "" {
		return data
	}
	sizeText := strconv.FormatInt(size, 10)
	if max := ShortBlockSize - 1 - len(sizeText); len(name) > max {
		name = name[:max]
	}
	copy(data, name)
	copy(data[len(name)+1:], sizeText)
	return data
}

// parseMetaBlock extracts filename and size from a block 0 payload.
func parseMetaBlock(data []byte) (name string, size int64) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		name = string(data[:i])
		rest := data[i+1:]
		if j := bytes.IndexByte(rest, 0); j >= 0 {
			rest = rest[:j]
		}
		fields := bytes.Fields(rest)
		if len(fields) > 0 {
			size, _ = strconv.ParseInt(string(fields[0]), 10, 64)
		}
	}
	return name, size
}

func (e *Engine) sendYModem(ctx context.Context, s Stream, job *Job, log logger.Logger) Result {
	// Block 0: wait for the receiver's poll, then announce filename and
	// size. YMODEM always uses CRC-16; a NAK poll is still accepted as
	// readiness from lenient receivers.
	if _, err := e.awaitPoll(ctx, s); err != nil {
		return classify(0, err)
	}

	meta := packBlock(SOH, 0, metaBlock(job.Name, job.Size), CRC16)
	if err := e.sendFramed(ctx, s, meta, log); err != nil {
		return classify(0, err)
	}

	// The receiver re-polls to start the data phase.
	if err := e.awaitDataPoll(ctx, s); err != nil {
		return classify(0, err)
	}

	var sent int64
	seq := byte(1)
	buf := make([]byte, LongBlockSize)

	for {
		n, rerr := io.ReadFull(job.Source, buf)
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			sendCancel(s)
			return aborted(sent, fmt.Errorf("xfer: payload read: %w", rerr))
		}

		for i := n; i < LongBlockSize; i++ {
			buf[i] = SUB
		}

		if err := e.sendFramed(ctx, s, packBlock(STX, seq, buf, CRC16), log); err != nil {
			return classify(sent, err)
		}

		sent += int64(n)
		e.metrics.addBytesSent(int64(n))
		seq++

		if rerr != nil {
			break
		}
	}

	if err := e.sendEOT(ctx, s); err != nil {
		return classify(sent, err)
	}

	// Terminate the batch: wait for the next poll and send an empty
	// metadata block.
	if err := e.awaitDataPoll(ctx, s); err != nil {
		return classify(sent, err)
	}
	if err := e.sendFramed(ctx, s, packBlock(SOH, 0, metaBlock("", 0), CRC16), log); err != nil {
		return classify(sent, err)
	}

	return completed(sent)
}

// awaitDataPoll waits for the receiver's CRC poll between YMODEM phases.
func (e *Engine) awaitDataPoll(ctx context.Context, s Stream) error {
	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return ErrCanceled
		}

		b, err := readByte(s, e.cfg.blockTimeout)
		if err != nil {
			if isTimeout(err) {
				return ErrBlockTimeout
			}
			return err
		}

		switch b {
		case CRCReq, NAK:
			return nil
		case CAN:
			return ErrCanceled
		default:
			// Stray byte between phases; ignored.
		}
	}
}

func (e *Engine) recvYModem(ctx context.Context, s Stream, job *Job, log logger.Logger) Result {
	name, size, err := e.receiveMeta(ctx, s, log)
	if err != nil {
		return classify(0, err)
	}
	if name == "" {
		// The sender opened with the batch terminator: nothing to send.
		return completed(0)
	}
	log.Debug("xfer: receiving file", "filename", name, "size", size)

	first, err := e.pollForSender(ctx, s, CRCReq)
	if err != nil {
		res := classify(0, err)
		res.Filename = name
		return res
	}

	total, err := e.receiveStream(ctx, s, first, job.Sink, CRC16, size, true, log)
	if err != nil {
		res := classify(total, err)
		res.Filename = name
		return res
	}

	// One sink holds one file. A batch announcing a second file is
	// cancelled; the first file is already complete and kept.
	next, _, err := e.receiveMeta(ctx, s, log)
	if err != nil {
		res := classify(total, err)
		res.Filename = name
		return res
	}
	if next != "" {
		log.Warn("xfer: cancelling batch after first file", "extra", next)
		sendCancel(s)
	}

	res := completed(total)
	res.Filename = name
	return res
}

// receiveMeta polls for and consumes one YMODEM metadata block.
func (e *Engine) receiveMeta(ctx context.Context, s Stream, log logger.Logger) (name string, size int64, err error) {
	faults := 0

	header, err := e.pollForSender(ctx, s, CRCReq)
	if err != nil {
		return "", 0, err
	}

	for {
		if ctx.Err() != nil {
			sendCancel(s)
			return "", 0, ErrCanceled
		}

		retry := false

		switch header {
		case SOH, STX:
			blockSize := ShortBlockSize
			if header == STX {
				blockSize = LongBlockSize
			}

			body := make([]byte, 2+blockSize+CRC16.Size())
			if rerr := readFull(s, body, e.cfg.blockTimeout); rerr != nil {
				if !isTimeout(rerr) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
					return "", 0, rerr
				}
				retry = true
				break
			}

			seq, data, verr := verifyBlock(body, CRC16)
			if verr != nil || seq != 0 {
				retry = true
				break
			}

			if _, werr := s.Write([]byte{ACK}); werr != nil {
				return "", 0, werr
			}

			name, size = parseMetaBlock(data)
			e.metrics.incBlockRecvCount()

			return name, size, nil

		case CAN:
			return "", 0, ErrCanceled

		default:
			// Line noise; wait for the next byte.
		}

		if retry {
			faults++
			if faults > e.cfg.retryLimit {
				sendCancel(s)
				return "", 0, ErrMaxRetries
			}
			log.Debug("xfer: rejecting metadata block", "faults", faults)
			if _, werr := s.Write([]byte{NAK}); werr != nil {
				return "", 0, werr
			}
		}

		header, err = readByte(s, e.cfg.blockTimeout)
		if err != nil {
			if !isTimeout(err) {
				return "", 0, err
			}
			faults++
			if faults > e.cfg.retryLimit {
				return "", 0, ErrBlockTimeout
			}
			header = 0
		}
	}
}
