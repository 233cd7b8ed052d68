// Package bridge implements the full-duplex byte relay engine used for BBS
// dial-out and COM-to-COM linking. It moves bytes between two links without
// interpretation, reordering or buffering beyond a small relay buffer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheDeepLogic/RetroSerialHub/link"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

const (
	// pollInterval bounds how long a relay direction stays blocked in a
	// read before it re-checks the stop signal.
	pollInterval = 250 * time.Millisecond

	relayBufSize = 4096

	// DefaultDialTimeout is the connect timeout for BBS dial-out.
	DefaultDialTimeout = 15 * time.Second
)

// Cause classifies why a bridge ended.
type Cause int

const (
	// ClosedByA means side A hung up (EOF or closed link).
	ClosedByA Cause = iota
	// ClosedByB means side B hung up.
	ClosedByB
	// Canceled means the context ended the bridge.
	Canceled
	// Failed means a link faulted mid-relay; Result.Err carries it.
	Failed
)

// String returns a short cause label.
func (c Cause) String() string {
	switch c {
	case ClosedByA:
		return "closed by A"
	case ClosedByB:
		return "closed by B"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of one bridge run.
type Result struct {
	Cause Cause

	// AToB and BToA count relayed bytes per direction.
	AToB int64
	BToA int64

	// Err is non-nil only when Cause is Failed or Canceled.
	Err error
}

// Engine runs bridges. One Engine is shared by all sessions.
type Engine struct {
	logger  logger.Logger
	metrics EngineMetrics
}

// NewEngine creates a bridge engine. A nil logger uses the package default.
func NewEngine(l logger.Logger) *Engine {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Engine{logger: l}
}

// Metrics returns the engine's metric counters.
func (e *Engine) Metrics() *EngineMetrics { return &e.metrics }

// Dial connects to a remote endpoint for BBS dial-out. Failure is an
// expected outcome surfaced to the calling module, never a hub fault.
func (e *Engine) Dial(ctx context.Context, host string, port int, timeout time.Duration) (link.Link, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: timeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	e.logger.Info("bridge: connected", "remote", addr)

	return link.WrapConn(conn), nil
}

// Run relays bytes between a and b in both directions until one side hangs
// up, a link faults or ctx is canceled. It returns only after both relay
// directions have stopped, so from the caller's perspective teardown is
// atomic. Run closes neither link; ownership stays with the caller.
func (e *Engine) Run(ctx context.Context, a, b link.Link) Result {
	log := e.logger.With("a", a.Name(), "b", b.Name())
	log.Info("bridge: relay started")

	e.metrics.ActiveBridges.Add(1)
	defer e.metrics.ActiveBridges.Add(-1)

	var (
		res  Result
		once sync.Once
		stop = make(chan struct{})

		aToB atomic.Int64
		bToA atomic.Int64
	)

	finish := func(cause Cause, err error) {
		once.Do(func() {
			res.Cause = cause
			res.Err = err
			close(stop)
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.pump(a, b, &aToB, stop, ClosedByA, ClosedByB, finish)
	}()
	go func() {
		defer wg.Done()
		e.pump(b, a, &bToA, stop, ClosedByB, ClosedByA, finish)
	}()

	go func() {
		select {
		case <-ctx.Done():
			finish(Canceled, ctx.Err())
		case <-stop:
		}
	}()

	wg.Wait()

	res.AToB = aToB.Load()
	res.BToA = bToA.Load()
	e.metrics.BridgeCount.Add(1)
	e.metrics.BytesRelayed.Add(uint64(res.AToB + res.BToA))

	log.Info("bridge: relay ended",
		"cause", res.Cause.String(), "a_to_b", res.AToB, "b_to_a", res.BToA)

	return res
}

// pump relays one direction. Reads use short deadlines so the stop signal is
// observed within pollInterval even while the line is idle.
func (e *Engine) pump(src, dst link.Link, count *atomic.Int64, stop <-chan struct{}, srcSide, dstSide Cause, finish func(Cause, error)) {
	buf := make([]byte, relayBufSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := src.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			finish(classifyErr(err, srcSide))
			return
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				finish(classifyErr(werr, dstSide))
				return
			}
			count.Add(int64(n))
		}

		if err != nil {
			if isTimeout(err) {
				continue
			}
			finish(classifyErr(err, srcSide))
			return
		}
	}
}

// classifyErr maps a link error to its cause: a clean close is attributed to
// the side that closed, anything else is a fault.
func classifyErr(err error, side Cause) (Cause, error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, link.ErrLinkClosed) {
		return side, nil
	}

	return Failed, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}
