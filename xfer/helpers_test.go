package xfer

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testConfig returns an engine configuration with short timings so fault
// paths finish quickly.
func testConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	base := []Option{
		WithRetryLimit(3),
		WithBlockTimeout(time.Second),
		WithStartupTimeout(2 * time.Second),
		WithNegotiateInterval(500 * time.Millisecond),
		WithASCIIIdleWindow(time.Second),
	}

	cfg, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(testConfig(t, opts...))
}

// runPair runs sender and receiver engines concurrently over a pipe and
// returns both results.
func runPair(t *testing.T, sendJob, recvJob *Job) (sendRes, recvRes Result) {
	t.Helper()

	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	engine := testEngine(t)
	done := make(chan Result, 1)

	go func() {
		done <- engine.Run(context.Background(), a, sendJob)
	}()

	recvRes = engine.Run(context.Background(), b, recvJob)

	select {
	case sendRes = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("sender did not finish")
	}

	return sendRes, recvRes
}

// drain consumes bytes from c until it closes, so engine writes on the far
// end of a synchronous pipe never block.
func drain(c net.Conn) {
	buf := make([]byte, 64)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

// readN reads exactly n bytes from c or fails the test.
func readN(t *testing.T, c net.Conn, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)

	return buf
}

func writeBytes(t *testing.T, c net.Conn, b ...byte) {
	t.Helper()

	_, err := c.Write(b)
	require.NoError(t, err)
}

// padTo returns data zero-extended to a whole number of blocks using the
// conventional pad byte.
func padTo(data []byte, blockSize int) []byte {
	if len(data)%blockSize == 0 {
		return data
	}

	padded := make([]byte, (len(data)/blockSize+1)*blockSize)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = SUB
	}

	return padded
}
