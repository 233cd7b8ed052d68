package xfer

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASCIIRoundTrip(t *testing.T) {
	payload := []byte("10 PRINT \"HELLO\"\n20 GOTO 10\n")

	var sink bytes.Buffer
	sendRes, recvRes := runPair(t,
		&Job{Protocol: ASCII, Direction: Send, Source: bytes.NewReader(payload)},
		&Job{Protocol: ASCII, Direction: Receive, Sink: &sink},
	)

	assert.Equal(t, StatusCompleted, sendRes.Status)
	assert.Equal(t, int64(len(payload)), sendRes.Bytes)
	assert.Equal(t, StatusCompleted, recvRes.Status)

	// Bare LF is normalized to CRLF on the wire.
	want := bytes.ReplaceAll(payload, []byte("\n"), []byte("\r\n"))
	assert.Equal(t, want, sink.Bytes())
}

func TestASCIISendKeepsExistingCRLF(t *testing.T) {
	payload := []byte("LINE ONE\r\nLINE TWO\n")

	var sink bytes.Buffer
	sendRes, recvRes := runPair(t,
		&Job{Protocol: ASCII, Direction: Send, Source: bytes.NewReader(payload)},
		&Job{Protocol: ASCII, Direction: Receive, Sink: &sink},
	)

	assert.Equal(t, StatusCompleted, sendRes.Status)
	assert.Equal(t, StatusCompleted, recvRes.Status)
	assert.Equal(t, []byte("LINE ONE\r\nLINE TWO\r\n"), sink.Bytes())
}

func TestASCIIReceiveInactivityCompletes(t *testing.T) {
	peer, side := net.Pipe()
	t.Cleanup(func() {
		peer.Close()
		side.Close()
	})

	engine := testEngine(t) // 1s idle window
	done := make(chan Result, 1)
	var sink bytes.Buffer
	go func() {
		done <- engine.Run(context.Background(), side,
			&Job{Protocol: ASCII, Direction: Receive, Sink: &sink})
	}()

	_, err := peer.Write([]byte("READY"))
	require.NoError(t, err)

	// No end marker; the idle window ends the job.
	select {
	case res := <-done:
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, int64(5), res.Bytes)
		assert.Equal(t, "READY", sink.String())
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not complete on inactivity")
	}
}

func TestASCIIReceiveNoSender(t *testing.T) {
	peer, side := net.Pipe()
	t.Cleanup(func() {
		peer.Close()
		side.Close()
	})

	engine := testEngine(t)
	res := engine.Run(context.Background(), side,
		&Job{Protocol: ASCII, Direction: Receive, Sink: &bytes.Buffer{}})

	assert.Equal(t, StatusAborted, res.Status)
	assert.ErrorIs(t, res.Err, ErrStartupTimeout)
}
