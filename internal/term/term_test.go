package term

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClear(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewScreen(&buf, true).Clear())
	assert.Equal(t, "\x1b[2J\x1b[H", buf.String())

	buf.Reset()
	require.NoError(t, NewScreen(&buf, false).Clear())
	assert.Equal(t, "\r\n", buf.String())
}

func TestPrintSanitizes(t *testing.T) {
	var buf bytes.Buffer
	s := NewScreen(&buf, true)

	require.NoError(t, s.Line("héllo\x07 wörld"))
	assert.Equal(t, "hllo wrld\r\n", buf.String())
}

func TestTwoColumns(t *testing.T) {
	lines := TwoColumns([]string{"Alpha", "Beta", "Gamma", "Delta", "Echo"}, 38)
	require.Len(t, lines, 3)

	// Numbering runs down the left column first.
	assert.Equal(t, " 1] Alpha                              4] Delta", lines[0])
	assert.Equal(t, " 2] Beta                               5] Echo", lines[1])
	assert.Equal(t, " 3] Gamma", lines[2])
}

func TestTwoColumnsSingleItem(t *testing.T) {
	lines := TwoColumns([]string{"Solo"}, 38)
	require.Len(t, lines, 1)
	assert.Equal(t, " 1] Solo", lines[0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.txt", Truncate("short.txt", 34))

	long := "an-extremely-long-filename-that-overflows.txt"
	got := Truncate(long, 34)
	assert.Len(t, got, 34)
	assert.Equal(t, "...", got[31:])
}

func TestPaginate(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "line"
	}

	keys := []byte{' '}
	readKey := func() (byte, error) {
		k := keys[0]
		if len(keys) > 1 {
			keys = keys[1:]
		}
		return k, nil
	}

	var buf bytes.Buffer
	quit, err := NewScreen(&buf, false).Paginate(lines, 22, readKey, false)
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, buf.String(), "Press any key to continue")

	// Q at the first page break quits early.
	keys = []byte{'q'}
	buf.Reset()
	quit, err = NewScreen(&buf, false).Paginate(lines, 22, readKey, true)
	require.NoError(t, err)
	assert.True(t, quit)
}
