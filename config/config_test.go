package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheDeepLogic/RetroSerialHub/link"
)

const sampleYAML = `
ports:
  - name: APPLE2
    device: COM2
    baud: 115200
    data_bits: 8
    parity: N
    stop_bits: 1
    rts_cts: true
  - name: IBM
    device: COM6
    baud: 9600
    data_bits: 8
    parity: N
    stop_bits: 1
    ansi: true

bbs:
  - name: Telehack
    host: telehack.com
    port: 23
  - name: Particles
    host: particlesbbs.dyndns.org
    port: 6400

dirs:
  files: /srv/retro/files

ai:
  api_key: test-key
  model: gpt-4o-mini
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Ports, 2)
	apple := cfg.Ports[0].Params()
	assert.Equal(t, "APPLE2", apple.Name)
	assert.Equal(t, "COM2", apple.Device)
	assert.Equal(t, 115200, apple.Baud)
	assert.Equal(t, link.ParityNone, apple.Parity)
	assert.True(t, apple.RtsCts)
	assert.False(t, apple.ANSI)
	assert.True(t, cfg.Ports[1].ANSI)

	require.Len(t, cfg.BBSes, 2)
	assert.Equal(t, "telehack.com", cfg.BBSes[0].Host)
	assert.Equal(t, 23, cfg.BBSes[0].Port)

	// Explicit dirs are kept, missing ones default.
	assert.Equal(t, "/srv/retro/files", cfg.Dirs.Files)
	assert.Equal(t, "text", cfg.Dirs.Text)
	assert.Equal(t, "notes", cfg.Dirs.Notes)

	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, defaultAIEndpoint, cfg.AI.Endpoint)

	assert.Len(t, cfg.PortParams(), 2)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Ports, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		description string
		yaml        string
		wantErr     error
	}{
		{
			description: "not yaml",
			yaml:        "{ports: [",
			wantErr:     ErrInvalidConfig,
		},
		{
			description: "no ports",
			yaml:        "bbs: []",
			wantErr:     ErrInvalidConfig,
		},
		{
			description: "duplicate device",
			yaml: `
ports:
  - {name: APPLE2, device: COM2, baud: 9600, data_bits: 8, parity: N, stop_bits: 1}
  - {name: C64, device: com2, baud: 2400, data_bits: 8, parity: N, stop_bits: 1}
`,
			wantErr: ErrDuplicateDevice,
		},
		{
			description: "bad parity",
			yaml: `
ports:
  - {name: APPLE2, device: COM2, baud: 9600, data_bits: 8, parity: M, stop_bits: 1}
`,
			wantErr: ErrInvalidConfig,
		},
		{
			description: "bad line params",
			yaml: `
ports:
  - {name: APPLE2, device: COM2, baud: 0, data_bits: 8, parity: N, stop_bits: 1}
`,
			wantErr: ErrInvalidConfig,
		},
		{
			description: "bbs missing host",
			yaml: `
ports:
  - {name: APPLE2, device: COM2, baud: 9600, data_bits: 8, parity: N, stop_bits: 1}
bbs:
  - {name: Telehack, port: 23}
`,
			wantErr: ErrInvalidConfig,
		},
		{
			description: "bbs port out of range",
			yaml: `
ports:
  - {name: APPLE2, device: COM2, baud: 9600, data_bits: 8, parity: N, stop_bits: 1}
bbs:
  - {name: Telehack, host: telehack.com, port: 70000}
`,
			wantErr: ErrInvalidConfig,
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := Parse([]byte(test.yaml))
			assert.ErrorIs(t, err, test.wantErr)
		})
	}
}
