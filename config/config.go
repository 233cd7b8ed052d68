// Package config loads and validates the hub configuration.
//
// Configuration is read once at startup from a YAML file and is immutable
// afterwards. Validation failures are fatal; a hub with a malformed
// configuration must not start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TheDeepLogic/RetroSerialHub/link"
)

var (
	// ErrInvalidConfig indicates a malformed configuration file.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrDuplicateDevice indicates two port entries share one device.
	ErrDuplicateDevice = errors.New("config: duplicate device")
)

// Port is one configured serial attachment.
type Port struct {
	Name     string `yaml:"name"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
	XonXoff  bool   `yaml:"xon_xoff"`
	RtsCts   bool   `yaml:"rts_cts"`
	ANSI     bool   `yaml:"ansi"`
}

// Params converts the entry to link parameters. Call Validate first;
// Params assumes the parity string already parsed.
func (p Port) Params() link.Params {
	parity, _ := link.ParseParity(p.Parity)

	return link.Params{
		Name:     p.Name,
		Device:   p.Device,
		Baud:     p.Baud,
		DataBits: p.DataBits,
		Parity:   parity,
		StopBits: p.StopBits,
		XonXoff:  p.XonXoff,
		RtsCts:   p.RtsCts,
		ANSI:     p.ANSI,
	}
}

// BBS is one dialable bulletin board entry.
type BBS struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Dirs holds the content directories served by the built-in modules.
type Dirs struct {
	Files string `yaml:"files"`
	Text  string `yaml:"text"`
	Notes string `yaml:"notes"`
}

// AI holds the assistant endpoint settings. APIKey may be left empty and
// supplied through the OPENAI_API_KEY environment variable instead.
type AI struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// Config is the complete, validated hub configuration.
type Config struct {
	Ports []Port `yaml:"ports"`
	BBSes []BBS  `yaml:"bbs"`
	Dirs  Dirs   `yaml:"dirs"`
	AI    AI     `yaml:"ai"`
}

const (
	defaultFilesDir = "files"
	defaultTextDir  = "text"
	defaultNotesDir = "notes"

	defaultAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultAIModel    = "gpt-3.5-turbo"
)

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses and validates configuration YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dirs.Files == "" {
		c.Dirs.Files = defaultFilesDir
	}
	if c.Dirs.Text == "" {
		c.Dirs.Text = defaultTextDir
	}
	if c.Dirs.Notes == "" {
		c.Dirs.Notes = defaultNotesDir
	}

	if c.AI.Endpoint == "" {
		c.AI.Endpoint = defaultAIEndpoint
	}
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) validate() error {
	var err error

	if len(c.Ports) == 0 {
		err = errors.Join(err, fmt.Errorf("%w: no ports configured", ErrInvalidConfig))
	}

	seen := make(map[string]string, len(c.Ports))
	for _, p := range c.Ports {
		if p.Name == "" {
			err = errors.Join(err, fmt.Errorf("%w: port entry with empty name", ErrInvalidConfig))
			continue
		}

		if _, perr := link.ParseParity(p.Parity); perr != nil {
			err = errors.Join(err, fmt.Errorf("%w: port %q: %v", ErrInvalidConfig, p.Name, perr))
			continue
		}
		if verr := p.Params().Validate(); verr != nil {
			err = errors.Join(err, fmt.Errorf("%w: port %q: %v", ErrInvalidConfig, p.Name, verr))
			continue
		}

		key := strings.ToUpper(p.Device)
		if prev, dup := seen[key]; dup {
			err = errors.Join(err,
				fmt.Errorf("%w: %s used by both %q and %q", ErrDuplicateDevice, p.Device, prev, p.Name))
			continue
		}
		seen[key] = p.Name
	}

	for i, b := range c.BBSes {
		if b.Name == "" || b.Host == "" {
			err = errors.Join(err, fmt.Errorf("%w: bbs entry %d: name and host are required", ErrInvalidConfig, i))
		}
		if b.Port < 1 || b.Port > 65535 {
			err = errors.Join(err, fmt.Errorf("%w: bbs %q: port %d out of range", ErrInvalidConfig, b.Name, b.Port))
		}
	}

	return err
}

// PortParams returns link parameters for every configured port.
func (c *Config) PortParams() []link.Params {
	params := make([]link.Params, 0, len(c.Ports))
	for _, p := range c.Ports {
		params = append(params, p.Params())
	}

	return params
}
