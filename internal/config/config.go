// Package config loads host configuration for the dataplot binaries.
//
// Configuration comes from a single file named by the --config flag or the
// DATAPLOT_CONFIG environment variable. Files ending in .yaml or .yml are
// YAML; anything else is JSON, with comments and trailing commas allowed.
// Command-line flags override file values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config path.
const EnvConfig = "DATAPLOT_CONFIG"

// Config is the host configuration.
type Config struct {
	// Addr is the HTTP listen address of dataplot-server.
	Addr string `yaml:"addr" json:"addr"`
	// Web is the directory served at "/".
	Web string `yaml:"web" json:"web"`
	// Open launches a browser once the server listens.
	Open bool `yaml:"open" json:"open"`

	Serial SerialConfig `yaml:"serial" json:"serial"`
	BLE    BLEConfig    `yaml:"ble" json:"ble"`

	// Handshake is sent to the device after connecting. "-" sends nothing.
	Handshake string `yaml:"handshake" json:"handshake"`

	Log LogConfig `yaml:"log" json:"log"`

	// PortCache is where the last working serial port is remembered.
	PortCache string `yaml:"port_cache" json:"port_cache"`
}

// SerialConfig configures the USB link.
type SerialConfig struct {
	// Port is a fixed device; empty means auto-detect.
	Port        string   `yaml:"port" json:"port"`
	Baud        int      `yaml:"baud" json:"baud"`
	ReadTimeout Duration `yaml:"read_timeout" json:"read_timeout"`
}

// BLEConfig configures the Bluetooth link.
type BLEConfig struct {
	NamePrefix  string   `yaml:"name_prefix" json:"name_prefix"`
	Address     string   `yaml:"address" json:"address"`
	ScanTimeout Duration `yaml:"scan_timeout" json:"scan_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" json:"level"`
	// Format is text or json.
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr:      "127.0.0.1:8080",
		Web:       "web",
		Open:      true,
		Serial:    SerialConfig{Baud: 115200, ReadTimeout: Duration(100 * time.Millisecond)},
		BLE:       BLEConfig{NamePrefix: "BBC micro:bit", ScanTimeout: Duration(30 * time.Second)},
		Handshake: "dataplot\n",
		Log:       LogConfig{Level: "info", Format: "text"},
		PortCache: defaultPortCache(),
	}
}

func defaultPortCache() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "dataplot_ports.json"
	}
	return filepath.Join(dir, "dataplot", "ports.json")
}

// Path returns flagValue, or the DATAPLOT_CONFIG value when the flag is empty.
func Path(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return strings.TrimSpace(os.Getenv(EnvConfig))
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := cfg.parse(path, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) parse(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	default:
		return json.Unmarshal(jsonc.ToJSON(data), c)
	}
}

// Validate rejects values the binaries cannot start with.
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout < 0 || c.BLE.ScanTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Duration is a time.Duration written as a string like "250ms" in config
// files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
