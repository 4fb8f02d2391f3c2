// Package config loads the synccom configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/synccom/host"
	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
	"github.com/ardnew/synccom/register"
)

// ClockNone disables clock programming in [PortConfig.ClockBits].
const ClockNone = "none"

// Config holds the synccom configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Port      PortConfig      `yaml:"port"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

// DeviceConfig selects the cards to attach.
type DeviceConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Interface uint8  `yaml:"interface"`
}

// PortConfig holds the initial settings of every attached port.
type PortConfig struct {
	MemoryCap       port.MemoryCap `yaml:"memory_cap"`
	AppendStatus    bool           `yaml:"append_status"`
	AppendTimestamp bool           `yaml:"append_timestamp"`
	IgnoreTimeout   bool           `yaml:"ignore_timeout"`
	RxMultiple      bool           `yaml:"rx_multiple"`
	TxModifiers     []string       `yaml:"tx_modifiers"`
	TimeoutPolls    int            `yaml:"timeout_polls"`

	// InitOnAttach programs the clock and registers when a card attaches.
	InitOnAttach bool `yaml:"init_on_attach"`

	// ClockBits is the 40-character hex clock word. Empty selects the
	// default word and "none" skips clock programming.
	ClockBits string `yaml:"clock_bits"`

	// Registers override the power-on defaults by register name.
	Registers map[string]uint32 `yaml:"registers"`
}

// TransportConfig tunes the USB transport.
type TransportConfig struct {
	TransferTimeout time.Duration `yaml:"transfer_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

// LogConfig configures driver logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			VendorID:  host.VendorID,
			ProductID: host.ProductID,
			Interface: host.DefaultInterface,
		},
		Port: PortConfig{
			MemoryCap: port.MemoryCap{
				Input:  port.DefaultMemoryCap,
				Output: port.DefaultMemoryCap,
			},
			TxModifiers:  []string{"XF"},
			TimeoutPolls: port.DefaultTimeoutPolls,
			InitOnAttach: true,
		},
		Transport: TransportConfig{
			TransferTimeout: 5 * time.Second,
			PollInterval:    port.DefaultConfig().PollInterval,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file path:
// $XDG_CONFIG_HOME/synccom/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".synccom", "config.yaml")
	}
	return filepath.Join(dir, "synccom", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns the default Config with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every field that is parsed lazily.
func (c *Config) Validate() error {
	if _, err := c.PortConfig(); err != nil {
		return err
	}
	if _, err := c.InitOptions(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := c.LogFormat(); err != nil {
		return err
	}
	return nil
}

// PortConfig converts the port section to a [port.Config].
func (c *Config) PortConfig() (port.Config, error) {
	mods, err := register.ParseTxModifiers(c.Port.TxModifiers...)
	if err != nil {
		return port.Config{}, fmt.Errorf("tx_modifiers: %w", err)
	}

	cfg := port.DefaultConfig()
	cfg.MemoryCap = c.Port.MemoryCap
	cfg.AppendStatus = c.Port.AppendStatus
	cfg.AppendTimestamp = c.Port.AppendTimestamp
	cfg.IgnoreTimeout = c.Port.IgnoreTimeout
	cfg.RxMultiple = c.Port.RxMultiple
	cfg.TxModifiers = mods
	cfg.Inspector = port.NewRepeatDetector()
	if c.Port.TimeoutPolls > 0 {
		cfg.TimeoutPolls = c.Port.TimeoutPolls
	}
	if c.Transport.PollInterval > 0 {
		cfg.PollInterval = c.Transport.PollInterval
	}
	return cfg, nil
}

// InitOptions returns what to program on attach, or nil when InitOnAttach
// is off.
func (c *Config) InitOptions() (*port.InitOptions, error) {
	if !c.Port.InitOnAttach {
		return nil, nil
	}

	opts := &port.InitOptions{Registers: register.Defaults()}
	switch s := strings.TrimSpace(c.Port.ClockBits); s {
	case ClockNone:
	case "":
		cb := register.DefaultClockBits
		opts.ClockBits = &cb
	default:
		cb, err := register.ParseClockBits(s)
		if err != nil {
			return nil, fmt.Errorf("clock_bits: %w", err)
		}
		opts.ClockBits = &cb
	}

	for name, v := range c.Port.Registers {
		if err := opts.Registers.Set(strings.ToLower(name), int64(v)); err != nil {
			return nil, fmt.Errorf("registers: %w", err)
		}
	}
	return opts, nil
}

// HostOptions builds the options of a [host.Host] attaching ports into
// registry.
func (c *Config) HostOptions(registry *port.Registry) (host.Options, error) {
	pc, err := c.PortConfig()
	if err != nil {
		return host.Options{}, err
	}
	initOpts, err := c.InitOptions()
	if err != nil {
		return host.Options{}, err
	}
	return host.Options{
		Filter:    c.Filter(),
		Interface: c.Device.Interface,
		Port:      pc,
		Init:      initOpts,
		Registry:  registry,
	}, nil
}

// Filter returns the device filter.
func (c *Config) Filter() hal.Filter {
	return hal.Filter{VendorID: c.Device.VendorID, ProductID: c.Device.ProductID}
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	return pkg.ParseLogLevel(c.Log.Level)
}

// LogFormat parses the configured log format.
func (c *Config) LogFormat() (pkg.LogFormat, error) {
	return pkg.ParseLogFormat(c.Log.Format)
}

// ApplyLogging configures the driver logger.
func (c *Config) ApplyLogging() error {
	level, err := c.LogLevel()
	if err != nil {
		return err
	}
	format, err := c.LogFormat()
	if err != nil {
		return err
	}
	pkg.SetLogFormat(format)
	pkg.SetLogLevel(level)
	return nil
}
