package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.VendorID != 0x2eb0 || cfg.Device.ProductID != 0x0030 {
		t.Errorf("device = %+v", cfg.Device)
	}
	if !cfg.Port.InitOnAttach || cfg.Port.MemoryCap.Input != 1000000 {
		t.Errorf("port = %+v", cfg.Port)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device:
  interface: 1
port:
  memory_cap:
    input: 4096
    output: 8192
  append_status: true
  rx_multiple: true
  tx_modifiers: [XREP, TXT]
  clock_bits: none
  registers:
    CCR1: 0x1f
transport:
  transfer_timeout: 250ms
  poll_interval: 5ms
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Interface != 1 || cfg.Device.VendorID != 0x2eb0 {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Transport.TransferTimeout != 250*time.Millisecond {
		t.Errorf("transfer_timeout = %v", cfg.Transport.TransferTimeout)
	}

	pc, err := cfg.PortConfig()
	if err != nil {
		t.Fatalf("PortConfig() error = %v", err)
	}
	if pc.MemoryCap.Input != 4096 || pc.MemoryCap.Output != 8192 {
		t.Errorf("MemoryCap = %+v", pc.MemoryCap)
	}
	if !pc.AppendStatus || !pc.RxMultiple || pc.AppendTimestamp {
		t.Errorf("flags = %+v", pc)
	}
	if pc.TxModifiers != register.XREP|register.TXT {
		t.Errorf("TxModifiers = %v", pc.TxModifiers)
	}
	if pc.PollInterval != 5*time.Millisecond || pc.Inspector == nil {
		t.Errorf("PollInterval = %v, Inspector = %v", pc.PollInterval, pc.Inspector)
	}

	initOpts, err := cfg.InitOptions()
	if err != nil || initOpts == nil {
		t.Fatalf("InitOptions() = %v, %v", initOpts, err)
	}
	if initOpts.ClockBits != nil {
		t.Error("clock programmed despite clock_bits: none")
	}
	if initOpts.Registers[register.SlotCCR1] != 0x1f || initOpts.Registers[register.SlotCCR0] != 0x0011201c {
		t.Errorf("registers = %v", initOpts.Registers)
	}

	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v", level)
	}
	if format, _ := cfg.LogFormat(); format != pkg.LogFormatJSON {
		t.Errorf("LogFormat() = %v", format)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"modifier", "port:\n  tx_modifiers: [BOGUS]\n", pkg.ErrInvalidModifier},
		{"combination", "port:\n  tx_modifiers: [XREP, TXEXT]\n", pkg.ErrInvalidModifier},
		{"clock", "port:\n  clock_bits: abcd\n", pkg.ErrInvalidParameter},
		{"register", "port:\n  registers:\n    nope: 1\n", pkg.ErrInvalidParameter},
		{"level", "log:\n  level: loud\n", pkg.ErrInvalidParameter},
		{"format", "log:\n  format: xml\n", pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Load(writeConfig(t, "port: [")); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestInitOptionsDisabled(t *testing.T) {
	cfg := Default()
	cfg.Port.InitOnAttach = false
	if initOpts, err := cfg.InitOptions(); initOpts != nil || err != nil {
		t.Errorf("InitOptions() = %v, %v, want nil", initOpts, err)
	}
}

func TestHostOptions(t *testing.T) {
	cfg := Default()
	cfg.Device.ProductID = 0x0031
	opts, err := cfg.HostOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Filter.ProductID != 0x0031 || opts.Init == nil || opts.Init.ClockBits == nil {
		t.Errorf("HostOptions() = %+v", opts)
	}
	if *opts.Init.ClockBits != register.DefaultClockBits {
		t.Error("default clock bits not selected")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Port.AppendTimestamp = true
	cfg.Port.TxModifiers = []string{"XREP"}
	cfg.Port.MemoryCap.Output = 1234
	cfg.Transport.TransferTimeout = time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Port.AppendTimestamp || got.Port.MemoryCap.Output != 1234 ||
		len(got.Port.TxModifiers) != 1 || got.Port.TxModifiers[0] != "XREP" {
		t.Errorf("port = %+v", got.Port)
	}
	if got.Transport.TransferTimeout != time.Second {
		t.Errorf("transfer_timeout = %v", got.Transport.TransferTimeout)
	}
}
