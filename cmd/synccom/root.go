package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/synccom/config"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/pkg/prof"
)

var (
	// Global flags
	cfgFile     string
	cardIndex   int
	logLevel    string
	logJSON     bool
	simulate    bool
	waitTimeout time.Duration
	profOpts    prof.Options

	// Shared state set during PersistentPreRun
	cfg      *config.Config
	cfgPath  string
	stopProf func()
)

// rootCmd is the base command for synccom.
var rootCmd = &cobra.Command{
	Use:   "synccom",
	Short: "Control SyncCom synchronous serial cards",
	Long: `synccom reads and writes frames on SyncCom HDLC/transparent cards,
inspects and programs their registers, and adjusts per-port settings.

Cards are numbered in bus order starting at 0; select one with --index.
Settings changed with memory-cap, append-status, append-timestamp,
ignore-timeout, rx-multiple and tx-modifiers are saved to the
configuration file and take effect the next time a card attaches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgPath = cfgFile
		if cfgPath == "" {
			cfgPath = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if logJSON {
			cfg.Log.Format = "json"
		}
		if err := cfg.ApplyLogging(); err != nil {
			return err
		}

		stopProf, err = prof.Start(profOpts)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		pkg.LogDebug(pkg.ComponentCLI, "configuration loaded",
			"path", cfgPath,
			"profiling", prof.Active())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProf != nil {
			stopProf()
		}
	},
}

// saveConfig persists cfg after a settings change.
func saveConfig() error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	pkg.LogInfo(pkg.ComponentCLI, "configuration saved", "path", cfgPath)
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/synccom/config.yaml)")
	flags.IntVarP(&cardIndex, "index", "n", 0, "card index in bus order")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&logJSON, "log-json", false, "write logs as JSON")
	flags.BoolVar(&simulate, "simulate", false, "use an emulated loopback card instead of USB hardware")
	flags.DurationVar(&waitTimeout, "wait", 2*time.Second, "how long to wait for the card to attach")
	flags.StringVar(&profOpts.CPU, "cpu-profile", "", "write a CPU profile to this file (profile builds)")
	flags.StringVar(&profOpts.Heap, "heap-profile", "", "write a heap profile to this file on exit (profile builds)")
	flags.StringVar(&profOpts.Addr, "pprof-addr", "", "serve /debug/pprof on this address (profile builds)")
}
