package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
	"github.com/ardnew/synccom/register"
)

// switchCommand builds a command that shows or saves a boolean port
// setting.
func switchCommand(use, short string, field func() *bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [on|off]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := field()
			if len(args) == 1 {
				on, err := parseSwitch(args[0])
				if err != nil {
					return err
				}
				*v = on
				if err := saveConfig(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", use, switchString(*v))
			return nil
		},
	}
}

var (
	memoryCapInput  int
	memoryCapOutput int
)

var memoryCapCmd = &cobra.Command{
	Use:   "memory-cap",
	Short: "Show or set the per-direction memory caps in bytes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cfg.Port.MemoryCap
		changed := false
		if cmd.Flags().Changed("input") {
			c.Input = memoryCapInput
			changed = true
		}
		if cmd.Flags().Changed("output") {
			c.Output = memoryCapOutput
			changed = true
		}
		if c.Input < 0 || c.Output < 0 {
			return fmt.Errorf("%w: memory caps must not be negative", pkg.ErrInvalidParameter)
		}
		if changed {
			cfg.Port.MemoryCap = c
			if err := saveConfig(); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "input: %d\noutput: %d\n", c.Input, c.Output)
		return nil
	},
}

var txModifiersCmd = &cobra.Command{
	Use:   "tx-modifiers [XF|XREP|TXT|TXEXT ...]",
	Short: "Show or set how frames are transmitted",
	Long: `Valid combinations are XF, XF|TXT, XF|TXEXT, XREP and XREP|TXT.
Modifiers may be given as separate arguments or joined with '|'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			mods, err := register.ParseTxModifiers(args...)
			if err != nil {
				return err
			}
			cfg.Port.TxModifiers = strings.Split(mods.String(), "|")
			if err := saveConfig(); err != nil {
				return err
			}
		}
		mods, err := register.ParseTxModifiers(cfg.Port.TxModifiers...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tx-modifiers: %s\n", mods)
		return nil
	},
}

func init() {
	memoryCapCmd.Flags().IntVar(&memoryCapInput, "input", port.DefaultMemoryCap, "input cap in bytes")
	memoryCapCmd.Flags().IntVar(&memoryCapOutput, "output", port.DefaultMemoryCap, "output cap in bytes")

	rootCmd.AddCommand(memoryCapCmd)
	rootCmd.AddCommand(txModifiersCmd)
	rootCmd.AddCommand(switchCommand("append-status",
		"Keep the two status bytes at the end of each received frame",
		func() *bool { return &cfg.Port.AppendStatus }))
	rootCmd.AddCommand(switchCommand("append-timestamp",
		"Append each frame's receive time (framed mode only)",
		func() *bool { return &cfg.Port.AppendTimestamp }))
	rootCmd.AddCommand(switchCommand("ignore-timeout",
		"Write commands without waiting for the previous one to finish",
		func() *bool { return &cfg.Port.IgnoreTimeout }))
	rootCmd.AddCommand(switchCommand("rx-multiple",
		"Let one read return several frames",
		func() *bool { return &cfg.Port.RxMultiple }))
}
