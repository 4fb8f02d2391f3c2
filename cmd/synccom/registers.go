package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
	"github.com/ardnew/synccom/register"
)

var registersOutput string

var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "Read and write card registers",
}

var registersGetCmd = &cobra.Command{
	Use:   "get [name...]",
	Short: "Read registers (default: the configuration snapshot)",
	Long: `Read the named registers. Without names every register of the
configuration snapshot is read. FIFO data and byte-count registers are only
read when named, since reading them consumes card state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			if _, ok := register.Lookup(name); !ok {
				return fmt.Errorf("%w: unknown register %q", pkg.ErrInvalidParameter, name)
			}
		}

		var values []registerValue
		err := withSession(cmd.Context(), false, func(p *port.Port) error {
			var err error
			if len(args) == 0 {
				values, err = snapshot(cmd, p)
				return err
			}
			for _, name := range args {
				a, _ := register.Lookup(name)
				v, err := p.GetRegister(cmd.Context(), a.BAR, a.Offset)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", name, err)
				}
				values = append(values, registerValue{Name: name, Value: v})
			}
			return nil
		})
		if err != nil {
			return err
		}
		return writeRegisters(cmd.OutOrStdout(), registersOutput, values)
	},
}

// snapshot reads every readable slot of the register snapshot.
func snapshot(cmd *cobra.Command, p *port.Port) ([]registerValue, error) {
	regs := register.NewRegisters()
	for i := range regs {
		if !register.IsReserved(i) && i != register.SlotCMDR {
			regs[i] = register.Fetch
		}
	}
	if err := p.GetRegisters(cmd.Context(), &regs); err != nil {
		return nil, fmt.Errorf("failed to read registers: %w", err)
	}

	var values []registerValue
	for name, v := range regs.Values() {
		values = append(values, registerValue{Name: name, Value: v})
	}
	sort.Slice(values, func(i, j int) bool {
		ii, _ := register.SlotByName(values[i].Name)
		jj, _ := register.SlotByName(values[j].Name)
		return ii < jj
	})
	return values, nil
}

var registersSetCmd = &cobra.Command{
	Use:   "set name=value...",
	Short: "Write registers",
	Long: `Write each name=value pair in order. Values may be decimal or
prefixed with 0x, 0o or 0b. Writes to CCR0 and CCR2 switch the port between
framed and streaming mode.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sets := make([]assignment, 0, len(args))
		for _, arg := range args {
			a, err := parseAssignment(arg)
			if err != nil {
				return err
			}
			sets = append(sets, a)
		}

		return withSession(cmd.Context(), false, func(p *port.Port) error {
			for _, a := range sets {
				if err := p.SetRegister(cmd.Context(), a.addr.BAR, a.addr.Offset, a.value); err != nil {
					return fmt.Errorf("failed to write %s: %w", a.name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = 0x%08x\n", a.name, a.value)
			}
			return nil
		})
	},
}

var clockBitsCmd = &cobra.Command{
	Use:   "clock-bits <hex>",
	Short: "Program the clock generator with a 20-byte word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := register.ParseClockBits(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), false, func(p *port.Port) error {
			if err := p.SetClockBits(cmd.Context(), cb); err != nil {
				return fmt.Errorf("failed to program clock: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "clock programmed: %s\n", cb)
			return nil
		})
	},
}

func init() {
	registersGetCmd.Flags().StringVarP(&registersOutput, "output", "o", formatTable, "output format: table, yaml")
	registersCmd.AddCommand(registersGetCmd)
	registersCmd.AddCommand(registersSetCmd)
	rootCmd.AddCommand(registersCmd)
	rootCmd.AddCommand(clockBitsCmd)
}
