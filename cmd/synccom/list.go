package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/synccom/host/hal"
)

var listOutput string

// cardRow is one line of "list".
type cardRow struct {
	Index  int            `yaml:"index"`
	Device hal.DeviceInfo `yaml:"device"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached cards in index order",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHAL()
		if err != nil {
			return err
		}
		if err := h.Init(cmd.Context()); err != nil {
			return errors.Join(err, h.Close())
		}
		if err := h.Start(); err != nil {
			return errors.Join(err, h.Close())
		}
		devs := cardDevices(h.Devices(), cfg.Filter())
		if err := errors.Join(h.Stop(), h.Close()); err != nil {
			return err
		}

		rows := make([]cardRow, len(devs))
		for i, d := range devs {
			rows[i] = cardRow{Index: i, Device: d}
		}

		w := cmd.OutOrStdout()
		switch listOutput {
		case formatYAML:
			b, err := yaml.Marshal(rows)
			if err != nil {
				return err
			}
			_, err = w.Write(b)
			return err
		case formatTable, "":
			if len(rows) == 0 {
				fmt.Fprintln(w, "No cards found.")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tBUS/DEV\tID\tSPEED\tSERIAL\tPATH")
			for _, r := range rows {
				d := r.Device
				fmt.Fprintf(tw, "%d\t%03d/%03d\t%04x:%04x\t%s\t%s\t%s\n",
					r.Index, d.Bus, d.Device, d.VendorID, d.ProductID, d.Speed, d.Serial, d.Path)
			}
			return tw.Flush()
		}
		return fmt.Errorf("unknown output format %q", listOutput)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", formatTable, "output format: table, yaml")
	rootCmd.AddCommand(listCmd)
}
