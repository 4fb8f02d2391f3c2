package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
)

var (
	readCount    int
	readNonblock bool
	readHex      bool
	readSize     int

	writeDrain time.Duration

	purgeRx bool
	purgeTx bool
)

// drainPoll is how often write checks for an empty transmit queue.
const drainPoll = 10 * time.Millisecond

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read received frames or stream data to stdout",
	Long: `Read from the card and copy what arrives to stdout. In framed mode
each read returns one frame, or several with rx-multiple. With --count 0
reading continues until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if readSize <= 0 {
			return fmt.Errorf("%w: --size must be positive", pkg.ErrInvalidParameter)
		}
		return withSession(cmd.Context(), true, func(p *port.Port) error {
			f, err := p.Open(cmd.Context(), readNonblock)
			if err != nil {
				return err
			}
			defer f.Close()
			return readLoop(f, cmd.OutOrStdout())
		})
	},
}

// readLoop copies reads from f to w until --count reads are done, the
// handle would block, or the command is interrupted.
func readLoop(f io.Reader, w io.Writer) error {
	buf := make([]byte, readSize)
	for i := 0; readCount == 0 || i < readCount; i++ {
		n, err := f.Read(buf)
		switch {
		case errors.Is(err, pkg.ErrWouldBlock), errors.Is(err, pkg.ErrInterrupted):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read: %w", err)
		}

		if readHex {
			_, err = io.WriteString(w, hex.Dump(buf[:n]))
		} else {
			_, err = w.Write(buf[:n])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

var writeCmd = &cobra.Command{
	Use:   "write [file]",
	Short: "Transmit a file, or stdin, as one frame",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 && args[0] != "-" {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("%w: nothing to write", pkg.ErrInvalidParameter)
		}

		return withSession(cmd.Context(), true, func(p *port.Port) error {
			f, err := p.Open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := f.Write(data)
			if err != nil {
				return fmt.Errorf("failed to write: %w", err)
			}
			if err := waitDrained(cmd.Context(), p, writeDrain); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes\n", n)
			return nil
		})
	},
}

// waitDrained waits until every queued outbound byte has reached the card.
func waitDrained(ctx context.Context, p *port.Port, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for p.OutputMemoryUsage() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d bytes still queued", pkg.ErrTimeout, p.OutputMemoryUsage())
		case <-ticker.C:
		}
	}
	return nil
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Reset the receiver, transmitter, or both, discarding queued data",
	RunE: func(cmd *cobra.Command, args []string) error {
		rx, tx := purgeRx, purgeTx
		if !rx && !tx {
			rx, tx = true, true
		}
		return withSession(cmd.Context(), false, func(p *port.Port) error {
			if tx {
				if err := p.PurgeTx(cmd.Context()); err != nil {
					return err
				}
			}
			if rx {
				if err := p.PurgeRx(cmd.Context()); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	readCmd.Flags().IntVarP(&readCount, "count", "c", 0, "number of reads (0 reads until interrupted)")
	readCmd.Flags().BoolVar(&readNonblock, "nonblock", false, "stop as soon as nothing is waiting")
	readCmd.Flags().BoolVarP(&readHex, "hex", "x", false, "write a hex dump instead of raw bytes")
	readCmd.Flags().IntVar(&readSize, "size", 65536, "read buffer size in bytes")

	writeCmd.Flags().DurationVar(&writeDrain, "drain", 5*time.Second, "how long to wait for the frame to reach the card")

	purgeCmd.Flags().BoolVar(&purgeRx, "rx", false, "purge the receiver")
	purgeCmd.Flags().BoolVar(&purgeTx, "tx", false, "purge the transmitter")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(purgeCmd)
}
