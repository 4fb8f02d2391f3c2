// Command synccom controls SyncCom synchronous serial cards.
//
// Every command attaches to the card selected by --index, runs, and
// detaches. Port settings such as memory caps and transmit modifiers are
// kept in the configuration file and applied each time a card attaches.
//
// Build with -tags profile to enable --cpu-profile, --heap-profile and
// --pprof-addr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
