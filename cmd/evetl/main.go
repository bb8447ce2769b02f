// Command evetl filters the electric vehicle population CSV down to the
// records whose electric range meets a minimum, using one of three
// processing modes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// register all backends with the storage factory; --mirror-kind picks one.
	_ "evetl/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "evetl:", err)
		os.Exit(1)
	}
}
