// Command claphost loads, inspects and renders CLAP plugins.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/justyntemme/claphost/internal/cli"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "claphost:", err)
		stop()
		os.Exit(1)
	}
}
