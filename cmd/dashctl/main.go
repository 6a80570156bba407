// Command dashctl talks to a running dashboard server: it lists periods,
// fetches packages, runs joins and probes the server for consistency.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/schoolboard/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
