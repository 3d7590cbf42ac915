package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/darkprince558/flip/internal/config"
)

// reportedError has already been shown to the user; main only sets the exit code.
type reportedError struct{ error }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		var re reportedError
		if !errors.As(err, &re) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flip",
		Short:         "Send a text file through a server that reverses it chunk by chunk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// A broken config file should not block "flip config set" from fixing it.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
		cfg = config.Defaults()
	}

	root.AddCommand(
		newServeCmd(cfg),
		newSendCmd(cfg),
		newHistoryCmd(),
		newConfigCmd(cfg),
	)
	return root
}
