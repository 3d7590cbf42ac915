package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/darkprince558/flip/internal/config"
	"github.com/darkprince558/flip/internal/core"
	"github.com/darkprince558/flip/internal/transport"
	"github.com/darkprince558/flip/internal/ui"
)

func newSendCmd(cfg *config.Config) *cobra.Command {
	var (
		opts      core.SendOptions
		kind      string
		headless  bool
		minChunk  int
		maxChunk  int
		timeout   time.Duration
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "send FILE",
		Short: "Send FILE to a server and write the reassembled result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := transport.ParseKind(kind)
			if err != nil {
				return err
			}
			// A server config of "both" still dials over one transport.
			if k == transport.KindBoth {
				k = transport.KindTCP
			}
			opts.File = args[0]
			opts.Transport = k
			opts.Min, opts.Max = minChunk, maxChunk
			opts.Timeout = timeout
			opts.NoHistory = noHistory
			if opts.Name != "" && !cmd.Flags().Changed("addr") {
				opts.Addr = ""
			}

			if headless {
				if _, err := core.RunSend(cmd.Context(), nil, opts); err != nil {
					return reportedError{err}
				}
				return nil
			}
			return sendWithUI(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", cfg.ServerAddr, "server IPv4 address and port, e.g. 192.168.1.10:9999")
	f.StringVar(&opts.Name, "to", "", "find the server by name (mDNS, then the registry)")
	f.StringVar(&opts.RegistryURL, "registry", cfg.RegistryURL, "registry service base URL used with --to")
	f.StringVarP(&opts.Out, "out", "o", "", "output file (default reversed_<FILE>)")
	f.IntVar(&minChunk, "min", cfg.MinChunk, "smallest chunk size")
	f.IntVar(&maxChunk, "max", cfg.MaxChunk, "largest chunk size (at most 1000)")
	f.Int64Var(&opts.Seed, "seed", 0, "seed for chunk sizes (0 = random)")
	f.DurationVar(&timeout, "timeout", cfg.Timeout.Std(), "connect and per-exchange timeout")
	f.StringVar(&kind, "transport", cfg.Transport, "tcp or quic")
	f.StringVar(&opts.Encoding, "encoding", cfg.Encoding, "text encoding shared with the server (utf-8, ascii, latin1)")
	f.BoolVar(&opts.Copy, "copy", false, "copy the output text to the clipboard")
	f.BoolVar(&headless, "headless", false, "print plain status lines instead of the interactive UI")
	f.BoolVar(&noHistory, "no-history", false, "do not record this transfer in the history")
	return cmd
}

func sendWithUI(parent context.Context, opts core.SendOptions) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	target := opts.Addr
	if target == "" {
		target = opts.Name
	}
	p := tea.NewProgram(ui.NewModel(opts.File, target))

	done := make(chan error, 1)
	go func() {
		_, err := core.RunSend(ctx, p, opts)
		done <- err
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return err
	}
	if m, ok := final.(ui.Model); ok && m.Exit {
		// Ctrl+C in the UI aborts the transfer.
		cancel()
	}
	if err := <-done; err != nil {
		return reportedError{err}
	}
	return nil
}
