package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkprince558/flip/internal/config"
	"github.com/darkprince558/flip/internal/core"
	"github.com/darkprince558/flip/internal/logging"
	"github.com/darkprince558/flip/internal/transport"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var (
		port          int
		kind          string
		name          string
		encoding      string
		idleTimeout   time.Duration
		mqttBroker    string
		registryURL   string
		publicIP      string
		shutdownGrace time.Duration
		logLevel      string
		noHistory     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and reverse every chunk received",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			k, err := transport.ParseKind(kind)
			if err != nil {
				return err
			}
			if publicIP != "" {
				if err := config.ValidateIPv4(publicIP); err != nil {
					return err
				}
			}
			log := logging.New(os.Stdout, level)

			return core.RunServe(cmd.Context(), core.ServeOptions{
				Port:          port,
				Transport:     k,
				Name:          name,
				RegistryURL:   registryURL,
				PublicIP:      publicIP,
				Encoding:      encoding,
				IdleTimeout:   idleTimeout,
				MQTTBroker:    mqttBroker,
				ShutdownGrace: shutdownGrace,
				NoHistory:     noHistory,
				Logger:        log,
				OnReady: func(addr net.Addr) {
					fmt.Printf("Ready: %s\n", addr)
				},
			})
		},
	}

	f := cmd.Flags()
	f.IntVarP(&port, "port", "p", cfg.ListenPort, fmt.Sprintf("port to listen on (%d-%d)", config.MinPort, config.MaxPort))
	f.StringVar(&kind, "transport", cfg.Transport, "tcp, quic or both")
	f.StringVar(&name, "name", "", "advertise this server name over mDNS (and the registry)")
	f.StringVar(&encoding, "encoding", cfg.Encoding, "text encoding shared with clients (utf-8, ascii, latin1)")
	f.DurationVar(&idleTimeout, "idle-timeout", cfg.IdleTimeout.Std(), "close connections silent for this long (0 = never)")
	f.StringVar(&mqttBroker, "mqtt-broker", cfg.MQTTBroker, "publish session summaries to this broker, e.g. tcp://localhost:1883")
	f.StringVar(&registryURL, "registry", cfg.RegistryURL, "registry service base URL used with --name")
	f.StringVar(&publicIP, "public-ip", "", "address to register instead of the one the registry sees")
	f.DurationVar(&shutdownGrace, "shutdown-grace", cfg.ShutdownGrace.Std(), "how long active sessions may finish after a signal")
	f.StringVar(&logLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.BoolVar(&noHistory, "no-history", false, "do not record sessions in the history")
	return cmd
}
