package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	petname "github.com/dustinkirkland/golang-petname"

	"github.com/darkprince558/flip/internal/audit"
	"github.com/darkprince558/flip/internal/config"
	"github.com/darkprince558/flip/internal/discovery"
	"github.com/darkprince558/flip/internal/events"
	"github.com/darkprince558/flip/internal/logging"
	"github.com/darkprince558/flip/internal/server"
	"github.com/darkprince558/flip/internal/textenc"
	"github.com/darkprince558/flip/internal/transport"
)

// ServeOptions configures flip serve.
type ServeOptions struct {
	Port      int
	Transport transport.Kind
	// Name is advertised over mDNS and, with RegistryURL, registered globally.
	Name        string
	RegistryURL string
	PublicIP    string
	Encoding    string
	IdleTimeout time.Duration
	MQTTBroker  string
	// ShutdownGrace is how long in-flight sessions may run after a signal.
	ShutdownGrace time.Duration
	NoHistory     bool
	Logger        logging.Logger
	// OnReady is called once the listener is bound.
	OnReady func(addr net.Addr)
}

// RunServe listens until ctx is cancelled, then stops accepting and drains
// in-flight sessions for up to ShutdownGrace.
func RunServe(ctx context.Context, opts ServeOptions) error {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	if err := config.ValidatePort(opts.Port); err != nil {
		return err
	}
	enc, err := textenc.Lookup(opts.Encoding)
	if err != nil {
		return err
	}
	kind := opts.Transport
	if kind == "" {
		kind = transport.KindTCP
	}
	if opts.Name != "" {
		if err := discovery.ValidateName(opts.Name); err != nil {
			return err
		}
	}

	ln, err := transport.Listen(kind, opts.Port)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", opts.Port, err)
	}

	publisher := startPublisher(opts, log)
	defer publisher.Close()

	if opts.Name != "" {
		stopAdvertising, err := discovery.StartAdvertising(opts.Port, opts.Name, string(kind))
		if err != nil {
			log.Warnf("Failed to advertise on local network: %v", err)
		} else {
			defer stopAdvertising()
			log.Infof("Advertising as %q on the local network", opts.Name)
		}
		if opts.RegistryURL != "" {
			item := discovery.RegistryItem{Name: opts.Name, IP: opts.PublicIP, Port: opts.Port, Transport: string(kind)}
			if err := discovery.NewRegistryClient(opts.RegistryURL).Register(ctx, item); err != nil {
				log.Warnf("Registry registration failed: %v", err)
			} else {
				log.Infof("Registered %q with %s", opts.Name, opts.RegistryURL)
			}
		}
	}

	srv := server.New(server.Config{
		Handler: server.Handler{Encoding: enc, IdleTimeout: opts.IdleTimeout},
		Logger:  log,
		OnSession: func(rep server.SessionReport) {
			recordSession(rep, opts, publisher, log)
		},
	})

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()
	log.Infof("Serving %s on %s (encoding %s)", kind, ln.Addr(), enc.Name())
	if opts.OnReady != nil {
		opts.OnReady(ln.Addr())
	}

	select {
	case err := <-served:
		// The listener died on its own.
		srv.Close()
		return err
	case <-ctx.Done():
	}

	log.Infof("Shutting down, waiting up to %s for active sessions", opts.ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownGrace)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if serveErr := <-served; !errors.Is(serveErr, server.ErrServerClosed) {
		log.Warnf("Listener stopped with: %v", serveErr)
	}
	if err != nil {
		log.Warnf("Sessions still running after %s; exiting anyway", opts.ShutdownGrace)
		return nil
	}
	log.Infof("Server stopped")
	return nil
}

func startPublisher(opts ServeOptions, log logging.Logger) events.Publisher {
	if opts.MQTTBroker == "" {
		return events.Noop{}
	}
	name := opts.Name
	if name == "" {
		name = "anonymous"
	}
	pub, err := events.NewMQTTPublisher(opts.MQTTBroker, name, "flip-"+petname.Generate(2, "-"), log)
	if err != nil {
		log.Warnf("MQTT disabled: %v", err)
		return events.Noop{}
	}
	log.Infof("Publishing session events to %s on %s", pub.Topic(), opts.MQTTBroker)
	return pub
}

func recordSession(rep server.SessionReport, opts ServeOptions, publisher events.Publisher, log logging.Logger) {
	if !opts.NoHistory {
		entry := audit.LogEntry{
			ID:        rep.ID,
			Timestamp: rep.Started,
			Role:      audit.RoleServer,
			Peer:      rep.Remote,
			FileSize:  rep.BytesIn,
			Chunks:    int(rep.Processed),
			Status:    audit.StatusSuccess,
			Duration:  rep.Duration.Seconds(),
		}
		if !rep.Complete() {
			entry.Status = audit.StatusFailed
			if rep.Err != nil {
				entry.Error = rep.Err.Error()
			}
		}
		if err := audit.WriteEntry(entry); err != nil {
			log.Warnf("Could not write history: %v", err)
		}
	}
	if err := publisher.Publish(events.FromReport(opts.Name, rep)); err != nil {
		log.Warnf("Could not publish session %s: %v", rep.ID, err)
	}
}
