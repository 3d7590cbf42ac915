// Package events publishes server session summaries to an MQTT broker.
package events

import (
	"time"

	"github.com/darkprince558/flip/internal/server"
)

// TopicPrefix is followed by the server name.
const TopicPrefix = "flip/sessions/"

// SessionEvent is the JSON body published once per finished connection.
type SessionEvent struct {
	Server    string    `json:"server"`
	Session   string    `json:"session"`
	Remote    string    `json:"remote"`
	Declared  uint32    `json:"declared"`
	Processed uint32    `json:"processed"`
	BytesIn   int64     `json:"bytes_in"`
	BytesOut  int64     `json:"bytes_out"`
	Started   time.Time `json:"started"`
	Duration  float64   `json:"duration_seconds"`
	Complete  bool      `json:"complete"`
	Error     string    `json:"error,omitempty"`
}

// FromReport converts a handler report.
func FromReport(serverName string, rep server.SessionReport) SessionEvent {
	ev := SessionEvent{
		Server:    serverName,
		Session:   rep.ID,
		Remote:    rep.Remote,
		Declared:  rep.Declared,
		Processed: rep.Processed,
		BytesIn:   rep.BytesIn,
		BytesOut:  rep.BytesOut,
		Started:   rep.Started,
		Duration:  rep.Duration.Seconds(),
		Complete:  rep.Complete(),
	}
	if rep.Err != nil {
		ev.Error = rep.Err.Error()
	}
	return ev
}

// Publisher sends session events somewhere.
type Publisher interface {
	Publish(ev SessionEvent) error
	Close()
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(SessionEvent) error { return nil }
func (Noop) Close()                     {}
