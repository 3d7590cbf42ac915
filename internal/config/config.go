package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/darkprince558/flip/internal/chunk"
	"github.com/darkprince558/flip/internal/logging"
	"github.com/darkprince558/flip/internal/textenc"
	"github.com/darkprince558/flip/internal/transport"
)

// EnvPath overrides the config file location.
const EnvPath = "FLIP_CONFIG"

// Port range accepted for servers and targets.
const (
	MinPort = 1024
	MaxPort = 65535
)

// Duration is a time.Duration stored as "10s" in JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds persistent user settings. Command-line flags override it.
type Config struct {
	ListenPort    int      `json:"listen_port"`
	ServerAddr    string   `json:"server_addr,omitempty"`
	MinChunk      int      `json:"min_chunk"`
	MaxChunk      int      `json:"max_chunk"`
	Timeout       Duration `json:"timeout"`
	IdleTimeout   Duration `json:"idle_timeout"`
	Encoding      string   `json:"encoding"`
	Transport     string   `json:"transport"`
	LogLevel      string   `json:"log_level"`
	MQTTBroker    string   `json:"mqtt_broker,omitempty"`
	RegistryURL   string   `json:"registry_url,omitempty"`
	ShutdownGrace Duration `json:"shutdown_grace"`
}

// Defaults is what an absent config file means.
func Defaults() *Config {
	return &Config{
		ListenPort:    9999,
		MinChunk:      3,
		MaxChunk:      10,
		Timeout:       Duration(10 * time.Second),
		Encoding:      textenc.Default,
		Transport:     string(transport.KindTCP),
		LogLevel:      "info",
		ShutdownGrace: Duration(5 * time.Second),
	}
}

func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".flip")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config file over the defaults.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config file
func Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Validate checks every field.
func (c *Config) Validate() error {
	if err := ValidatePort(c.ListenPort); err != nil {
		return fmt.Errorf("listen_port: %w", err)
	}
	if c.ServerAddr != "" {
		if err := ValidateAddr(c.ServerAddr); err != nil {
			return fmt.Errorf("server_addr: %w", err)
		}
	}
	if err := chunk.CheckBounds(c.MinChunk, c.MaxChunk); err != nil {
		return fmt.Errorf("min_chunk/max_chunk: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Std())
	}
	if c.IdleTimeout < 0 || c.ShutdownGrace < 0 {
		return fmt.Errorf("idle_timeout and shutdown_grace cannot be negative")
	}
	if _, err := textenc.Lookup(c.Encoding); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if _, err := transport.ParseKind(c.Transport); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// ValidatePort accepts unprivileged ports only.
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("port %d out of range %d-%d", port, MinPort, MaxPort)
	}
	return nil
}

// ValidateIPv4 accepts dotted-quad literals only.
func ValidateIPv4(host string) error {
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil || strings.Contains(host, ":") {
		return fmt.Errorf("%q is not an IPv4 address", host)
	}
	return nil
}

// ValidateAddr checks an IPv4:port target.
func ValidateAddr(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("address %q: %w", addr, err)
	}
	if err := ValidateIPv4(host); err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("port %q is not a number", portStr)
	}
	return ValidatePort(port)
}

// Values lists every key with its current value, sorted by key.
func (c *Config) Values() [][2]string {
	m := map[string]string{
		"listen_port":    strconv.Itoa(c.ListenPort),
		"server_addr":    c.ServerAddr,
		"min_chunk":      strconv.Itoa(c.MinChunk),
		"max_chunk":      strconv.Itoa(c.MaxChunk),
		"timeout":        c.Timeout.Std().String(),
		"idle_timeout":   c.IdleTimeout.Std().String(),
		"encoding":       c.Encoding,
		"transport":      c.Transport,
		"log_level":      c.LogLevel,
		"mqtt_broker":    c.MQTTBroker,
		"registry_url":   c.RegistryURL,
		"shutdown_grace": c.ShutdownGrace.Std().String(),
	}
	out := make([][2]string, 0, len(m))
	for k, v := range m {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Set assigns one key from its string form and revalidates. c is left
// unchanged on error.
func (c *Config) Set(key, value string) error {
	next := *c
	var err error
	switch key {
	case "listen_port":
		next.ListenPort, err = strconv.Atoi(value)
	case "server_addr":
		next.ServerAddr = value
	case "min_chunk":
		next.MinChunk, err = strconv.Atoi(value)
	case "max_chunk":
		next.MaxChunk, err = strconv.Atoi(value)
	case "timeout":
		err = next.Timeout.UnmarshalText([]byte(value))
	case "idle_timeout":
		err = next.IdleTimeout.UnmarshalText([]byte(value))
	case "shutdown_grace":
		err = next.ShutdownGrace.UnmarshalText([]byte(value))
	case "encoding":
		next.Encoding = value
	case "transport":
		next.Transport = value
	case "log_level":
		next.LogLevel = value
	case "mqtt_broker":
		next.MQTTBroker = value
	case "registry_url":
		next.RegistryURL = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
