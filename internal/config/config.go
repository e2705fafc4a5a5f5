// Package config provides the configuration schema and loader for the
// andelink demo bot.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration with YAML decoding from strings like "5s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Discord DiscordConfig `yaml:"discord"`
	Metrics MetricsConfig `yaml:"metrics"`
	Cluster ClusterConfig `yaml:"cluster"`
}

// DiscordConfig holds the bot's gateway settings.
type DiscordConfig struct {
	// Token is the bot token.
	Token string `yaml:"token"`

	// CommandPrefix is the text-command prefix. Defaults to "!".
	CommandPrefix string `yaml:"command_prefix"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// ListenAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}

// ClusterConfig configures the audio node cluster.
type ClusterConfig struct {
	// ReconnectAttempts is the ceiling on consecutive failed connection
	// attempts before a node is permanently removed. Defaults to 5.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	// ReconnectBackoff is the fixed delay between connection attempts.
	// Defaults to 5s.
	ReconnectBackoff Duration `yaml:"reconnect_backoff"`

	// Nodes lists the backend audio servers to connect to.
	Nodes []NodeEntry `yaml:"nodes"`
}

// NodeEntry describes one backend audio server.
type NodeEntry struct {
	// Host is the server's hostname or IP. Required.
	Host string `yaml:"host"`

	// Port is the server's control port. Defaults to 2333.
	Port int `yaml:"port"`

	// SSL selects wss/https transport.
	SSL bool `yaml:"ssl"`

	// Password is the shared secret expected by the server.
	Password string `yaml:"password"`

	// Shards is the shard count announced to the server. Defaults to 1.
	Shards int `yaml:"shards"`
}
