package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	if cfg.Cluster.ReconnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("cluster.reconnect_attempts %d must not be negative", cfg.Cluster.ReconnectAttempts))
	}

	if len(cfg.Cluster.Nodes) == 0 {
		errs = append(errs, errors.New("cluster.nodes must list at least one audio server"))
	}

	seen := make(map[string]int, len(cfg.Cluster.Nodes))
	for i, node := range cfg.Cluster.Nodes {
		prefix := fmt.Sprintf("cluster.nodes[%d]", i)
		if node.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", prefix))
		}
		if node.Port < 0 || node.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port %d is out of range [0, 65535]", prefix, node.Port))
		}
		if node.Password == "" {
			slog.Warn("audio node has no password configured; the server default will be used",
				"host", node.Host, "port", node.Port)
		}

		addr := fmt.Sprintf("%s:%d", node.Host, node.Port)
		if prev, ok := seen[addr]; ok {
			errs = append(errs, fmt.Errorf("%s duplicates cluster.nodes[%d] (%s)", prefix, prev, addr))
		}
		seen[addr] = i
	}

	return errors.Join(errs...)
}
