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
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
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

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (or set DISCORD_TOKEN)"))
	}

	// Nodes
	if len(cfg.Nodes) == 0 {
		errs = append(errs, errors.New("at least one node must be configured"))
	}

	identifiersSeen := make(map[string]int, len(cfg.Nodes))

	for i, node := range cfg.Nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)
		if node.Identifier == "" {
			errs = append(errs, fmt.Errorf("%s.identifier is required", prefix))
		} else {
			if prev, ok := identifiersSeen[node.Identifier]; ok {
				errs = append(errs, fmt.Errorf("%s.identifier %q is a duplicate of nodes[%d]", prefix, node.Identifier, prev))
			}
			identifiersSeen[node.Identifier] = i
		}
		if node.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", prefix))
		}
		if node.Port < 1 || node.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port %d is out of range [1, 65535]", prefix, node.Port))
		}
		if node.Variant != "" && !node.Variant.IsValid() {
			errs = append(errs, fmt.Errorf("%s.variant %q is invalid; valid values: lavalink, andesite, andesite-compat", prefix, node.Variant))
		}
		if node.Password == "" {
			slog.Warn("node has no password configured; the node must allow unauthenticated access",
				"node", node.Identifier,
			)
		}
	}

	return errors.Join(errs...)
}
