package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
discord:
  token: "bot-token"
nodes:
  - identifier: main
    host: localhost
    port: 2333
    password: youshallnotpass
  - identifier: backup
    host: backup.example.com
    port: 5000
    password: secret
    variant: andesite
    secure: true
    reconnect: true
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != LogInfo {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Discord.Token != "bot-token" {
		t.Errorf("unexpected token %q", cfg.Discord.Token)
	}
	if len(cfg.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(cfg.Nodes))
	}

	backup := cfg.Nodes[1]
	if backup.Variant != VariantAndesite || !backup.Secure || !backup.Reconnect {
		t.Errorf("unexpected backup node: %+v", backup)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	yaml := `
discord:
  token: "t"
  tokne: "typo"
nodes:
  - identifier: main
    host: localhost
    port: 2333
    password: p
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadFromReader_TokenFromEnvironment(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")

	yaml := `
nodes:
  - identifier: main
    host: localhost
    port: 2333
    password: p
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("expected the token from DISCORD_TOKEN, got %q", cfg.Discord.Token)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Discord: DiscordConfig{Token: "t"},
			Nodes: []NodeConfig{
				{Identifier: "main", Host: "localhost", Port: 2333, Password: "p"},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		if err := Validate(base()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := base()
		cfg.Discord.Token = ""
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "discord.token is required") {
			t.Errorf("expected token error, got %v", err)
		}
	})

	t.Run("no nodes", func(t *testing.T) {
		cfg := base()
		cfg.Nodes = nil
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "at least one node") {
			t.Errorf("expected node count error, got %v", err)
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := base()
		cfg.Server.LogLevel = "verbose"
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "server.log_level") {
			t.Errorf("expected log level error, got %v", err)
		}
	})

	t.Run("duplicate node identifier", func(t *testing.T) {
		cfg := base()
		cfg.Nodes = append(cfg.Nodes, NodeConfig{Identifier: "main", Host: "other", Port: 2333, Password: "p"})
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("expected duplicate identifier error, got %v", err)
		}
	})

	t.Run("invalid variant", func(t *testing.T) {
		cfg := base()
		cfg.Nodes[0].Variant = "frostbite"
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "variant") {
			t.Errorf("expected variant error, got %v", err)
		}
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := base()
		cfg.Nodes[0].Port = 0
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), "port") {
			t.Errorf("expected port error, got %v", err)
		}
	})

	t.Run("multiple failures are joined", func(t *testing.T) {
		cfg := &Config{}
		err := Validate(cfg)
		if err == nil {
			t.Fatal("expected an error")
		}
		msg := err.Error()
		if !strings.Contains(msg, "discord.token") || !strings.Contains(msg, "at least one node") {
			t.Errorf("expected all failures in the joined error, got %q", msg)
		}
	})
}
