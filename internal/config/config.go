// Package config provides the configuration schema and loader for the
// cadenza bot.
package config

// LogLevel controls log verbosity for the bot.
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

// Variant selects the protocol dialect spoken by a playback node.
type Variant string

const (
	// VariantLavalink is a standard Lavalink node.
	VariantLavalink Variant = "lavalink"

	// VariantAndesite is an Andesite node speaking its native protocol.
	VariantAndesite Variant = "andesite"

	// VariantAndesiteCompat is an Andesite node serving its
	// Lavalink-compatible endpoint.
	VariantAndesiteCompat Variant = "andesite-compat"
)

// IsValid reports whether v is a recognised node variant.
func (v Variant) IsValid() bool {
	switch v {
	case VariantLavalink, VariantAndesite, VariantAndesiteCompat:
		return true
	}
	return false
}

// Config is the root configuration structure for the cadenza bot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Discord DiscordConfig `yaml:"discord"`
	Nodes   []NodeConfig  `yaml:"nodes"`
}

// ServerConfig holds network and logging settings for the admin HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the admin server (health and metrics)
	// listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the Discord gateway settings.
type DiscordConfig struct {
	// Token is the bot token. When empty, the DISCORD_TOKEN environment
	// variable is used instead.
	Token string `yaml:"token"`
}

// NodeConfig describes a single playback node to connect to.
type NodeConfig struct {
	// Identifier is a unique human-readable name for this node (used in
	// logs and the node registry).
	Identifier string `yaml:"identifier"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`

	// Variant selects the protocol dialect. Defaults to "lavalink".
	Variant Variant `yaml:"variant"`

	// Secure selects wss/https instead of ws/http.
	Secure bool `yaml:"secure"`

	// Reconnect enables automatic reconnection with backoff when the
	// node's websocket drops.
	Reconnect bool `yaml:"reconnect"`
}
