// Package discord provides the Discord bot layer for cadenza. It owns the
// discordgo.Session lifecycle, implements the [cadenza.Gateway] contract,
// and routes the gateway's voice handshake events to the owning players.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/cadenza-audio/cadenza/pkg/cadenza"
)

// Bot owns the Discord gateway connection. It satisfies [cadenza.Gateway].
type Bot struct {
	session *discordgo.Session

	mu     sync.RWMutex
	client *cadenza.Client

	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
}

// New creates a Bot with the voice intents cadenza needs and registers the
// gateway event handlers. The session is not opened yet; call [Bot.Open].
func New(token string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		session: session,
		ready:   make(chan struct{}),
	}

	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
		b.readyOnce.Do(func() { close(b.ready) })
	})
	session.AddHandler(b.handleVoiceServerUpdate)
	session.AddHandler(b.handleVoiceStateUpdate)

	return b, nil
}

// BindClient attaches the cadenza client so voice handshake events can be
// routed to its players. Must be called before any player joins voice.
func (b *Bot) BindClient(c *cadenza.Client) {
	b.mu.Lock()
	b.client = c
	b.mu.Unlock()
}

// Session returns the underlying discordgo session, for subsystems that need
// direct Discord API access (e.g. sending playback notices to a channel).
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Open connects to the Discord gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

// Close disconnects from Discord. Safe to call multiple times.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

// WaitUntilReady blocks until the gateway has delivered its ready payload.
func (b *Bot) WaitUntilReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserID returns the bot's own user ID.
func (b *Bot) UserID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

// UpdateVoiceState moves the bot into the given voice channel, or out of
// voice when channelID is empty.
func (b *Bot) UpdateVoiceState(_ context.Context, guildID, channelID string, selfDeaf bool) error {
	if err := b.session.ChannelVoiceJoinManual(guildID, channelID, false, selfDeaf); err != nil {
		return fmt.Errorf("discord: update voice state: %w", err)
	}
	return nil
}

func (b *Bot) boundClient() *cadenza.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

// handleVoiceServerUpdate forwards the VOICE_SERVER_UPDATE half of the voice
// handshake to the guild's player.
func (b *Bot) handleVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	client := b.boundClient()
	if client == nil {
		return
	}
	player, ok := client.Player(v.GuildID)
	if !ok {
		return
	}

	event, err := json.Marshal(map[string]string{
		"token":    v.Token,
		"guild_id": v.GuildID,
		"endpoint": v.Endpoint,
	})
	if err != nil {
		slog.Warn("discord: encode voice server update", "guild", v.GuildID, "error", err)
		return
	}
	if err := player.OnVoiceServerUpdate(context.Background(), event); err != nil {
		slog.Warn("discord: forward voice server update", "guild", v.GuildID, "error", err)
	}
}

// handleVoiceStateUpdate forwards the bot's own VOICE_STATE_UPDATE half of
// the voice handshake to the guild's player. Other users' state changes are
// ignored.
func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}

	client := b.boundClient()
	if client == nil {
		return
	}
	player, ok := client.Player(v.GuildID)
	if !ok {
		return
	}

	if err := player.OnVoiceStateUpdate(context.Background(), v.SessionID, v.ChannelID); err != nil {
		slog.Warn("discord: forward voice state update", "guild", v.GuildID, "error", err)
	}
}
