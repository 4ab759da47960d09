package cadenza

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cadenza-audio/cadenza/pkg/cadenza/filters"
	"github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"
	"github.com/cadenza-audio/cadenza/pkg/cadenza/queue"
)

const (
	defaultVolume = 100

	// defaultIdleTimeout is how long the playback loop waits on an empty
	// queue before destroying the player.
	defaultIdleTimeout = 120 * time.Second

	// defaultStartTimeout is how long the playback loop waits for the node
	// to confirm a track started before skipping it.
	defaultStartTimeout = 10 * time.Second
)

// Player is the per-guild playback state machine. It mirrors the server-side
// player on its node, forwards the Discord voice handshake, and runs a loop
// that plays tracks from its [queue.Queue] one after another.
type Player struct {
	client *Client
	node   *Node
	queue  *queue.Queue
	logger *slog.Logger

	guildID string

	idleTimeout  time.Duration
	startTimeout time.Duration
	now          func() time.Time

	mu           sync.Mutex
	channelID    string
	current      *protocol.Track
	volume       int
	paused       bool
	lastPosition int64
	lastUpdate   time.Time
	voiceSession string
	voiceEvent   json.RawMessage
	destroyed    bool
	loopCancel   context.CancelFunc
	loopDone     chan struct{}

	// trackStart and trackEnd carry one pending confirmation each from the
	// dispatch path to the playback loop.
	trackStart chan struct{}
	trackEnd   chan struct{}
}

func newPlayer(c *Client, n *Node, guildID string) *Player {
	return &Player{
		client:       c,
		node:         n,
		queue:        queue.New(),
		logger:       c.logger.With("component", "player", "guild", guildID, "node", n.identifier),
		guildID:      guildID,
		idleTimeout:  defaultIdleTimeout,
		startTimeout: defaultStartTimeout,
		now:          time.Now,
		volume:       defaultVolume,
		trackStart:   make(chan struct{}, 1),
		trackEnd:     make(chan struct{}, 1),
	}
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Node returns the node hosting this player.
func (p *Player) Node() *Node { return p.node }

// Queue returns the player's track queue.
func (p *Player) Queue() *queue.Queue { return p.queue }

// ChannelID returns the voice channel the bot currently occupies for this
// guild, or empty when not connected to voice.
func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID
}

// IsConnected reports whether the bot occupies a voice channel in this
// guild.
func (p *Player) IsConnected() bool { return p.ChannelID() != "" }

// Current returns the track the node is playing, or nil.
func (p *Player) Current() *protocol.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	t := *p.current
	return &t
}

// IsPlaying reports whether a track is loaded on the server-side player.
func (p *Player) IsPlaying() bool { return p.Current() != nil }

// IsPaused reports the local pause flag.
func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Volume returns the local volume value.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Position returns the current playback position, extrapolated from the last
// player update. With no current track it returns zero; while paused the
// position is frozen; an extrapolation past the track's end reports zero.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return 0
	}
	length := p.current.Info.Length

	if p.paused {
		return time.Duration(min(p.lastPosition, length)) * time.Millisecond
	}

	pos := p.lastPosition
	if !p.lastUpdate.IsZero() {
		pos += p.now().Sub(p.lastUpdate).Milliseconds()
	}
	if pos > length {
		return 0
	}
	if pos < 0 {
		pos = 0
	}
	return time.Duration(pos) * time.Millisecond
}

// updateState absorbs a playerUpdate snapshot. Paused and volume are only
// authoritative when the node includes them.
func (p *Player) updateState(state protocol.PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPosition = state.Position
	p.lastUpdate = p.now()
	if state.Paused != nil {
		p.paused = *state.Paused
	}
	if state.Volume != nil {
		p.volume = *state.Volume
	}
}

// Connect asks Discord to move the bot into the given voice channel. The
// channel is recorded once Discord confirms via the voice state update.
func (p *Player) Connect(ctx context.Context, channelID string) error {
	return p.client.gateway.UpdateVoiceState(ctx, p.guildID, channelID, true)
}

// Disconnect asks Discord to drop the bot out of voice and clears the
// recorded voice handshake.
func (p *Player) Disconnect(ctx context.Context) error {
	err := p.client.gateway.UpdateVoiceState(ctx, p.guildID, "", false)
	p.mu.Lock()
	p.channelID = ""
	p.voiceSession = ""
	p.voiceEvent = nil
	p.mu.Unlock()
	return err
}

// OnVoiceServerUpdate records the VOICE_SERVER_UPDATE half of the Discord
// voice handshake. event is the raw gateway payload (token, guild_id,
// endpoint). Once both halves are present the combined update is forwarded
// to the node.
func (p *Player) OnVoiceServerUpdate(ctx context.Context, event json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voiceEvent = append(json.RawMessage(nil), event...)
	return p.forwardVoiceUpdateLocked(ctx)
}

// OnVoiceStateUpdate records the bot's own VOICE_STATE_UPDATE half of the
// handshake. An empty channelID means the bot left voice and clears the
// handshake record.
func (p *Player) OnVoiceStateUpdate(ctx context.Context, sessionID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channelID = channelID
	if channelID == "" {
		p.voiceSession = ""
		p.voiceEvent = nil
		return nil
	}
	p.voiceSession = sessionID
	return p.forwardVoiceUpdateLocked(ctx)
}

// forwardVoiceUpdateLocked sends the voice update once both handshake halves
// are present. It runs with p.mu held so two concurrent updates cannot both
// observe the record as newly complete and double-send.
func (p *Player) forwardVoiceUpdateLocked(ctx context.Context) error {
	if p.voiceSession == "" || p.voiceEvent == nil {
		return nil
	}
	return p.node.send(ctx, protocol.VoiceUpdateCommand{
		Op:        p.node.caps.VoiceUpdateOp,
		GuildID:   p.guildID,
		SessionID: p.voiceSession,
		Event:     p.voiceEvent,
	})
}

// PlayOption adjusts a play command.
type PlayOption func(*playOptions)

type playOptions struct {
	start     time.Duration
	end       time.Duration
	noReplace bool
	paused    bool
}

// WithStartTime starts playback at an offset into the track. Offsets outside
// the open interval (0, track length) are ignored.
func WithStartTime(d time.Duration) PlayOption { return func(o *playOptions) { o.start = d } }

// WithEndTime stops playback at an offset into the track. Offsets outside
// the open interval (0, track length) are ignored.
func WithEndTime(d time.Duration) PlayOption { return func(o *playOptions) { o.end = d } }

// WithNoReplace asks the node to ignore the play command if a track is
// already playing.
func WithNoReplace() PlayOption { return func(o *playOptions) { o.noReplace = true } }

// WithPaused starts the track paused.
func WithPaused() PlayOption { return func(o *playOptions) { o.paused = true } }

// Play sends a play command for the given track and records it as current.
// Position tracking is reset before the command is sent.
func (p *Player) Play(ctx context.Context, track protocol.Track, opts ...PlayOption) error {
	var o playOptions
	for _, apply := range opts {
		apply(&o)
	}

	cmd := protocol.PlayCommand{
		Op:        protocol.OpPlay,
		GuildID:   p.guildID,
		Track:     track.ID,
		NoReplace: o.noReplace,
		Pause:     o.paused,
	}
	if ms := o.start.Milliseconds(); ms > 0 && ms < track.Info.Length {
		cmd.StartTime = ms
	}
	if ms := o.end.Milliseconds(); ms > 0 && ms < track.Info.Length {
		cmd.EndTime = ms
	}

	p.mu.Lock()
	p.lastPosition = 0
	p.lastUpdate = time.Time{}
	p.mu.Unlock()

	if err := p.node.send(ctx, cmd); err != nil {
		return err
	}

	p.mu.Lock()
	t := track
	p.current = &t
	p.paused = o.paused
	p.mu.Unlock()

	p.logger.Debug("sent play", "title", track.Info.Title, "source", track.Source())
	return nil
}

// Stop stops the current track and clears it.
func (p *Player) Stop(ctx context.Context) error {
	if err := p.node.send(ctx, protocol.StopCommand{Op: protocol.OpStop, GuildID: p.guildID}); err != nil {
		return err
	}
	p.clearCurrent()
	return nil
}

// SetPaused pauses or resumes playback. The local flag only changes after
// the command was sent.
func (p *Player) SetPaused(ctx context.Context, paused bool) error {
	if err := p.node.send(ctx, protocol.PauseCommand{Op: protocol.OpPause, GuildID: p.guildID, Pause: paused}); err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return nil
}

// SetVolume sets the player volume. The server-defined range is 0 to 1000.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 1000 {
		return fmt.Errorf("cadenza: volume %d out of range [0, 1000]", volume)
	}
	if err := p.node.send(ctx, protocol.VolumeCommand{Op: protocol.OpVolume, GuildID: p.guildID, Volume: volume}); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// Seek moves the playback position. With no current track it is a no-op.
func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	p.mu.Lock()
	hasTrack := p.current != nil
	p.mu.Unlock()
	if !hasTrack {
		return nil
	}

	ms := position.Milliseconds()
	if err := p.node.send(ctx, protocol.SeekCommand{Op: protocol.OpSeek, GuildID: p.guildID, Position: ms}); err != nil {
		return err
	}
	p.mu.Lock()
	p.lastPosition = ms
	p.lastUpdate = p.now()
	p.mu.Unlock()
	return nil
}

// SetFilter applies a filter payload to the server-side player.
func (p *Player) SetFilter(ctx context.Context, filter filters.Filter) error {
	return p.node.send(ctx, protocol.FiltersCommand{
		Op:      protocol.OpFilters,
		GuildID: p.guildID,
		Payload: filter.Payload(),
	})
}

// dispatchEvent routes one decoded wire event: it wakes the playback loop
// where appropriate and publishes the lifted event to client handlers.
func (p *Player) dispatchEvent(event protocol.Event) {
	switch event.(type) {
	case *protocol.TrackStartEvent:
		raiseSignal(p.trackStart)
	case *protocol.TrackEndEvent, *protocol.TrackExceptionEvent, *protocol.TrackStuckEvent:
		raiseSignal(p.trackEnd)
	}

	if published := wrapProtocolEvent(p, event); published != nil {
		p.client.publish(published)
	}
}

// start launches the playback loop.
func (p *Player) start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.loopCancel = cancel
	p.loopDone = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.run(ctx)
	}()
}

// run plays queued tracks one after another until the player is destroyed.
// Metadata-only tracks are resolved through the node first; tracks that
// cannot be resolved, played, or confirmed started are skipped with a
// [TrackSkipped] notice.
func (p *Player) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.queue.Wait():
		case <-time.After(p.idleTimeout):
			p.logger.Info("destroying player after queue idle timeout")
			if err := p.Destroy(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("destroying idle player", "error", err)
			}
			return
		}

		track, ok := p.queue.Get(0, true)
		if !ok {
			continue
		}

		if track.NeedsResolution() {
			resolved, err := p.resolve(ctx, track)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("skipping unresolvable track", "title", track.Info.Title, "error", err)
				p.client.publish(TrackSkipped{Player: p, Track: track, Reason: "track could not be resolved"})
				continue
			}
			track = resolved
		}

		drainSignal(p.trackStart)
		drainSignal(p.trackEnd)

		if err := p.Play(ctx, track); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("skipping track after failed play", "title", track.Info.Title, "error", err)
			p.client.publish(TrackSkipped{Player: p, Track: track, Reason: "play command failed"})
			continue
		}

		select {
		case <-p.trackStart:
		case <-time.After(p.startTimeout):
			p.logger.Warn("skipping track, node did not confirm start", "title", track.Info.Title)
			p.client.publish(TrackSkipped{Player: p, Track: track, Reason: "node did not confirm track start"})
			p.clearCurrent()
			continue
		case <-ctx.Done():
			return
		}

		select {
		case <-p.trackEnd:
		case <-ctx.Done():
			return
		}

		switch p.queue.Loop() {
		case queue.LoopCurrent:
			p.queue.PutAt(0, track)
		case queue.LoopQueue:
			p.queue.Put(track)
		}
		p.clearCurrent()
	}
}

// resolve substitutes a metadata-only track with a real node track via
// search. SoundCloud-sourced metadata searches SoundCloud; everything else
// goes through the default search routing.
func (p *Player) resolve(ctx context.Context, track protocol.Track) (protocol.Track, error) {
	query := strings.TrimSpace(track.Info.Title + " " + track.Info.Author)
	if strings.EqualFold(track.Info.SourceName, "soundcloud") {
		query = "scsearch:" + query
	}

	result, err := p.node.Search(ctx, query, true)
	if err != nil {
		return protocol.Track{}, err
	}
	if len(result.Tracks) == 0 {
		return protocol.Track{}, fmt.Errorf("cadenza: no results for %q", query)
	}
	return result.Tracks[0], nil
}

func (p *Player) clearCurrent() {
	p.mu.Lock()
	p.current = nil
	p.lastPosition = 0
	p.lastUpdate = time.Time{}
	p.mu.Unlock()
}

// Destroy stops the playback loop, leaves voice, tears down the server-side
// player when the node is still connected, and removes the player from its
// node. It is safe to call more than once and safe to call on a player whose
// node already disconnected.
func (p *Player) Destroy(ctx context.Context) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	cancel := p.loopCancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error
	if err := p.Disconnect(ctx); err != nil {
		errs = append(errs, err)
	}
	if p.node.IsConnected() {
		if err := p.node.send(ctx, protocol.StopCommand{Op: protocol.OpStop, GuildID: p.guildID}); err != nil {
			errs = append(errs, err)
		}
		if err := p.node.send(ctx, protocol.DestroyCommand{Op: protocol.OpDestroy, GuildID: p.guildID}); err != nil {
			errs = append(errs, err)
		}
	}
	p.node.removePlayer(p.guildID)

	p.logger.Info("player destroyed")
	return errors.Join(errs...)
}

func raiseSignal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drainSignal(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
