package cadenza

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"
)

// defaultRequestTimeout bounds the wait for a pong or stats response.
const defaultRequestTimeout = 30 * time.Second

// NodeConfig describes a playback node to connect to.
type NodeConfig struct {
	// Identifier is the unique registry name for this node.
	Identifier string

	Host     string
	Port     int
	Password string

	// Secure selects wss/https instead of ws/http.
	Secure bool

	// Capabilities selects the protocol dialect. The zero value means
	// [Lavalink].
	Capabilities Capabilities

	// OnClosed, if set, is called after the node's listen loop terminates
	// because the remote closed the websocket or a read failed. It is not
	// called for locally requested disconnects. Reconnection policy lives
	// with the caller; see [Reconnector].
	OnClosed func(node *Node, err error)
}

// Node is a single websocket connection to a Lavalink- or
// Andesite-compatible playback server, plus the players it hosts.
//
// A Node never reconnects on its own. When the connection drops, every
// player on it is destroyed and the node must be connected again explicitly.
type Node struct {
	client *Client
	logger *slog.Logger

	identifier string
	host       string
	port       int
	password   string
	secure     bool
	caps       Capabilities
	onClosed   func(node *Node, err error)

	requestTimeout time.Duration
	searchBackoff  time.Duration

	mu           sync.RWMutex
	conn         *websocket.Conn
	connected    bool
	listenCancel context.CancelFunc
	listenDone   chan struct{}
	players      map[string]*Player

	stats         *protocol.Stats
	andesiteStats *protocol.AndesiteStats
	metadata      *protocol.Metadata
	connectionID  int64

	// reqMu serialises ping and get-stats exchanges so a response is always
	// matched to the request that is currently in flight.
	reqMu   sync.Mutex
	pongCh  chan struct{}
	statsCh chan *protocol.AndesiteStats
}

func newNode(c *Client, cfg NodeConfig) *Node {
	caps := cfg.Capabilities
	if caps.VoiceUpdateOp == "" {
		caps = Lavalink()
	}
	return &Node{
		client:         c,
		logger:         c.logger.With("component", "node", "node", cfg.Identifier),
		identifier:     cfg.Identifier,
		host:           cfg.Host,
		port:           cfg.Port,
		password:       cfg.Password,
		secure:         cfg.Secure,
		caps:           caps,
		onClosed:       cfg.OnClosed,
		requestTimeout: defaultRequestTimeout,
		searchBackoff:  time.Second,
		players:        make(map[string]*Player),
		pongCh:         make(chan struct{}, 1),
		statsCh:        make(chan *protocol.AndesiteStats, 1),
	}
}

// Identifier returns the node's registry name.
func (n *Node) Identifier() string { return n.identifier }

// Capabilities returns the node's protocol dialect.
func (n *Node) Capabilities() Capabilities { return n.caps }

// IsConnected reports whether the websocket is up.
func (n *Node) IsConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected && n.conn != nil
}

// Stats returns the most recent flat stats snapshot pushed by the node, or
// nil if none arrived yet.
func (n *Node) Stats() *protocol.Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// AndesiteStats returns the most recent nested stats document, or nil.
func (n *Node) AndesiteStats() *protocol.AndesiteStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.andesiteStats
}

// Metadata returns the node's handshake metadata, or nil if the node does
// not push it.
func (n *Node) Metadata() *protocol.Metadata {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.metadata
}

// ConnectionID returns the node's resumable connection ID, or zero if the
// node does not push one.
func (n *Node) ConnectionID() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connectionID
}

func (n *Node) websocketURL() string {
	scheme := "ws"
	if n.secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", n.host, n.port),
		Path:   "/" + n.caps.SocketPath,
	}
	return u.String()
}

func (n *Node) restURL(path string, query url.Values) string {
	scheme := "http"
	if n.secure {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     fmt.Sprintf("%s:%d", n.host, n.port),
		Path:     path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Connect establishes the websocket, registers the node with its client, and
// starts the listen loop. Connecting an already connected node is a no-op.
//
// A handshake rejected with 401 or 403 returns a [*ConnectionError] with
// InvalidAuth set.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.RLock()
	alreadyUp := n.connected
	n.mu.RUnlock()
	if alreadyUp {
		return nil
	}

	if err := n.client.gateway.WaitUntilReady(ctx); err != nil {
		return &ConnectionError{Identifier: n.identifier, Err: fmt.Errorf("waiting for gateway: %w", err)}
	}

	header := http.Header{}
	header.Set("Authorization", n.password)
	header.Set("User-Id", n.client.gateway.UserID())
	header.Set("Client-Name", n.client.clientName)

	//nolint:bodyclose // the websocket library owns the response body.
	conn, resp, err := websocket.Dial(ctx, n.websocketURL(), &websocket.DialOptions{
		HTTPClient: n.client.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &ConnectionError{Identifier: n.identifier, InvalidAuth: true, Err: err}
		}
		return &ConnectionError{Identifier: n.identifier, Err: err}
	}
	conn.SetReadLimit(1 << 20)

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n.mu.Lock()
	n.conn = conn
	n.connected = true
	n.listenCancel = cancel
	n.listenDone = done
	n.mu.Unlock()

	n.client.registerNode(n)
	n.logger.Info("node connected", "url", n.websocketURL())

	go n.listen(listenCtx, conn, done)
	return nil
}

// listen reads frames until the connection drops or Disconnect cancels ctx.
func (n *Node) listen(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Local disconnect already in progress.
				return
			}
			closeErr := err
			if status := websocket.CloseStatus(err); status != -1 {
				closeErr = &ConnectionClosedError{Identifier: n.identifier, Code: status, Reason: err.Error()}
			}
			n.logger.Warn("node connection lost", "error", closeErr)
			n.Disconnect()
			n.client.publish(NodeDisconnected{Node: n, Err: closeErr})
			if n.onClosed != nil {
				n.onClosed(n, closeErr)
			}
			return
		}
		n.handleFrame(data)
	}
}

// handleFrame dispatches one inbound payload. Malformed or unrecognised
// frames are logged and dropped; they never tear down the connection.
func (n *Node) handleFrame(data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		n.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	switch frame.Op {
	case protocol.OpPlayerUpdate, protocol.OpPlayerUpdateDashed:
		update, err := protocol.DecodePlayerUpdate(frame.Raw)
		if err != nil {
			n.logger.Warn("dropping malformed player update", "error", err)
			return
		}
		player, ok := n.Player(update.GuildID)
		if !ok {
			n.logger.Debug("player update for unknown guild", "guild", update.GuildID)
			return
		}
		player.updateState(update.State)

	case protocol.OpEvent:
		event, err := protocol.DecodeEvent(frame.Raw)
		if err != nil {
			n.logger.Warn("dropping undecodable event", "error", err)
			return
		}
		player, ok := n.Player(event.EventGuildID())
		if !ok {
			n.logger.Debug("event for unknown guild", "guild", event.EventGuildID(), "type", event.Type())
			return
		}
		player.dispatchEvent(event)

	case protocol.OpStats:
		stats, andesiteStats, err := protocol.DecodeStatsFrame(frame.Raw)
		if err != nil {
			n.logger.Warn("dropping malformed stats frame", "error", err)
			return
		}
		n.mu.Lock()
		if stats != nil {
			n.stats = stats
		}
		if andesiteStats != nil {
			n.andesiteStats = andesiteStats
		}
		n.mu.Unlock()
		if andesiteStats != nil {
			select {
			case n.statsCh <- andesiteStats:
			default:
			}
		}

	case protocol.OpMetadata:
		meta, err := protocol.DecodeMetadata(frame.Raw)
		if err != nil {
			n.logger.Warn("dropping malformed metadata frame", "error", err)
			return
		}
		n.mu.Lock()
		n.metadata = &meta
		n.mu.Unlock()

	case protocol.OpConnectionID:
		id, err := protocol.DecodeConnectionID(frame.Raw)
		if err != nil {
			n.logger.Warn("dropping malformed connection-id frame", "error", err)
			return
		}
		n.mu.Lock()
		n.connectionID = id.ID
		n.mu.Unlock()

	case protocol.OpPong:
		select {
		case n.pongCh <- struct{}{}:
		default:
		}

	default:
		n.logger.Warn("dropping frame with unknown op", "op", frame.Op)
	}
}

// send marshals and writes one command frame.
func (n *Node) send(ctx context.Context, payload any) error {
	n.mu.RLock()
	conn := n.conn
	n.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, n.identifier)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cadenza: encode command: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("cadenza: send to node %q: %w", n.identifier, err)
	}
	return nil
}

// Ping measures the round-trip time to the node. Concurrent pings are
// serialised so each pong is matched to its own request.
func (n *Node) Ping(ctx context.Context) (time.Duration, error) {
	if !n.caps.Ping {
		return 0, fmt.Errorf("%w: ping", ErrUnsupportedOp)
	}

	n.reqMu.Lock()
	defer n.reqMu.Unlock()

	// Drop any pong left over from a timed-out exchange.
	select {
	case <-n.pongCh:
	default:
	}

	start := time.Now()
	if err := n.send(ctx, protocol.PingCommand{Op: protocol.OpPing}); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.requestTimeout)
	defer cancel()
	select {
	case <-n.pongCh:
		return time.Since(start), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("cadenza: ping to node %q: %w", n.identifier, ctx.Err())
	}
}

// RequestStats asks the node for a one-shot stats document. Concurrent
// requests are serialised the same way as [Node.Ping].
func (n *Node) RequestStats(ctx context.Context) (*protocol.AndesiteStats, error) {
	if !n.caps.GetStats {
		return nil, fmt.Errorf("%w: get-stats", ErrUnsupportedOp)
	}

	n.reqMu.Lock()
	defer n.reqMu.Unlock()

	select {
	case <-n.statsCh:
	default:
	}

	if err := n.send(ctx, protocol.GetStatsCommand{Op: protocol.OpGetStats}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.requestTimeout)
	defer cancel()
	select {
	case stats := <-n.statsCh:
		return stats, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("cadenza: get-stats from node %q: %w", n.identifier, ctx.Err())
	}
}

// Disconnect tears down the websocket and destroys every player hosted on
// this node. It is safe to call on an already disconnected node.
func (n *Node) Disconnect() {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return
	}
	n.connected = false
	conn := n.conn
	n.conn = nil
	cancel := n.listenCancel
	n.listenCancel = nil
	players := make([]*Player, 0, len(n.players))
	for _, p := range n.players {
		players = append(players, p)
	}
	n.players = make(map[string]*Player)
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, p := range players {
		if err := p.Destroy(context.Background()); err != nil {
			n.logger.Warn("destroying player on disconnect", "guild", p.GuildID(), "error", err)
		}
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "node disconnecting")
	}
	n.logger.Info("node disconnected")
}

// Destroy disconnects the node and removes it from the client registry.
func (n *Node) Destroy() {
	n.Disconnect()
	n.client.unregisterNode(n.identifier)
	n.logger.Info("node destroyed")
}

// Player returns the player for a guild hosted on this node.
func (n *Node) Player(guildID string) (*Player, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.players[guildID]
	return p, ok
}

// Players returns all players hosted on this node.
func (n *Node) Players() []*Player {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Player, 0, len(n.players))
	for _, p := range n.players {
		out = append(out, p)
	}
	return out
}

func (n *Node) addPlayer(p *Player) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.players[p.guildID]; exists {
		return fmt.Errorf("%w: %s", ErrPlayerAlreadyExists, p.guildID)
	}
	n.players[p.guildID] = p
	return nil
}

func (n *Node) removePlayer(guildID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.players, guildID)
}
