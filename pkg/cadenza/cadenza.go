package cadenza

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
)

const defaultClientName = "cadenza/0.1.0"

// Client is the registry of playback nodes and their players. It also owns
// the event bus that surfaces playback notifications to the host bot.
type Client struct {
	gateway    Gateway
	httpClient *http.Client
	logger     *slog.Logger
	clientName string

	mu       sync.RWMutex
	nodes    map[string]*Node
	handlers []EventHandler
}

// Option adjusts a [Client].
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for node REST requests and the
// websocket handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClientName sets the Client-Name header sent during the node handshake.
func WithClientName(name string) Option {
	return func(c *Client) { c.clientName = name }
}

// New creates a Client on top of the given gateway.
func New(gateway Gateway, opts ...Option) *Client {
	c := &Client{
		gateway:    gateway,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		clientName: defaultClientName,
		nodes:      make(map[string]*Node),
	}
	for _, apply := range opts {
		apply(c)
	}
	c.logger = c.logger.With("component", "cadenza")
	return c
}

// AddHandler registers an event handler and returns a function that removes
// it again. Handlers run synchronously on node listen loops; see
// [EventHandler].
func (c *Client) AddHandler(h EventHandler) func() {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	idx := len(c.handlers) - 1
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.handlers[idx] = nil
			c.mu.Unlock()
		})
	}
}

// publish delivers an event to every registered handler, in registration
// order.
func (c *Client) publish(event Event) {
	c.mu.RLock()
	handlers := slices.Clone(c.handlers)
	c.mu.RUnlock()

	for _, h := range handlers {
		if h != nil {
			h(event)
		}
	}
}

// CreateNode constructs a node from the config, connects it, and registers
// it. A config whose identifier is already registered returns
// [ErrDuplicateIdentifier]; a failed connection returns a
// [*ConnectionError] and leaves nothing registered.
func (c *Client) CreateNode(ctx context.Context, cfg NodeConfig) (*Node, error) {
	if cfg.Identifier == "" {
		return nil, fmt.Errorf("cadenza: node identifier must not be empty")
	}

	c.mu.RLock()
	_, exists := c.nodes[cfg.Identifier]
	c.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, cfg.Identifier)
	}

	node := newNode(c, cfg)
	if err := node.Connect(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// Node returns the registered node with the given identifier.
func (c *Client) Node(identifier string) (*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.nodes[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, identifier)
	}
	return node, nil
}

// Nodes returns all registered nodes.
func (c *Client) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// anyConnectedNode picks a random connected node.
func (c *Client) anyConnectedNode() (*Node, error) {
	var connected []*Node
	for _, n := range c.Nodes() {
		if n.IsConnected() {
			connected = append(connected, n)
		}
	}
	if len(connected) == 0 {
		return nil, ErrNoNodesAvailable
	}
	return connected[rand.IntN(len(connected))], nil
}

func (c *Client) registerNode(n *Node) {
	c.mu.Lock()
	c.nodes[n.identifier] = n
	c.mu.Unlock()
}

func (c *Client) unregisterNode(identifier string) {
	c.mu.Lock()
	delete(c.nodes, identifier)
	c.mu.Unlock()
}

// PlayerOption adjusts player creation.
type PlayerOption func(*playerOptions)

type playerOptions struct {
	nodeIdentifier string
}

// OnNode pins the new player to a specific node instead of a random
// connected one.
func OnNode(identifier string) PlayerOption {
	return func(o *playerOptions) { o.nodeIdentifier = identifier }
}

// CreatePlayer creates the player for a guild, starts its playback loop, and
// joins the given voice channel. Each guild has at most one player across
// all nodes; a second creation returns [ErrPlayerAlreadyExists].
//
// An empty channelID creates the player without joining voice.
func (c *Client) CreatePlayer(ctx context.Context, guildID, channelID string, opts ...PlayerOption) (*Player, error) {
	var o playerOptions
	for _, apply := range opts {
		apply(&o)
	}

	if _, ok := c.Player(guildID); ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerAlreadyExists, guildID)
	}

	var node *Node
	var err error
	if o.nodeIdentifier != "" {
		node, err = c.Node(o.nodeIdentifier)
	} else {
		node, err = c.anyConnectedNode()
	}
	if err != nil {
		return nil, err
	}

	player := newPlayer(c, node, guildID)
	if err := node.addPlayer(player); err != nil {
		return nil, err
	}
	player.start()

	if channelID != "" {
		if err := player.Connect(ctx, channelID); err != nil {
			_ = player.Destroy(ctx)
			return nil, err
		}
	}
	return player, nil
}

// Player returns the player for a guild, searching across all nodes.
func (c *Client) Player(guildID string) (*Player, bool) {
	for _, n := range c.Nodes() {
		if p, ok := n.Player(guildID); ok {
			return p, true
		}
	}
	return nil, false
}

// Players returns every player across all nodes, keyed by guild.
func (c *Client) Players() map[string]*Player {
	out := make(map[string]*Player)
	for _, n := range c.Nodes() {
		for _, p := range n.Players() {
			out[p.guildID] = p
		}
	}
	return out
}

// Close destroys every registered node and its players.
func (c *Client) Close() {
	for _, n := range c.Nodes() {
		n.Destroy()
	}
}
