package cadenza

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Reconnector layers an opt-in reconnection policy on top of a node. Nodes
// themselves never reconnect; a Reconnector watches for remote closures and
// re-establishes the connection with exponential backoff.
//
// Callers obtain the node via [Reconnector.Connect], then call
// [Reconnector.Monitor] to start a background goroutine that redials when
// the node's websocket drops. Players are destroyed by the disconnect and
// are not recreated; the configured OnReconnect callback is the place to
// rebuild them.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	client      *Client
	nodeConfig  NodeConfig
	maxRetries  int
	backoff     time.Duration
	maxBackoff  time.Duration
	onReconnect func(*Node)
	logger      *slog.Logger

	mu           sync.Mutex
	node         *Node
	done         chan struct{}
	stopOnce     sync.Once
	disconnected chan struct{} // signalled when a disconnect is detected
}

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// Client is the registry the node is created in.
	Client *Client

	// Node describes the node to maintain. Its OnClosed hook is chained
	// after the reconnector's own.
	Node NodeConfig

	// MaxRetries is the maximum number of reconnection attempts before
	// giving up. Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial backoff duration between retries. Doubles
	// each attempt up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on backoff duration. Defaults to 30s
	// if zero.
	MaxBackoff time.Duration

	// OnReconnect is called after a successful reconnection. May be nil.
	OnReconnect func(*Node)
}

// NewReconnector creates a new [Reconnector] with the given configuration.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	r := &Reconnector{
		client:       cfg.Client,
		nodeConfig:   cfg.Node,
		maxRetries:   maxRetries,
		backoff:      backoff,
		maxBackoff:   maxBackoff,
		onReconnect:  cfg.OnReconnect,
		logger:       cfg.Client.logger.With("component", "reconnector", "node", cfg.Node.Identifier),
		done:         make(chan struct{}),
		disconnected: make(chan struct{}, 1),
	}

	chained := cfg.Node.OnClosed
	r.nodeConfig.OnClosed = func(node *Node, err error) {
		r.NotifyDisconnect()
		if chained != nil {
			chained(node, err)
		}
	}
	return r
}

// Connect creates and connects the maintained node.
func (r *Reconnector) Connect(ctx context.Context) (*Node, error) {
	node, err := r.client.CreateNode(ctx, r.nodeConfig)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.node = node
	r.mu.Unlock()

	return node, nil
}

// Monitor starts watching the node in a background goroutine. When the
// node's websocket drops, it attempts reconnection with exponential backoff.
func (r *Reconnector) Monitor(ctx context.Context) {
	go r.monitorLoop(ctx)
}

// NotifyDisconnect signals the monitor that the connection has been lost and
// reconnection should be attempted. Safe to call multiple times; only the
// first call per reconnection cycle has effect.
func (r *Reconnector) NotifyDisconnect() {
	select {
	case r.disconnected <- struct{}{}:
	default:
		// Already signalled; avoid blocking.
	}
}

// Stop halts monitoring and destroys the maintained node. Safe to call
// multiple times.
func (r *Reconnector) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	node := r.node
	r.node = nil
	r.mu.Unlock()

	if node != nil {
		node.Destroy()
	}
}

// Node returns the maintained node. May return nil before Connect or after
// Stop.
func (r *Reconnector) Node() *Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.node
}

// monitorLoop waits for disconnect notifications and attempts reconnection.
func (r *Reconnector) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.disconnected:
			r.attemptReconnect(ctx)
		}
	}
}

// attemptReconnect tries to reconnect with exponential backoff.
func (r *Reconnector) attemptReconnect(ctx context.Context) {
	r.mu.Lock()
	node := r.node
	r.mu.Unlock()
	if node == nil {
		return
	}

	currentBackoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		r.logger.Info("attempting node reconnection",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", currentBackoff,
		)

		if err := node.Connect(ctx); err == nil {
			r.logger.Info("node reconnection successful", "attempt", attempt)
			if r.onReconnect != nil {
				r.onReconnect(node)
			}
			return
		} else {
			r.logger.Warn("node reconnection attempt failed",
				"attempt", attempt,
				"error", err,
			)
		}

		// Wait before retrying.
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(currentBackoff):
		}

		// Exponential backoff.
		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	r.logger.Error("node reconnection failed after max retries",
		"max_retries", r.maxRetries,
	)
}
