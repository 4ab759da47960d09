package cadenza

import (
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

// Sentinel errors returned by registry lookups and send paths. Match with
// [errors.Is].
var (
	// ErrNotConnected is returned when a command is sent on a node with no
	// live websocket.
	ErrNotConnected = errors.New("cadenza: node is not connected")

	// ErrNoNodesAvailable is returned when no connected node exists to
	// serve a request.
	ErrNoNodesAvailable = errors.New("cadenza: no connected nodes available")

	// ErrNodeNotFound is returned when a node identifier is not registered.
	ErrNodeNotFound = errors.New("cadenza: node not found")

	// ErrDuplicateIdentifier is returned by CreateNode when the identifier
	// is already in use.
	ErrDuplicateIdentifier = errors.New("cadenza: node identifier already in use")

	// ErrPlayerAlreadyExists is returned by CreatePlayer when the guild
	// already has a player.
	ErrPlayerAlreadyExists = errors.New("cadenza: player already exists for guild")

	// ErrUnsupportedOp is returned when a command requires a protocol
	// capability the node variant does not have.
	ErrUnsupportedOp = errors.New("cadenza: operation not supported by this node variant")
)

// ConnectionError reports a failed websocket handshake with a node.
type ConnectionError struct {
	// Identifier names the node that failed to connect.
	Identifier string

	// InvalidAuth is set when the node rejected the configured password.
	InvalidAuth bool

	Err error
}

func (e *ConnectionError) Error() string {
	if e.InvalidAuth {
		return fmt.Sprintf("cadenza: node %q has invalid authorization", e.Identifier)
	}
	return fmt.Sprintf("cadenza: node %q was unable to connect: %v", e.Identifier, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ConnectionClosedError reports that a node's listen loop terminated because
// the remote closed the websocket.
type ConnectionClosedError struct {
	Identifier string
	Code       websocket.StatusCode
	Reason     string
}

func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("cadenza: node %q connection closed (%d): %s", e.Identifier, e.Code, e.Reason)
}

// TrackLoadError reports a non-200 /loadtracks response after all retries
// were exhausted.
type TrackLoadError struct {
	StatusCode int
}

func (e *TrackLoadError) Error() string {
	return fmt.Sprintf("cadenza: loadtracks returned status %d", e.StatusCode)
}

// TrackLoadFailedError reports a LOAD_FAILED result from the node: the HTTP
// request succeeded but the node could not load the tracks (restricted
// video, upstream rate limit, and so on).
type TrackLoadFailedError struct {
	Message  string
	Severity string
	Cause    string
}

func (e *TrackLoadFailedError) Error() string {
	return fmt.Sprintf("cadenza: track load failed (severity %s): %s", e.Severity, e.Message)
}

// TrackDecodeError reports a non-200 /decodetrack response after all retries
// were exhausted.
type TrackDecodeError struct {
	StatusCode int
}

func (e *TrackDecodeError) Error() string {
	return fmt.Sprintf("cadenza: decodetrack returned status %d", e.StatusCode)
}
