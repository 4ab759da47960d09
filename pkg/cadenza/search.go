package cadenza

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"
)

// searchAttempts is how many times a search or decode request is tried
// before the last HTTP status is surfaced as an error. The delay between
// attempts starts at one second and doubles each time.
const searchAttempts = 5

// searchPrefixes are the node-side search selectors passed through verbatim.
var searchPrefixes = []string{"ytsearch:", "scsearch:"}

// SearchResult is the shaped outcome of a successful track load. A playlist
// load sets Playlist and mirrors its tracks into Tracks; a no-matches result
// is an empty SearchResult, not an error.
type SearchResult struct {
	Tracks   []protocol.Track
	Playlist *protocol.Playlist
}

// Search resolves a free-form query against the node's /loadtracks endpoint.
// Queries that already carry a search selector (ytsearch:, scsearch:) or
// parse as an absolute URL are passed through as-is; anything else defaults
// to a YouTube search.
//
// When retry is set, non-200 responses are retried with exponential backoff
// before a [*TrackLoadError] is returned. A LOAD_FAILED result returns a
// [*TrackLoadFailedError] without retrying.
func (n *Node) Search(ctx context.Context, query string, retry bool) (*SearchResult, error) {
	result, err := n.LoadTracks(ctx, routeQuery(query), retry)
	if err != nil {
		return nil, err
	}

	switch result.LoadType {
	case protocol.LoadNoMatches:
		return &SearchResult{}, nil
	case protocol.LoadPlaylistLoaded:
		playlist := &protocol.Playlist{Info: result.PlaylistInfo, Tracks: result.Tracks}
		return &SearchResult{Tracks: result.Tracks, Playlist: playlist}, nil
	case protocol.LoadTrackLoaded, protocol.LoadSearchResult:
		return &SearchResult{Tracks: result.Tracks}, nil
	default:
		return nil, fmt.Errorf("cadenza: unexpected load type %q", result.LoadType)
	}
}

// LoadTracks queries /loadtracks with a literal identifier and returns the
// decoded result. Most callers want [Node.Search] instead; this is the
// low-level entry point for callers that route identifiers themselves.
func (n *Node) LoadTracks(ctx context.Context, identifier string, retry bool) (*protocol.LoadResult, error) {
	body, err := n.restGet(ctx, "/loadtracks", url.Values{"identifier": {identifier}}, retry, func(status int) error {
		return &TrackLoadError{StatusCode: status}
	})
	if err != nil {
		return nil, err
	}

	var result protocol.LoadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("cadenza: decode loadtracks response: %w", err)
	}

	if result.LoadType == protocol.LoadFailed {
		loadErr := &TrackLoadFailedError{}
		if result.Exception != nil {
			loadErr.Message = result.Exception.Message
			loadErr.Severity = result.Exception.Severity
			loadErr.Cause = result.Exception.Cause
		}
		return nil, loadErr
	}
	return &result, nil
}

// LoadTracksRaw queries /loadtracks and returns the raw response body,
// for callers that want the node's untouched JSON.
func (n *Node) LoadTracksRaw(ctx context.Context, identifier string, retry bool) (json.RawMessage, error) {
	return n.restGet(ctx, "/loadtracks", url.Values{"identifier": {identifier}}, retry, func(status int) error {
		return &TrackLoadError{StatusCode: status}
	})
}

// DecodeTrack asks the node to expand an opaque encoded track string back
// into its metadata.
func (n *Node) DecodeTrack(ctx context.Context, trackID string, retry bool) (protocol.Track, error) {
	body, err := n.restGet(ctx, "/decodetrack", url.Values{"track": {trackID}}, retry, func(status int) error {
		return &TrackDecodeError{StatusCode: status}
	})
	if err != nil {
		return protocol.Track{}, err
	}

	// Lavalink returns the info fields at the top level, Andesite nests
	// them under "info".
	var envelope struct {
		Info *protocol.TrackInfo `json:"info"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return protocol.Track{}, fmt.Errorf("cadenza: decode decodetrack response: %w", err)
	}
	if envelope.Info != nil {
		return protocol.Track{ID: trackID, Info: *envelope.Info}, nil
	}

	var info protocol.TrackInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return protocol.Track{}, fmt.Errorf("cadenza: decode decodetrack response: %w", err)
	}
	return protocol.Track{ID: trackID, Info: info}, nil
}

// restGet performs one authenticated GET against the node's REST API,
// optionally retrying non-200 responses with exponential backoff.
func (n *Node) restGet(ctx context.Context, path string, query url.Values, retry bool, statusErr func(status int) error) ([]byte, error) {
	attempts := searchAttempts
	if !retry {
		attempts = 1
	}
	delay := n.searchBackoff
	lastStatus := 0

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			n.logger.Warn("retrying node request",
				"path", path, "status", lastStatus, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.restURL(path, query), nil)
		if err != nil {
			return nil, fmt.Errorf("cadenza: build node request: %w", err)
		}
		req.Header.Set("Authorization", n.password)

		resp, err := n.client.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("cadenza: node request %s: %w", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			lastStatus = resp.StatusCode
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("cadenza: read node response: %w", err)
		}
		return body, nil
	}

	return nil, statusErr(lastStatus)
}

// routeQuery decides what identifier a free-form query becomes.
func routeQuery(query string) string {
	for _, prefix := range searchPrefixes {
		if strings.HasPrefix(query, prefix) {
			return query
		}
	}
	if u, err := url.Parse(query); err == nil && u.Scheme != "" && u.Host != "" {
		return query
	}
	return "ytsearch:" + query
}
