package protocol

import (
	"encoding/json"
	"fmt"
)

// Stats is the periodic metrics snapshot pushed by a Lavalink node (and by
// Andesite nodes running in Lavalink-compatible mode).
type Stats struct {
	Players        int   `json:"players"`
	PlayingPlayers int   `json:"playingPlayers"`
	Uptime         int64 `json:"uptime"`

	Memory struct {
		Reservable int64 `json:"reservable"`
		Allocated  int64 `json:"allocated"`
		Used       int64 `json:"used"`
		Free       int64 `json:"free"`
	} `json:"memory"`

	CPU struct {
		Cores        int     `json:"cores"`
		SystemLoad   float64 `json:"systemLoad"`
		LavalinkLoad float64 `json:"lavalinkLoad"`
	} `json:"cpu"`

	// FrameStats is only present when the node is actively sending audio.
	FrameStats *struct {
		Sent    int64 `json:"sent"`
		Nulled  int64 `json:"nulled"`
		Deficit int64 `json:"deficit"`
	} `json:"frameStats,omitempty"`
}

// DecodeStats parses a flat Lavalink stats frame payload.
func DecodeStats(data []byte) (Stats, error) {
	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return Stats{}, fmt.Errorf("protocol: decode stats: %w", err)
	}
	return s, nil
}

// AndesiteStats is the nested stats document returned by an Andesite node in
// native mode, delivered inside the "stats" key of a stats frame.
type AndesiteStats struct {
	Players struct {
		Playing int `json:"playing"`
		Total   int `json:"total"`
	} `json:"players"`

	Runtime struct {
		Uptime int64  `json:"uptime"`
		PID    int    `json:"pid"`
		Name   string `json:"name"`

		VM struct {
			Name    string `json:"name"`
			Vendor  string `json:"vendor"`
			Version string `json:"version"`
		} `json:"vm"`

		Spec struct {
			Name    string `json:"name"`
			Vendor  string `json:"vendor"`
			Version string `json:"version"`
		} `json:"spec"`
	} `json:"runtime"`

	OS struct {
		Processors int    `json:"processors"`
		Name       string `json:"name"`
		Arch       string `json:"arch"`
		Version    string `json:"version"`
	} `json:"os"`

	CPU struct {
		Andesite float64 `json:"andesite"`
		System   float64 `json:"system"`
	} `json:"cpu"`
}

// statsEnvelope distinguishes the two stats frame shapes: Andesite native
// mode nests its document under "stats", Lavalink sends the fields flat.
type statsEnvelope struct {
	Stats json.RawMessage `json:"stats"`
}

// DecodeStatsFrame parses a stats frame that may be in either the flat
// Lavalink shape or the nested Andesite shape. Exactly one of the returned
// pointers is non-nil on success.
func DecodeStatsFrame(data []byte) (*Stats, *AndesiteStats, error) {
	var env statsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("protocol: decode stats frame: %w", err)
	}

	if len(env.Stats) > 0 && string(env.Stats) != "null" {
		var as AndesiteStats
		if err := json.Unmarshal(env.Stats, &as); err != nil {
			return nil, nil, fmt.Errorf("protocol: decode andesite stats: %w", err)
		}
		return nil, &as, nil
	}

	s, err := DecodeStats(data)
	if err != nil {
		return nil, nil, err
	}
	return &s, nil, nil
}

// Metadata is the version and capability information pushed by an Andesite
// node right after the websocket handshake.
type Metadata struct {
	Version         string   `json:"version"`
	VersionMajor    int      `json:"versionMajor"`
	VersionMinor    int      `json:"versionMinor"`
	VersionRevision int      `json:"versionRevision"`
	VersionCommit   string   `json:"versionCommit"`
	VersionBuild    int      `json:"versionBuild"`
	NodeRegion      string   `json:"nodeRegion"`
	NodeID          string   `json:"nodeId"`
	EnabledSources  []string `json:"enabledSources"`
	LoadedPlugins   []string `json:"loadedPlugins"`
}

// metadataEnvelope carries the metadata document under the "data" key.
type metadataEnvelope struct {
	Data Metadata `json:"data"`
}

// DecodeMetadata parses a metadata frame payload.
func DecodeMetadata(data []byte) (Metadata, error) {
	var env metadataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Metadata{}, fmt.Errorf("protocol: decode metadata: %w", err)
	}
	return env.Data, nil
}
