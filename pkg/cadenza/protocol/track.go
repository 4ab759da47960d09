package protocol

import "strings"

// knownSources maps URI substrings to display names for [Track.Source].
var knownSources = []string{"bandcamp", "beam", "soundcloud", "twitch", "vimeo", "youtube"}

// TrackInfo is the decoded metadata of a playable track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Author     string `json:"author"`

	// Length is the track duration in ms.
	Length int64 `json:"length"`

	URI        string `json:"uri"`
	IsStream   bool   `json:"isStream"`
	IsSeekable bool   `json:"isSeekable"`
	Position   int64  `json:"position"`

	// SourceName overrides the URI-derived source for metadata-only entries
	// (e.g. tracks imported from an external catalogue that still need a
	// node-side search before they can play).
	SourceName string `json:"sourceName,omitempty"`
}

// Track is an immutable playable item. ID is the node's opaque encoded track
// string; an empty ID marks a metadata-only entry that must be resolved via
// a search before playback.
type Track struct {
	ID   string    `json:"track"`
	Info TrackInfo `json:"info"`
}

// Source returns the human-readable source of the track, derived from a
// substring match on the URI. Tracks with no URI report "Unknown"; URIs not
// matching any known provider report "HTTP".
func (t Track) Source() string {
	if t.Info.SourceName != "" {
		return t.Info.SourceName
	}
	if t.Info.URI == "" {
		return "Unknown"
	}
	for _, source := range knownSources {
		if strings.Contains(t.Info.URI, source) {
			return strings.ToUpper(source[:1]) + source[1:]
		}
	}
	return "HTTP"
}

// NeedsResolution reports whether this track is a metadata-only entry that
// must be substituted with a real node track before it can be played.
func (t Track) NeedsResolution() bool {
	return t.ID == ""
}

// PlaylistInfo is the metadata block of a PLAYLIST_LOADED result.
type PlaylistInfo struct {
	Name string `json:"name"`

	// SelectedTrack is the index of the track the playlist link pointed at,
	// or -1 when no track was selected.
	SelectedTrack int `json:"selectedTrack"`
}

// Playlist is a named ordered collection of tracks returned by a playlist
// load.
type Playlist struct {
	Info   PlaylistInfo
	Tracks []Track
}

// Selected returns the playlist's selected track, or false when the selected
// index is out of range.
func (p Playlist) Selected() (Track, bool) {
	if p.Info.SelectedTrack < 0 || p.Info.SelectedTrack >= len(p.Tracks) {
		return Track{}, false
	}
	return p.Tracks[p.Info.SelectedTrack], true
}

// LoadType discriminates the shape of a /loadtracks response.
type LoadType string

const (
	LoadTrackLoaded    LoadType = "TRACK_LOADED"
	LoadPlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadSearchResult   LoadType = "SEARCH_RESULT"
	LoadNoMatches      LoadType = "NO_MATCHES"
	LoadFailed         LoadType = "LOAD_FAILED"
)

// LoadException is the error block attached to a LOAD_FAILED response.
type LoadException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// LoadResult is the decoded body of a /loadtracks response.
type LoadResult struct {
	LoadType     LoadType       `json:"loadType"`
	PlaylistInfo PlaylistInfo   `json:"playlistInfo"`
	Tracks       []Track        `json:"tracks"`
	Exception    *LoadException `json:"exception,omitempty"`
}
