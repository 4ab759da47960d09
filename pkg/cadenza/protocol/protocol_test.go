package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"op":"playerUpdate","guildId":"123"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if frame.Op != OpPlayerUpdate {
			t.Errorf("expected op playerUpdate, got %q", frame.Op)
		}
		if frame.GuildID != "123" {
			t.Errorf("expected guild 123, got %q", frame.GuildID)
		}
		if len(frame.Raw) == 0 {
			t.Error("expected Raw to carry the original payload")
		}
	})

	t.Run("missing op", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{"guildId":"123"}`))
		if !errors.Is(err, ErrMissingOp) {
			t.Fatalf("expected ErrMissingOp, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{not json`))
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestDecodePlayerUpdate(t *testing.T) {
	t.Run("lavalink shape", func(t *testing.T) {
		u, err := DecodePlayerUpdate([]byte(`{"op":"playerUpdate","guildId":"123","state":{"time":1700000000000,"position":5000}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.State.Position != 5000 {
			t.Errorf("expected position 5000, got %d", u.State.Position)
		}
		if u.State.Paused != nil || u.State.Volume != nil {
			t.Error("expected paused and volume to be absent")
		}
	})

	t.Run("andesite shape carries paused and volume", func(t *testing.T) {
		u, err := DecodePlayerUpdate([]byte(`{"op":"player-update","guildId":"123","state":{"time":1,"position":2,"paused":true,"volume":50}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.State.Paused == nil || !*u.State.Paused {
			t.Error("expected paused=true")
		}
		if u.State.Volume == nil || *u.State.Volume != 50 {
			t.Error("expected volume=50")
		}
	})
}

func TestDecodeEvent(t *testing.T) {
	t.Run("track start", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"op":"event","type":"TrackStartEvent","guildId":"1","track":"abc"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		start, ok := ev.(*TrackStartEvent)
		if !ok {
			t.Fatalf("expected *TrackStartEvent, got %T", ev)
		}
		if start.TrackID != "abc" || start.EventGuildID() != "1" {
			t.Errorf("unexpected fields: %+v", start)
		}
	})

	t.Run("track end", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"TrackEndEvent","guildId":"1","track":"abc","reason":"FINISHED","mayStartNext":true}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		end := ev.(*TrackEndEvent)
		if end.Reason != "FINISHED" || !end.MayStartNext {
			t.Errorf("unexpected fields: %+v", end)
		}
	})

	t.Run("track exception", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"TrackExceptionEvent","guildId":"1","track":"abc","exception":{"message":"boom","severity":"COMMON","cause":"x"}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		exc := ev.(*TrackExceptionEvent)
		if exc.Exception.Message != "boom" || exc.Exception.Severity != "COMMON" {
			t.Errorf("unexpected exception: %+v", exc.Exception)
		}
	})

	t.Run("websocket closed", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"WebSocketClosedEvent","guildId":"1","code":4006,"reason":"session invalid","byRemote":true}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		closed := ev.(*WebSocketClosedEvent)
		if closed.Code != 4006 || !closed.ByRemote {
			t.Errorf("unexpected fields: %+v", closed)
		}
	})

	t.Run("unknown event type", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"SomeFutureEvent","guildId":"1"}`))
		var unknown *UnknownEventError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected *UnknownEventError, got %v", err)
		}
		if unknown.EventType != "SomeFutureEvent" {
			t.Errorf("expected event type to be carried, got %q", unknown.EventType)
		}
	})
}

func TestDecodeStatsFrame(t *testing.T) {
	t.Run("flat lavalink stats", func(t *testing.T) {
		flat, nested, err := DecodeStatsFrame([]byte(`{"op":"stats","players":3,"playingPlayers":1,"uptime":1000,"memory":{"used":42},"cpu":{"cores":8,"systemLoad":0.5}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if nested != nil {
			t.Fatal("expected no nested stats")
		}
		if flat == nil || flat.Players != 3 || flat.PlayingPlayers != 1 {
			t.Errorf("unexpected stats: %+v", flat)
		}
		if flat.FrameStats != nil {
			t.Error("expected frameStats to be absent")
		}
	})

	t.Run("nested andesite stats", func(t *testing.T) {
		flat, nested, err := DecodeStatsFrame([]byte(`{"op":"stats","stats":{"players":{"playing":2,"total":5},"cpu":{"andesite":0.1,"system":0.4}}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if flat != nil {
			t.Fatal("expected no flat stats")
		}
		if nested == nil || nested.Players.Total != 5 || nested.Players.Playing != 2 {
			t.Errorf("unexpected stats: %+v", nested)
		}
	})
}

func TestDecodeMetadata(t *testing.T) {
	meta, err := DecodeMetadata([]byte(`{"op":"metadata","data":{"version":"0.20.2","versionMajor":0,"enabledSources":["youtube","soundcloud"]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Version != "0.20.2" {
		t.Errorf("expected version 0.20.2, got %q", meta.Version)
	}
	if len(meta.EnabledSources) != 2 {
		t.Errorf("expected 2 enabled sources, got %v", meta.EnabledSources)
	}
}

func TestTrackSource(t *testing.T) {
	tests := []struct {
		name  string
		track Track
		want  string
	}{
		{"youtube uri", Track{Info: TrackInfo{URI: "https://www.youtube.com/watch?v=x"}}, "Youtube"},
		{"soundcloud uri", Track{Info: TrackInfo{URI: "https://soundcloud.com/artist/song"}}, "Soundcloud"},
		{"unmatched uri", Track{Info: TrackInfo{URI: "https://example.com/file.mp3"}}, "HTTP"},
		{"no uri", Track{}, "Unknown"},
		{"source name override", Track{Info: TrackInfo{URI: "https://example.com", SourceName: "Spotify"}}, "Spotify"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.track.Source(); got != tc.want {
				t.Errorf("Source() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTrackNeedsResolution(t *testing.T) {
	if !(Track{}).NeedsResolution() {
		t.Error("expected track with empty ID to need resolution")
	}
	if (Track{ID: "abc"}).NeedsResolution() {
		t.Error("expected track with ID not to need resolution")
	}
}

func TestPlaylistSelected(t *testing.T) {
	tracks := []Track{{ID: "a"}, {ID: "b"}}

	t.Run("in range", func(t *testing.T) {
		p := Playlist{Info: PlaylistInfo{SelectedTrack: 1}, Tracks: tracks}
		got, ok := p.Selected()
		if !ok || got.ID != "b" {
			t.Errorf("expected track b, got %+v ok=%v", got, ok)
		}
	})

	t.Run("no selection", func(t *testing.T) {
		p := Playlist{Info: PlaylistInfo{SelectedTrack: -1}, Tracks: tracks}
		if _, ok := p.Selected(); ok {
			t.Error("expected no selected track")
		}
	})

	t.Run("out of range", func(t *testing.T) {
		p := Playlist{Info: PlaylistInfo{SelectedTrack: 5}, Tracks: tracks}
		if _, ok := p.Selected(); ok {
			t.Error("expected no selected track")
		}
	})
}

func TestFiltersCommandMarshal(t *testing.T) {
	cmd := FiltersCommand{
		Op:      OpFilters,
		GuildID: "123",
		Payload: map[string]any{
			"timescale": map[string]float64{"speed": 1.5, "pitch": 1.0, "rate": 1.0},
		},
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["op"] != "filters" || got["guildId"] != "123" {
		t.Errorf("expected envelope fields, got %v", got)
	}
	if _, ok := got["timescale"]; !ok {
		t.Error("expected timescale to be flattened into the frame")
	}
	if _, ok := got["Payload"]; ok {
		t.Error("payload map must not appear as a nested field")
	}
}

func TestLoadResultDecode(t *testing.T) {
	body := `{
		"loadType": "PLAYLIST_LOADED",
		"playlistInfo": {"name": "Mix", "selectedTrack": 0},
		"tracks": [{"track": "abc", "info": {"identifier": "x", "title": "Song", "author": "Artist", "length": 180000, "uri": "https://youtube.com/watch?v=x", "isSeekable": true}}]
	}`

	var result LoadResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LoadType != LoadPlaylistLoaded {
		t.Errorf("expected PLAYLIST_LOADED, got %q", result.LoadType)
	}
	if result.PlaylistInfo.Name != "Mix" {
		t.Errorf("expected playlist name Mix, got %q", result.PlaylistInfo.Name)
	}
	if len(result.Tracks) != 1 || result.Tracks[0].ID != "abc" {
		t.Errorf("unexpected tracks: %+v", result.Tracks)
	}
	if result.Tracks[0].Info.Length != 180000 {
		t.Errorf("expected length 180000, got %d", result.Tracks[0].Info.Length)
	}
}
