package track_test

import (
	"encoding/json"
	"testing"

	"github.com/andelink-audio/andelink/pkg/andelink/track"
)

func TestLoadResult_DecodesServerResponse(t *testing.T) {
	t.Parallel()

	payload := `{
		"loadType": "PLAYLIST_LOADED",
		"playlistInfo": {"name": "Chill Mix", "selectedTrack": 1},
		"tracks": [
			{
				"track": "QAAAjQIAJFJpY2sgQXN0bGV5",
				"info": {
					"identifier": "dQw4w9WgXcQ",
					"isSeekable": true,
					"author": "Rick Astley",
					"length": 212000,
					"isStream": false,
					"position": 0,
					"title": "Never Gonna Give You Up",
					"uri": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
				}
			},
			{
				"track": "QAAAbgIAC1N0cmVhbQ",
				"info": {
					"identifier": "live123",
					"isSeekable": false,
					"author": "Some Radio",
					"length": 0,
					"isStream": true,
					"position": 0,
					"title": "24/7 Stream",
					"uri": "https://example.com/live"
				}
			}
		]
	}`

	var result track.LoadResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.LoadType != track.LoadTypePlaylistLoaded {
		t.Errorf("loadType = %q; want %q", result.LoadType, track.LoadTypePlaylistLoaded)
	}
	if result.PlaylistInfo.Name != "Chill Mix" {
		t.Errorf("playlistInfo.name = %q; want Chill Mix", result.PlaylistInfo.Name)
	}
	if result.PlaylistInfo.SelectedTrack == nil || *result.PlaylistInfo.SelectedTrack != 1 {
		t.Errorf("playlistInfo.selectedTrack = %v; want 1", result.PlaylistInfo.SelectedTrack)
	}
	if len(result.Tracks) != 2 {
		t.Fatalf("len(tracks) = %d; want 2", len(result.Tracks))
	}

	first := result.Tracks[0]
	if first.Encoded != "QAAAjQIAJFJpY2sgQXN0bGV5" {
		t.Errorf("tracks[0].track = %q", first.Encoded)
	}
	if first.Info == nil {
		t.Fatal("tracks[0].info missing")
	}
	if first.Info.Title != "Never Gonna Give You Up" || !first.Info.IsSeekable {
		t.Errorf("tracks[0].info = %+v", first.Info)
	}
	if first.Info.Length != 212000 {
		t.Errorf("tracks[0].info.length = %d; want 212000", first.Info.Length)
	}

	if !result.Tracks[1].Info.IsStream {
		t.Error("tracks[1] should be a stream")
	}
}

func TestLoadResult_DecodesLoadFailure(t *testing.T) {
	t.Parallel()

	payload := `{
		"loadType": "LOAD_FAILED",
		"tracks": [],
		"exception": {"message": "This video is unavailable", "severity": "COMMON"}
	}`

	var result track.LoadResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.LoadType != track.LoadTypeLoadFailed {
		t.Errorf("loadType = %q; want %q", result.LoadType, track.LoadTypeLoadFailed)
	}
	if result.Exception == nil || result.Exception.Severity != "COMMON" {
		t.Errorf("exception = %+v", result.Exception)
	}
	if len(result.Tracks) != 0 {
		t.Errorf("len(tracks) = %d; want 0", len(result.Tracks))
	}
}
