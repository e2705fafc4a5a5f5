// Package track defines the track metadata types shared between the REST
// track-loading endpoint and the playback commands of an audio node.
package track

// Load-result types returned by the /loadtracks endpoint.
const (
	LoadTypeTrackLoaded    = "TRACK_LOADED"
	LoadTypePlaylistLoaded = "PLAYLIST_LOADED"
	LoadTypeSearchResult   = "SEARCH_RESULT"
	LoadTypeNoMatches      = "NO_MATCHES"
	LoadTypeLoadFailed     = "LOAD_FAILED"
)

// Track is a single playable track as returned by an audio node. Encoded is
// the opaque token the node expects back in play commands; Info is the decoded
// metadata and may be absent.
type Track struct {
	Encoded string `json:"track"`
	Info    *Info  `json:"info,omitempty"`
}

// Info holds the decoded metadata of a track.
type Info struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
}

// LoadResult is the response of a /loadtracks call.
type LoadResult struct {
	LoadType     string       `json:"loadType"`
	PlaylistInfo PlaylistInfo `json:"playlistInfo"`
	Tracks       []Track      `json:"tracks"`
	Exception    *Exception   `json:"exception,omitempty"`
}

// PlaylistInfo describes the playlist a load result belongs to, if any.
type PlaylistInfo struct {
	Name          string `json:"name,omitempty"`
	SelectedTrack *int   `json:"selectedTrack,omitempty"`
}

// Exception carries the failure detail of a LOAD_FAILED result.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Requester identifies who asked for a track to be queued. Either field may
// be empty.
type Requester struct {
	// ID is the requester's user snowflake.
	ID string

	// Name is the requester's display name.
	Name string
}
