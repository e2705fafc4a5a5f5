package andelink

import (
	"time"

	"github.com/andelink-audio/andelink/pkg/andelink/track"
)

// QueuedTrack is one entry in a guild's playback queue. It is immutable once
// enqueued except for the track's position metadata, which inbound
// playerUpdate frames overwrite while the track plays.
type QueuedTrack struct {
	// Track is the encoded track plus optional decoded metadata.
	Track track.Track

	// StartTime is the offset playback begins at.
	StartTime time.Duration

	// EndTime is the offset playback stops at. Zero means play to the end.
	EndTime time.Duration

	// Requester identifies who queued the track, if known.
	Requester *track.Requester

	// ChannelID is the text channel the request originated from, if any.
	ChannelID string
}

// Player holds the playback and queue state of one guild on one node. It is
// created by CreateSession and removed by Destroy. All access goes through
// the owning node's lock.
type Player struct {
	// NowPlaying is the currently active track, nil when idle. It always
	// mirrors the queue head while something plays; the head is only removed
	// from the queue once the server reports a FINISHED track end.
	NowPlaying *QueuedTrack

	// Paused is the pause state at session creation. Pause commands are
	// pass-throughs; the server is the source of truth, so the field is not
	// updated when one is sent.
	Paused bool

	// Volume is the volume at session creation, 0-1000. New players start at
	// 100. Like Paused, volume commands do not write the field back.
	Volume int

	// Queue is the ordered list of pending tracks, head first.
	Queue []QueuedTrack
}

func newPlayer() *Player {
	return &Player{Volume: 100}
}
