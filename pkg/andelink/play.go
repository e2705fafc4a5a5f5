package andelink

import (
	"context"
	"time"

	"github.com/andelink-audio/andelink/pkg/andelink/track"
	"github.com/andelink-audio/andelink/pkg/andelink/wire"
)

// PlayParams configures how a track is played or queued on a guild. Build one
// with Node.Play, chain the setters, then finish with Start or Queue.
type PlayParams struct {
	node      *Node
	guildID   string
	track     track.Track
	replace   bool
	start     time.Duration
	end       time.Duration
	requester *track.Requester
	channelID string
}

// Play begins building a play request for the given track on the guild.
func (n *Node) Play(guildID string, t track.Track) *PlayParams {
	return &PlayParams{node: n, guildID: guildID, track: t}
}

// Replace sets whether the currently playing track is replaced by this one.
func (p *PlayParams) Replace(replace bool) *PlayParams {
	p.replace = replace
	return p
}

// StartTime sets the offset playback begins at.
func (p *PlayParams) StartTime(start time.Duration) *PlayParams {
	p.start = start
	return p
}

// EndTime sets the offset playback stops at.
func (p *PlayParams) EndTime(end time.Duration) *PlayParams {
	p.end = end
	return p
}

// Requester records who asked for the track.
func (p *PlayParams) Requester(r track.Requester) *PlayParams {
	p.requester = &r
	return p
}

// Channel records the text channel the request originated from.
func (p *PlayParams) Channel(channelID string) *PlayParams {
	p.channelID = channelID
	return p
}

// Start sends the play command immediately, bypassing the guild's queue.
func (p *PlayParams) Start(ctx context.Context) error {
	n := p.node
	n.mu.Lock()
	defer n.mu.Unlock()
	cmd := wire.Play(p.guildID, p.track.Encoded, !p.replace,
		p.start.Milliseconds(), p.end.Milliseconds())
	return n.sendLocked(ctx, wire.OpPlay, cmd)
}

// Queue appends the track to the guild's queue. When the guild is idle
// (nothing playing, empty queue) playback starts immediately.
func (p *PlayParams) Queue(ctx context.Context) error {
	n := p.node
	n.mu.Lock()
	defer n.mu.Unlock()

	player, ok := n.players[p.guildID]
	if !ok {
		return ErrNoSuchPlayer
	}

	shouldStart := player.NowPlaying == nil && len(player.Queue) == 0
	player.Queue = append(player.Queue, QueuedTrack{
		Track:     p.track,
		StartTime: p.start,
		EndTime:   p.end,
		Requester: p.requester,
		ChannelID: p.channelID,
	})

	if shouldStart {
		return n.playNextLocked(ctx, p.guildID)
	}
	return nil
}
