package andelink

import (
	"context"

	"github.com/andelink-audio/andelink/pkg/andelink/wire"
)

// EventHandler receives the events a node's control connection produces.
// One handler is shared by every node of a cluster.
//
// Each invocation runs on its own goroutine, detached from the node's read
// loop: a slow handler never stalls frame ingestion, and no ordering is
// guaranteed between invocations. The node's own state (stats cache, queue,
// playback position) is always updated before the handler is called, so a
// handler observing the node sees a view at least as fresh as its event.
// Handler panics are not observed by the node.
type EventHandler interface {
	// OnStats is called for the periodic server statistics frame.
	OnStats(ctx context.Context, node *Node, stats wire.Stats)

	// OnPlayerUpdate is called when the server reports playback position.
	OnPlayerUpdate(ctx context.Context, node *Node, update wire.PlayerUpdate)

	// OnTrackStart is called when a track begins playing.
	OnTrackStart(ctx context.Context, node *Node, event wire.TrackStart)

	// OnTrackEnd is called when a track stops playing. When the reason is
	// FINISHED the node has already advanced the guild's queue.
	OnTrackEnd(ctx context.Context, node *Node, event wire.TrackEnd)

	// OnWebSocketClosed is called when the node loses its own voice
	// connection to the remote gateway for a guild.
	OnWebSocketClosed(ctx context.Context, node *Node, event wire.WebSocketClosed)
}

// NopHandler implements EventHandler with no-ops. Embed it to implement only
// the events you care about.
type NopHandler struct{}

var _ EventHandler = NopHandler{}

func (NopHandler) OnStats(context.Context, *Node, wire.Stats)                     {}
func (NopHandler) OnPlayerUpdate(context.Context, *Node, wire.PlayerUpdate)       {}
func (NopHandler) OnTrackStart(context.Context, *Node, wire.TrackStart)           {}
func (NopHandler) OnTrackEnd(context.Context, *Node, wire.TrackEnd)               {}
func (NopHandler) OnWebSocketClosed(context.Context, *Node, wire.WebSocketClosed) {}
