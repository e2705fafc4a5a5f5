package andelink

import (
	"context"
	"log/slog"
)

// VoiceServerUpdate is the "server" half of a voice handshake: the voice
// token and endpoint the remote gateway assigned to a guild.
type VoiceServerUpdate struct {
	GuildID  string
	Token    string
	Endpoint string
}

// VoiceStateUpdate is the "state" half of a voice handshake: the session id
// the gateway assigned to a user's voice state.
type VoiceStateUpdate struct {
	GuildID   string
	UserID    string
	SessionID string
}

// pendingHalf is the at-most-one stored half of a guild's voice handshake.
// Exactly one of the two fields is set.
type pendingHalf struct {
	server *VoiceServerUpdate
	state  *VoiceStateUpdate
}

func (h pendingHalf) kind() string {
	if h.server != nil {
		return "server"
	}
	return "state"
}

// HandleVoiceServerUpdate feeds the server half of a voice handshake into the
// node. When the state half for the same guild is already pending, the two
// are merged into a session-establish command; otherwise the half is stored
// until its counterpart arrives.
func (n *Node) HandleVoiceServerUpdate(ctx context.Context, ev VoiceServerUpdate) error {
	if ev.GuildID == "" {
		return nil
	}
	return n.processHalf(ctx, ev.GuildID, pendingHalf{server: &ev})
}

// HandleVoiceStateUpdate feeds the state half of a voice handshake into the
// node. Updates for users other than the node's own client id are ignored.
func (n *Node) HandleVoiceStateUpdate(ctx context.Context, ev VoiceStateUpdate) error {
	if ev.UserID != n.cfg.UserID {
		return nil
	}
	if ev.GuildID == "" {
		return nil
	}
	return n.processHalf(ctx, ev.GuildID, pendingHalf{state: &ev})
}

// processHalf runs the per-guild pairing state machine. The two halves of a
// voice session arrive from independent, unordered upstream event sources;
// this is the only place that enforces "act once both are present".
func (n *Node) processHalf(ctx context.Context, guildID string, h pendingHalf) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	existing, ok := n.pending[guildID]
	if !ok {
		n.pending[guildID] = h
		slog.Info("guild waiting for other voice handshake half",
			"node_id", n.id,
			"guild_id", guildID,
			"half", h.kind(),
		)
		return nil
	}

	if (h.server != nil) == (existing.server != nil) {
		// Same half twice. Anomalous but not an error: last write wins.
		slog.Warn("received the same voice handshake half twice",
			"node_id", n.id,
			"guild_id", guildID,
			"half", h.kind(),
		)
		n.pending[guildID] = h
		return nil
	}

	// Opposite halves: the pending entry is cleared before the merge is
	// validated, so an incomplete pair is discarded rather than retried.
	delete(n.pending, guildID)

	server, state := existing.server, existing.state
	if h.server != nil {
		server = h.server
	} else {
		state = h.state
	}

	if server.Endpoint == "" {
		return ErrIncompleteVoiceServer
	}

	return n.createSessionLocked(ctx, guildID, VoiceSession{
		SessionID: state.SessionID,
		Token:     server.Token,
		Endpoint:  server.Endpoint,
	})
}
