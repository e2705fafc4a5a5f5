package andelink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/andelink-audio/andelink/pkg/andelink/wire"
)

// NodeConfig is the fixed identity and connection target of one audio node.
// All fields are set at construction and never change for the node's lifetime.
type NodeConfig struct {
	// Host is the node's hostname or IP.
	Host string

	// Port is the node's control port.
	Port int

	// Secure selects wss/https instead of ws/http.
	Secure bool

	// Password is the shared secret sent as the Authorization header on the
	// streaming upgrade and on REST calls.
	Password string

	// Shards is the shard count of the client, sent as Num-Shards.
	Shards int

	// UserID is the client's own user snowflake, sent as User-Id. It is also
	// used to filter voice state updates belonging to other users.
	UserID string
}

func (c NodeConfig) withDefaults() NodeConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 2333
	}
	if c.Password == "" {
		c.Password = "youshallnotpass"
	}
	if c.Shards == 0 {
		c.Shards = 1
	}
	return c
}

// Node owns the connection to one backend audio server: its lifecycle,
// per-guild players, pending voice handshakes and last stats snapshot.
//
// A node's mutable state is guarded by one reader/writer lock. Commands take
// the write lock for the duration of the frame write, so command throughput
// is serialised per node.
type Node struct {
	id        int
	cfg       NodeConfig
	restURL   string
	socketURL string
	httpc     *http.Client
	handler   EventHandler
	observer  Observer
	policy    ReconnectPolicy
	cancel    context.CancelFunc

	mu      sync.RWMutex
	conn    *websocket.Conn // nil unless connected
	players map[string]*Player
	pending map[string]pendingHalf
	stats   *wire.Stats
}

func newNode(id int, cfg NodeConfig, handler EventHandler, observer Observer, policy ReconnectPolicy) *Node {
	cfg = cfg.withDefaults()
	scheme, wsScheme := "http", "ws"
	if cfg.Secure {
		scheme, wsScheme = "https", "wss"
	}
	return &Node{
		id:        id,
		cfg:       cfg,
		restURL:   fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		socketURL: fmt.Sprintf("%s://%s:%d", wsScheme, cfg.Host, cfg.Port),
		httpc:     &http.Client{},
		handler:   handler,
		observer:  observer,
		policy:    policy,
		players:   make(map[string]*Player),
		pending:   make(map[string]pendingHalf),
	}
}

// ID returns the node's cluster-assigned id.
func (n *Node) ID() int { return n.id }

// Stats returns the most recent stats frame received from the node, if any.
func (n *Node) Stats() (wire.Stats, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stats == nil {
		return wire.Stats{}, false
	}
	return *n.stats, true
}

// PlayerCount reports the number of active guild sessions on the node.
func (n *Node) PlayerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.players)
}

// PlayerState returns a snapshot of the guild's player, if one exists.
func (n *Node) PlayerState(guildID string) (Player, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.players[guildID]
	if !ok {
		return Player{}, false
	}
	snap := Player{
		Paused: p.Paused,
		Volume: p.Volume,
		Queue:  append([]QueuedTrack(nil), p.Queue...),
	}
	if p.NowPlaying != nil {
		now := *p.NowPlaying
		snap.NowPlaying = &now
	}
	return snap, true
}

func (n *Node) hasPlayer(guildID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.players[guildID]
	return ok
}

// Close stops the node's lifecycle goroutine. The node will not reconnect
// afterwards; construct a new one via Cluster.AddNode instead.
func (n *Node) Close() {
	if n.cancel != nil {
		n.cancel()
	}
}

// ── Connection lifecycle ──────────────────────────────────────────────────────

func (n *Node) authHeaders() http.Header {
	h := http.Header{}
	h.Set("Authorization", n.cfg.Password)
	h.Set("Num-Shards", strconv.Itoa(n.cfg.Shards))
	h.Set("User-Id", n.cfg.UserID)
	return h
}

// run drives the node's connect / read / reconnect loop until the context is
// cancelled or the consecutive-failure budget is exhausted. The registry
// handle is passed in explicitly; the node holds no back-reference.
func (n *Node) run(ctx context.Context, reg *Cluster) {
	attempt := 1
	for {
		if ctx.Err() != nil {
			reg.retire(n.id)
			return
		}

		slog.Info("audio node connecting",
			"node_id", n.id,
			"attempt", attempt,
			"max_attempts", n.policy.MaxAttempts,
		)

		conn, _, err := websocket.Dial(ctx, n.socketURL, &websocket.DialOptions{
			HTTPHeader: n.authHeaders(),
		})
		if err != nil {
			attempt++
			if attempt > n.policy.MaxAttempts {
				slog.Info("audio node reached max connection attempts, terminating", "node_id", n.id)
				reg.retire(n.id)
				n.observer.NodeTerminated(n.id)
				return
			}
			slog.Warn("audio node connect failed, backing off",
				"node_id", n.id,
				"attempt", attempt-1,
				"max_attempts", n.policy.MaxAttempts,
				"backoff", n.policy.Backoff,
				"err", err,
			)
			select {
			case <-time.After(n.policy.Backoff):
			case <-ctx.Done():
			}
			continue
		}

		// A successful connection resets the retry budget: only consecutive
		// connect failures count toward MaxAttempts.
		attempt = 1

		n.mu.Lock()
		n.conn = conn
		n.mu.Unlock()
		reg.register(n)
		n.observer.NodeConnected(n.id)
		slog.Info("audio node connected", "node_id", n.id)

		n.readLoop(ctx, conn)

		n.mu.Lock()
		n.conn = nil
		n.mu.Unlock()
		reg.unregister(n.id)
		n.observer.NodeDisconnected(n.id)

		if ctx.Err() != nil {
			conn.Close(websocket.StatusNormalClosure, "node shut down")
			reg.retire(n.id)
			return
		}
		conn.CloseNow()
		slog.Info("audio node disconnected, reconnecting", "node_id", n.id)
	}
}

// readLoop consumes frames strictly in arrival order until the connection
// ends. Close frames and stream errors surface as Read errors.
func (n *Node) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		n.handleFrame(ctx, data)
	}
}

// handleFrame classifies one inbound frame, applies its state mutation under
// the node lock, then hands the event to the handler on its own goroutine.
// Malformed frames are dropped.
func (n *Node) handleFrame(ctx context.Context, data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		slog.Debug("dropping malformed frame", "node_id", n.id, "err", err)
		return
	}
	if msg == nil {
		return
	}

	switch m := msg.(type) {
	case *wire.Stats:
		n.observer.FrameReceived(n.id, string(wire.OpStats))
		n.mu.Lock()
		n.stats = m
		n.mu.Unlock()
		go n.handler.OnStats(ctx, n, *m)

	case *wire.PlayerUpdate:
		n.observer.FrameReceived(n.id, string(wire.OpPlayerUpdate))
		n.mu.Lock()
		if p, ok := n.players[m.GuildID]; ok && p.NowPlaying != nil && p.NowPlaying.Track.Info != nil {
			p.NowPlaying.Track.Info.Position = m.State.Position
		}
		n.mu.Unlock()
		go n.handler.OnPlayerUpdate(ctx, n, *m)

	case *wire.TrackStart:
		n.observer.FrameReceived(n.id, wire.EventTrackStart)
		go n.handler.OnTrackStart(ctx, n, *m)

	case *wire.TrackEnd:
		n.observer.FrameReceived(n.id, wire.EventTrackEnd)
		// Only FINISHED advances the queue; other reasons leave it untouched.
		if m.Reason == wire.ReasonFinished {
			n.mu.Lock()
			if p, ok := n.players[m.GuildID]; ok {
				if len(p.Queue) > 0 {
					p.Queue = p.Queue[1:]
				}
				p.NowPlaying = nil
				if len(p.Queue) > 0 {
					if err := n.playNextLocked(ctx, m.GuildID); err != nil {
						slog.Error("queue advance failed",
							"node_id", n.id,
							"guild_id", m.GuildID,
							"err", err,
						)
					}
				}
			}
			n.mu.Unlock()
		}
		go n.handler.OnTrackEnd(ctx, n, *m)

	case *wire.WebSocketClosed:
		n.observer.FrameReceived(n.id, wire.EventWebSocketClosed)
		go n.handler.OnWebSocketClosed(ctx, n, *m)
	}
}

// ── Commands ──────────────────────────────────────────────────────────────────

// sendLocked encodes cmd and writes it as one text frame. Callers must hold
// the write lock.
func (n *Node) sendLocked(ctx context.Context, op wire.Op, cmd any) error {
	if n.conn == nil {
		return ErrNoConnection
	}
	data, err := wire.Encode(cmd)
	if err != nil {
		return err
	}
	start := time.Now()
	err = n.conn.Write(ctx, websocket.MessageText, data)
	n.observer.CommandSent(n.id, string(op), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("andelink: send %s: %w", op, err)
	}
	return nil
}

// playNextLocked promotes the queue head to now-playing and sends the play
// command. The head stays in the queue until the server reports it FINISHED.
// Callers must hold the write lock.
func (n *Node) playNextLocked(ctx context.Context, guildID string) error {
	p, ok := n.players[guildID]
	if !ok {
		return ErrNoSuchPlayer
	}
	if len(p.Queue) == 0 {
		return nil
	}
	head := p.Queue[0]
	p.NowPlaying = &head
	cmd := wire.Play(guildID, head.Track.Encoded, false,
		head.StartTime.Milliseconds(), head.EndTime.Milliseconds())
	return n.sendLocked(ctx, wire.OpPlay, cmd)
}

// VoiceSession carries the fully assembled credentials of a voice handshake.
type VoiceSession struct {
	SessionID string
	Token     string
	Endpoint  string
}

// CreateSession establishes a voice session for the guild: it inserts a fresh
// player and sends the voiceUpdate command. Hosts that receive the handshake
// halves separately should use HandleVoiceServerUpdate and
// HandleVoiceStateUpdate instead, which call this on completion.
func (n *Node) CreateSession(ctx context.Context, guildID string, session VoiceSession) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.createSessionLocked(ctx, guildID, session)
}

func (n *Node) createSessionLocked(ctx context.Context, guildID string, session VoiceSession) error {
	if n.conn == nil {
		return ErrNoConnection
	}
	switch {
	case session.Token == "":
		return ErrMissingToken
	case session.Endpoint == "":
		return ErrMissingEndpoint
	case session.SessionID == "":
		return ErrMissingSessionID
	}
	n.players[guildID] = newPlayer()
	cmd := wire.VoiceUpdate(guildID, session.SessionID, session.Token, session.Endpoint)
	return n.sendLocked(ctx, wire.OpVoiceUpdate, cmd)
}

// Destroy tears down the guild's session on the node and deletes its player.
// CreateSession must run again before the guild can play anything.
func (n *Node) Destroy(ctx context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return ErrNoConnection
	}
	delete(n.players, guildID)
	return n.sendLocked(ctx, wire.OpDestroy, wire.Destroy(guildID))
}

// Stop stops the guild's playback without touching its queue.
func (n *Node) Stop(ctx context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpStop, wire.Stop(guildID))
}

// Skip drops the current track and starts the next queued one. With a single
// queued track it stops playback instead; with an empty queue it does
// nothing. Returns the removed track, if any.
func (n *Node) Skip(ctx context.Context, guildID string) (*QueuedTrack, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.players[guildID]
	if !ok {
		return nil, ErrNoSuchPlayer
	}
	p.NowPlaying = nil

	switch len(p.Queue) {
	case 0:
		return nil, nil
	case 1:
		removed := p.Queue[0]
		p.Queue = nil
		if err := n.sendLocked(ctx, wire.OpStop, wire.Stop(guildID)); err != nil {
			return nil, err
		}
		return &removed, nil
	default:
		removed := p.Queue[0]
		p.Queue = p.Queue[1:]
		if err := n.playNextLocked(ctx, guildID); err != nil {
			return nil, err
		}
		return &removed, nil
	}
}

// SetPause sets the guild's pause state. The command is a pass-through; the
// server is the source of truth for the resulting state.
func (n *Node) SetPause(ctx context.Context, guildID string, pause bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpPause, wire.Pause(guildID, pause))
}

// Pause pauses the guild's playback.
func (n *Node) Pause(ctx context.Context, guildID string) error {
	return n.SetPause(ctx, guildID, true)
}

// Resume resumes the guild's playback.
func (n *Node) Resume(ctx context.Context, guildID string) error {
	return n.SetPause(ctx, guildID, false)
}

// Seek jumps to a position in the currently playing track.
func (n *Node) Seek(ctx context.Context, guildID string, position time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpSeek, wire.Seek(guildID, position.Milliseconds()))
}

// SetVolume sets the guild's volume, clamped to [0, 1000]. Like SetPause it
// is a pass-through and does not touch the player's recorded state.
func (n *Node) SetVolume(ctx context.Context, guildID string, volume int) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1000 {
		volume = 1000
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpVolume, wire.Volume(guildID, volume))
}

// EqualizeAll replaces the gain of all 15 equalizer bands at once.
func (n *Node) EqualizeAll(ctx context.Context, guildID string, gains [15]float64) error {
	bands := make([]wire.Band, len(gains))
	for i, gain := range gains {
		bands[i] = wire.Band{Band: i, Gain: gain}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpEqualizer, wire.Equalizer(guildID, bands))
}

// EqualizeBand sets the gain of a single equalizer band.
func (n *Node) EqualizeBand(ctx context.Context, guildID string, band wire.Band) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpEqualizer, wire.Equalizer(guildID, []wire.Band{band}))
}

// EqualizeReset restores all equalizer bands to their default gain.
func (n *Node) EqualizeReset(ctx context.Context, guildID string) error {
	bands := make([]wire.Band, 15)
	for i := range bands {
		bands[i] = wire.Band{Band: i}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(ctx, wire.OpEqualizer, wire.Equalizer(guildID, bands))
}
