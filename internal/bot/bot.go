// Package bot provides the Discord glue for the andelink demo bot. It owns
// the discordgo.Session lifecycle, feeds voice gateway events into the
// cluster's handshake pairing, and announces playback events back to the
// channel a track was requested from.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/andelink-audio/andelink/pkg/andelink"
	"github.com/andelink-audio/andelink/pkg/andelink/wire"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (without the "Bot " prefix).
	Token string

	// CommandPrefix is the text-command prefix. Defaults to "!".
	CommandPrefix string
}

// Bot owns the Discord gateway connection and bridges it to the cluster:
// voice gateway events flow in, playback announcements flow out.
type Bot struct {
	session *discordgo.Session
	prefix  string

	mu      sync.Mutex
	cluster *andelink.Cluster
	// joining maps guilds with an in-flight voice join to the node picked
	// for them, until the session exists and NodeForGuild takes over.
	joining map[string]*andelink.Node

	closeOnce sync.Once
}

// New creates a Bot and connects it to the Discord gateway. The cluster is
// attached afterwards via AttachCluster, once the bot's user id is known and
// nodes have been added.
func New(cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("bot: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	prefix := cfg.CommandPrefix
	if prefix == "" {
		prefix = "!"
	}

	b := &Bot{
		session: session,
		prefix:  prefix,
		joining: make(map[string]*andelink.Node),
	}

	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onVoiceServerUpdate)
	session.AddHandler(b.onVoiceStateUpdate)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("bot: open session: %w", err)
	}

	slog.Info("discord session opened", "user_id", session.State.User.ID)
	return b, nil
}

// UserID returns the bot's own user snowflake.
func (b *Bot) UserID() string {
	return b.session.State.User.ID
}

// AttachCluster hands the bot the cluster it routes commands to. Must be
// called before any command can be served.
func (b *Bot) AttachCluster(c *andelink.Cluster) {
	b.mu.Lock()
	b.cluster = c
	b.mu.Unlock()
}

// Close disconnects from Discord. Idempotent.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("bot: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

// ── Voice gateway forwarding ──────────────────────────────────────────────────

// nodeFor returns the node serving the guild: the one picked at join time
// while the handshake is in flight, or the registry owner afterwards.
func (b *Bot) nodeFor(guildID string) *andelink.Node {
	b.mu.Lock()
	cluster := b.cluster
	node := b.joining[guildID]
	b.mu.Unlock()

	if node != nil {
		return node
	}
	if cluster == nil {
		return nil
	}
	if n, err := cluster.NodeForGuild(guildID); err == nil {
		return n
	}
	return nil
}

// settleJoin drops the guild's join bookkeeping once its session exists.
func (b *Bot) settleJoin(guildID string, node *andelink.Node) {
	if _, ok := node.PlayerState(guildID); !ok {
		return
	}
	b.mu.Lock()
	delete(b.joining, guildID)
	b.mu.Unlock()
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, ev *discordgo.VoiceServerUpdate) {
	node := b.nodeFor(ev.GuildID)
	if node == nil {
		return
	}
	err := node.HandleVoiceServerUpdate(context.Background(), andelink.VoiceServerUpdate{
		GuildID:  ev.GuildID,
		Token:    ev.Token,
		Endpoint: ev.Endpoint,
	})
	if err != nil {
		slog.Error("voice server update failed", "guild_id", ev.GuildID, "err", err)
		return
	}
	b.settleJoin(ev.GuildID, node)
}

func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, ev *discordgo.VoiceStateUpdate) {
	node := b.nodeFor(ev.GuildID)
	if node == nil {
		return
	}
	err := node.HandleVoiceStateUpdate(context.Background(), andelink.VoiceStateUpdate{
		GuildID:   ev.GuildID,
		UserID:    ev.UserID,
		SessionID: ev.SessionID,
	})
	if err != nil {
		slog.Error("voice state update failed", "guild_id", ev.GuildID, "err", err)
		return
	}
	b.settleJoin(ev.GuildID, node)
}

// ── Playback event announcements ──────────────────────────────────────────────

// Compile-time assertion that Bot satisfies andelink.EventHandler.
var _ andelink.EventHandler = (*Bot)(nil)

// OnStats caches nothing; the node already did. Logged at debug for operators.
func (b *Bot) OnStats(_ context.Context, node *andelink.Node, stats wire.Stats) {
	slog.Debug("node stats",
		"node_id", node.ID(),
		"players", stats.Players,
		"playing", stats.PlayingPlayers,
	)
}

func (b *Bot) OnPlayerUpdate(context.Context, *andelink.Node, wire.PlayerUpdate) {}

// OnTrackStart announces the new track in the channel it was requested from.
func (b *Bot) OnTrackStart(_ context.Context, node *andelink.Node, ev wire.TrackStart) {
	player, ok := node.PlayerState(ev.GuildID)
	if !ok || player.NowPlaying == nil || player.NowPlaying.ChannelID == "" {
		return
	}
	now := player.NowPlaying
	title := now.Track.Encoded
	if now.Track.Info != nil {
		title = now.Track.Info.Title
	}
	b.announce(now.ChannelID, "Now playing: "+title)
}

func (b *Bot) OnTrackEnd(_ context.Context, node *andelink.Node, ev wire.TrackEnd) {
	slog.Debug("track ended", "node_id", node.ID(), "guild_id", ev.GuildID, "reason", ev.Reason)
}

func (b *Bot) OnWebSocketClosed(_ context.Context, node *andelink.Node, ev wire.WebSocketClosed) {
	slog.Warn("voice websocket closed",
		"node_id", node.ID(),
		"guild_id", ev.GuildID,
		"code", ev.Code,
		"reason", ev.Reason,
		"by_remote", ev.ByRemote,
	)
}

func (b *Bot) announce(channelID, message string) {
	if _, err := b.session.ChannelMessageSend(channelID, message); err != nil {
		slog.Warn("failed to send announcement", "channel_id", channelID, "err", err)
	}
}
