package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/andelink-audio/andelink/pkg/andelink"
	"github.com/andelink-audio/andelink/pkg/andelink/track"
)

// playerWaitTimeout bounds how long a play command waits for the voice
// handshake to complete after joining a channel.
const playerWaitTimeout = 10 * time.Second

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(fields) == 0 {
		return
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	ctx := context.Background()
	var err error
	switch command {
	case "play":
		err = b.cmdPlay(ctx, s, m, strings.Join(args, " "))
	case "skip":
		err = b.cmdSkip(ctx, m)
	case "pause":
		err = b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
			return n.Pause(ctx, m.GuildID)
		})
	case "resume":
		err = b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
			return n.Resume(ctx, m.GuildID)
		})
	case "stop":
		err = b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
			return n.Stop(ctx, m.GuildID)
		})
	case "volume":
		err = b.cmdVolume(ctx, m, args)
	case "seek":
		err = b.cmdSeek(ctx, m, args)
	case "leave":
		err = b.cmdLeave(ctx, s, m)
	case "np":
		err = b.cmdNowPlaying(m)
	case "queue":
		err = b.cmdQueue(m)
	default:
		return
	}

	if err != nil {
		slog.Warn("command failed",
			"command", command,
			"guild_id", m.GuildID,
			"user_id", m.Author.ID,
			"err", err,
		)
		b.announce(m.ChannelID, "Sorry, that didn't work: "+err.Error())
	}
}

// withGuildNode runs fn against the node currently serving the guild.
func (b *Bot) withGuildNode(guildID string, fn func(*andelink.Node) error) error {
	b.mu.Lock()
	cluster := b.cluster
	b.mu.Unlock()
	if cluster == nil {
		return andelink.ErrNoNodesAvailable
	}
	node, err := cluster.NodeForGuild(guildID)
	if err != nil {
		return err
	}
	return fn(node)
}

// ── Commands ──────────────────────────────────────────────────────────────────

func (b *Bot) cmdPlay(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, query string) error {
	if query == "" {
		b.announce(m.ChannelID, "Usage: "+b.prefix+"play <url or search query>")
		return nil
	}

	node, err := b.ensureSession(ctx, s, m)
	if err != nil {
		return err
	}

	result, err := node.AutoSearch(ctx, query)
	if err != nil {
		return err
	}
	if len(result.Tracks) == 0 {
		b.announce(m.ChannelID, "No tracks found for: "+query)
		return nil
	}

	picked := result.Tracks[0]
	err = node.Play(m.GuildID, picked).
		Requester(track.Requester{ID: m.Author.ID, Name: m.Author.Username}).
		Channel(m.ChannelID).
		Queue(ctx)
	if err != nil {
		return err
	}

	title := picked.Encoded
	if picked.Info != nil {
		title = picked.Info.Title
	}
	b.announce(m.ChannelID, "Queued: "+title)
	return nil
}

func (b *Bot) cmdSkip(ctx context.Context, m *discordgo.MessageCreate) error {
	return b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
		skipped, err := n.Skip(ctx, m.GuildID)
		if err != nil {
			return err
		}
		if skipped == nil {
			b.announce(m.ChannelID, "Nothing to skip.")
			return nil
		}
		title := skipped.Track.Encoded
		if skipped.Track.Info != nil {
			title = skipped.Track.Info.Title
		}
		b.announce(m.ChannelID, "Skipped: "+title)
		return nil
	})
}

func (b *Bot) cmdVolume(ctx context.Context, m *discordgo.MessageCreate, args []string) error {
	if len(args) != 1 {
		b.announce(m.ChannelID, "Usage: "+b.prefix+"volume <0-1000>")
		return nil
	}
	volume, err := strconv.Atoi(args[0])
	if err != nil {
		b.announce(m.ChannelID, "Volume must be a number between 0 and 1000.")
		return nil
	}
	return b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
		return n.SetVolume(ctx, m.GuildID, volume)
	})
}

func (b *Bot) cmdSeek(ctx context.Context, m *discordgo.MessageCreate, args []string) error {
	if len(args) != 1 {
		b.announce(m.ChannelID, "Usage: "+b.prefix+"seek <position, e.g. 1m30s>")
		return nil
	}
	position, err := time.ParseDuration(args[0])
	if err != nil {
		b.announce(m.ChannelID, "Position must look like 90s or 1m30s.")
		return nil
	}
	return b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
		return n.Seek(ctx, m.GuildID, position)
	})
}

func (b *Bot) cmdLeave(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) error {
	err := b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
		return n.Destroy(ctx, m.GuildID)
	})
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.joining, m.GuildID)
	b.mu.Unlock()
	return s.ChannelVoiceJoinManual(m.GuildID, "", false, true)
}

func (b *Bot) cmdNowPlaying(m *discordgo.MessageCreate) error {
	return b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
		player, ok := n.PlayerState(m.GuildID)
		if !ok || player.NowPlaying == nil {
			b.announce(m.ChannelID, "Nothing is playing.")
			return nil
		}
		b.announce(m.ChannelID, describeTrack(*player.NowPlaying))
		return nil
	})
}

func (b *Bot) cmdQueue(m *discordgo.MessageCreate) error {
	return b.withGuildNode(m.GuildID, func(n *andelink.Node) error {
		player, ok := n.PlayerState(m.GuildID)
		if !ok || len(player.Queue) == 0 {
			b.announce(m.ChannelID, "The queue is empty.")
			return nil
		}
		var sb strings.Builder
		for i, qt := range player.Queue {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, describeTrack(qt))
		}
		b.announce(m.ChannelID, sb.String())
		return nil
	})
}

func describeTrack(qt andelink.QueuedTrack) string {
	title := qt.Track.Encoded
	if qt.Track.Info != nil {
		title = fmt.Sprintf("%s — %s", qt.Track.Info.Author, qt.Track.Info.Title)
	}
	if qt.Requester != nil {
		title += " (requested by " + qt.Requester.Name + ")"
	}
	return title
}

// ── Voice channel joining ─────────────────────────────────────────────────────

// ensureSession returns a node with an established voice session for the
// guild, joining the author's voice channel first if needed.
func (b *Bot) ensureSession(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) (*andelink.Node, error) {
	b.mu.Lock()
	cluster := b.cluster
	b.mu.Unlock()
	if cluster == nil {
		return nil, andelink.ErrNoNodesAvailable
	}

	if node, err := cluster.NodeForGuild(m.GuildID); err == nil {
		return node, nil
	}

	channelID, err := voiceChannelOf(s, m.GuildID, m.Author.ID)
	if err != nil {
		return nil, err
	}

	node, err := cluster.BestNode()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.joining[m.GuildID] = node
	b.mu.Unlock()

	if err := s.ChannelVoiceJoinManual(m.GuildID, channelID, false, true); err != nil {
		b.mu.Lock()
		delete(b.joining, m.GuildID)
		b.mu.Unlock()
		return nil, fmt.Errorf("bot: join voice channel: %w", err)
	}

	if err := waitForPlayer(ctx, node, m.GuildID); err != nil {
		return nil, err
	}
	return node, nil
}

// voiceChannelOf finds the voice channel the user currently occupies.
func voiceChannelOf(s *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("bot: guild %s not in state: %w", guildID, err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("bot: you need to be in a voice channel first")
}

// waitForPlayer polls until the guild's voice handshake completes and a
// player exists on the node.
func waitForPlayer(ctx context.Context, node *andelink.Node, guildID string) error {
	ctx, cancel := context.WithTimeout(ctx, playerWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, ok := node.PlayerState(guildID); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("bot: voice handshake timed out for guild %s", guildID)
		case <-ticker.C:
		}
	}
}
