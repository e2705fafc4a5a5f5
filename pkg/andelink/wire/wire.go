// Package wire implements the text-frame codec spoken over an audio node's
// streaming control connection.
//
// Outbound commands are JSON objects carrying a literal "op" field plus the
// target guild id as a decimal string. Inbound frames are classified by their
// "op" field and, for generic server events, a secondary "type" discriminant.
// Frames with an unrecognised op or type decode to nil so that callers can
// drop them, which keeps the codec forward compatible with newer servers.
package wire

import (
	"encoding/json"
	"fmt"
)

// Op is the string tag identifying the semantic type of a frame.
type Op string

// Outbound operation codes.
const (
	OpDestroy     Op = "destroy"
	OpStop        Op = "stop"
	OpPlay        Op = "play"
	OpSeek        Op = "seek"
	OpPause       Op = "pause"
	OpVolume      Op = "volume"
	OpEqualizer   Op = "equalizer"
	OpVoiceUpdate Op = "voiceUpdate"
)

// Inbound operation codes.
const (
	OpStats        Op = "stats"
	OpPlayerUpdate Op = "playerUpdate"
	OpEvent        Op = "event"
)

// Secondary discriminants for OpEvent frames.
const (
	EventTrackStart      = "TrackStartEvent"
	EventTrackEnd        = "TrackEndEvent"
	EventWebSocketClosed = "WebSocketClosedEvent"
)

// ReasonFinished is the TrackEnd reason that triggers queue advancement.
const ReasonFinished = "FINISHED"

// ── Outbound commands ─────────────────────────────────────────────────────────

// DestroyCommand tears down the server-side player of a guild.
type DestroyCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
}

// StopCommand stops playback without destroying the player.
type StopCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
}

// PlayCommand starts playback of an encoded track.
type PlayCommand struct {
	Op        Op     `json:"op"`
	GuildID   string `json:"guildId"`
	Track     string `json:"track"`
	NoReplace bool   `json:"noReplace"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime,omitempty"`
}

// SeekCommand jumps to a position (milliseconds) in the current track.
type SeekCommand struct {
	Op       Op     `json:"op"`
	GuildID  string `json:"guildId"`
	Position int64  `json:"position"`
}

// PauseCommand sets the paused state of a player.
type PauseCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

// VolumeCommand sets the player volume, 0-1000.
type VolumeCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Volume  int    `json:"volume"`
}

// Band is one equalizer band. Band indexes 0-14 are valid; Gain ranges from
// -0.25 (muted) to 1.0.
type Band struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// EqualizerCommand replaces the gain of the given equalizer bands.
type EqualizerCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Bands   []Band `json:"bands"`
}

// VoiceServerPayload is the server half of a voice handshake as embedded in a
// voiceUpdate command.
type VoiceServerPayload struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
	GuildID  string `json:"guildId"`
}

// VoiceUpdateCommand establishes the voice session of a guild on the node by
// combining both halves of the handshake.
type VoiceUpdateCommand struct {
	Op        Op                 `json:"op"`
	GuildID   string             `json:"guildId"`
	SessionID string             `json:"sessionId"`
	Event     VoiceServerPayload `json:"event"`
}

// Destroy builds a destroy command for guildID.
func Destroy(guildID string) DestroyCommand {
	return DestroyCommand{Op: OpDestroy, GuildID: guildID}
}

// Stop builds a stop command for guildID.
func Stop(guildID string) StopCommand {
	return StopCommand{Op: OpStop, GuildID: guildID}
}

// Play builds a play command. start and end are milliseconds; a zero end
// means "play to the end" and is omitted from the frame.
func Play(guildID, encoded string, noReplace bool, start, end int64) PlayCommand {
	return PlayCommand{
		Op:        OpPlay,
		GuildID:   guildID,
		Track:     encoded,
		NoReplace: noReplace,
		StartTime: start,
		EndTime:   end,
	}
}

// Seek builds a seek command to position (milliseconds).
func Seek(guildID string, position int64) SeekCommand {
	return SeekCommand{Op: OpSeek, GuildID: guildID, Position: position}
}

// Pause builds a pause command.
func Pause(guildID string, pause bool) PauseCommand {
	return PauseCommand{Op: OpPause, GuildID: guildID, Pause: pause}
}

// Volume builds a volume command. The caller is responsible for clamping.
func Volume(guildID string, volume int) VolumeCommand {
	return VolumeCommand{Op: OpVolume, GuildID: guildID, Volume: volume}
}

// Equalizer builds an equalizer command for the given bands.
func Equalizer(guildID string, bands []Band) EqualizerCommand {
	return EqualizerCommand{Op: OpEqualizer, GuildID: guildID, Bands: bands}
}

// VoiceUpdate builds a voiceUpdate command from the merged handshake halves.
func VoiceUpdate(guildID, sessionID, token, endpoint string) VoiceUpdateCommand {
	return VoiceUpdateCommand{
		Op:        OpVoiceUpdate,
		GuildID:   guildID,
		SessionID: sessionID,
		Event: VoiceServerPayload{
			Token:    token,
			Endpoint: endpoint,
			GuildID:  guildID,
		},
	}
}

// Encode serialises an outbound command to a text frame payload.
func Encode(cmd any) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return data, nil
}

// ── Inbound frames ────────────────────────────────────────────────────────────

// Stats is the periodic server statistics frame.
type Stats struct {
	Op             Op          `json:"op"`
	Players        int64       `json:"players"`
	PlayingPlayers int64       `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         Memory      `json:"memory"`
	CPU            CPU         `json:"cpu"`
	FrameStats     *FrameStats `json:"frameStats,omitempty"`
}

// Memory reports the server's JVM memory usage.
type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPU reports the server's processor load.
type CPU struct {
	Cores      int64   `json:"cores"`
	SystemLoad float64 `json:"systemLoad"`
	PlayerLoad float64 `json:"lavalinkLoad"`
}

// FrameStats reports audio frame delivery counters. Only present on servers
// with at least one active player.
type FrameStats struct {
	Sent    int64 `json:"sent"`
	Nulled  int64 `json:"nulled"`
	Deficit int64 `json:"deficit"`
}

// PlayerUpdate reports the playback position of one guild's player.
type PlayerUpdate struct {
	Op      Op          `json:"op"`
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

// PlayerState is the position payload of a PlayerUpdate.
type PlayerState struct {
	Time     int64 `json:"time"`
	Position int64 `json:"position"`
}

// TrackStart signals that a track began playing.
type TrackStart struct {
	Op      Op     `json:"op"`
	Type    string `json:"type"`
	GuildID string `json:"guildId"`
	Track   string `json:"track"`
}

// TrackEnd signals that a track stopped playing, with the server's reason.
type TrackEnd struct {
	Op      Op     `json:"op"`
	Type    string `json:"type"`
	GuildID string `json:"guildId"`
	Track   string `json:"track"`
	Reason  string `json:"reason"`
}

// WebSocketClosed signals that the node's own voice connection to the remote
// gateway was closed.
type WebSocketClosed struct {
	Op       Op     `json:"op"`
	Type     string `json:"type"`
	GuildID  string `json:"guildId,omitempty"`
	Code     int    `json:"code"`
	Reason   string `json:"reason"`
	ByRemote bool   `json:"byRemote"`
}

// probe discovers the op and event type of an inbound frame without decoding
// the full payload.
type probe struct {
	Op   Op     `json:"op"`
	Type string `json:"type"`
}

// Decode classifies an inbound text frame and decodes it into its concrete
// type: *Stats, *PlayerUpdate, *TrackStart, *TrackEnd or *WebSocketClosed.
// Frames with an unknown op or event type decode to (nil, nil) and should be
// dropped by the caller.
func Decode(data []byte) (any, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: classify: %w", err)
	}

	switch p.Op {
	case OpStats:
		msg := &Stats{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("wire: decode stats: %w", err)
		}
		return msg, nil
	case OpPlayerUpdate:
		msg := &PlayerUpdate{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("wire: decode playerUpdate: %w", err)
		}
		return msg, nil
	case OpEvent:
		switch p.Type {
		case EventTrackStart:
			msg := &TrackStart{}
			if err := json.Unmarshal(data, msg); err != nil {
				return nil, fmt.Errorf("wire: decode %s: %w", p.Type, err)
			}
			return msg, nil
		case EventTrackEnd:
			msg := &TrackEnd{}
			if err := json.Unmarshal(data, msg); err != nil {
				return nil, fmt.Errorf("wire: decode %s: %w", p.Type, err)
			}
			return msg, nil
		case EventWebSocketClosed:
			msg := &WebSocketClosed{}
			if err := json.Unmarshal(data, msg); err != nil {
				return nil, fmt.Errorf("wire: decode %s: %w", p.Type, err)
			}
			return msg, nil
		}
	}

	return nil, nil
}
