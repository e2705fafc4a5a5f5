package andelink

import "errors"

// Sentinel errors returned by cluster and node operations. All of them are
// local and recoverable; nothing in this package is fatal to the process.
var (
	// ErrNoConnection is returned when a command is issued on a node that has
	// no live control connection.
	ErrNoConnection = errors.New("andelink: no live connection to the audio node")

	// ErrNoSuchPlayer is returned when a command targets a guild without an
	// established session on the node.
	ErrNoSuchPlayer = errors.New("andelink: no player for guild")

	// ErrNoNodesAvailable is returned by Cluster.BestNode when no node is
	// currently connected.
	ErrNoNodesAvailable = errors.New("andelink: no nodes available")

	// ErrGuildNotFound is returned by Cluster.NodeForGuild when no connected
	// node serves the guild.
	ErrGuildNotFound = errors.New("andelink: no node serves this guild")

	// ErrMissingToken is returned by CreateSession when the voice token is
	// empty.
	ErrMissingToken = errors.New("andelink: voice session is missing the token")

	// ErrMissingEndpoint is returned by CreateSession when the voice endpoint
	// is empty.
	ErrMissingEndpoint = errors.New("andelink: voice session is missing the endpoint")

	// ErrMissingSessionID is returned by CreateSession when the session id is
	// empty.
	ErrMissingSessionID = errors.New("andelink: voice session is missing the session id")

	// ErrIncompleteVoiceServer is returned when a completed handshake pair
	// lacks the server endpoint. The pending entry is discarded regardless.
	ErrIncompleteVoiceServer = errors.New("andelink: voice server update has no endpoint")
)
