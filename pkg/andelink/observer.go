package andelink

import "time"

// Observer receives lifecycle and traffic notifications from the nodes of a
// cluster. It is the typed extension point collaborators hook telemetry into;
// implementations must be safe for concurrent use. All callbacks are invoked
// synchronously from node goroutines, possibly while the node's internal lock
// is held: they must return quickly and must not call back into the Node or
// Cluster, or they will deadlock.
type Observer interface {
	// NodeConnected fires after a node's connection handshake succeeds and the
	// node is registered with the cluster.
	NodeConnected(nodeID int)

	// NodeDisconnected fires when a connected node loses its connection and
	// is delisted pending reconnection.
	NodeDisconnected(nodeID int)

	// NodeTerminated fires when a node exhausts its reconnection budget and
	// is permanently removed.
	NodeTerminated(nodeID int)

	// FrameReceived fires for every classified inbound frame.
	FrameReceived(nodeID int, op string)

	// CommandSent fires after an outbound command write completes, with the
	// write duration and its outcome.
	CommandSent(nodeID int, op string, elapsed time.Duration, err error)
}

// nopObserver is the default Observer when none is configured.
type nopObserver struct{}

var _ Observer = nopObserver{}

func (nopObserver) NodeConnected(int)                             {}
func (nopObserver) NodeDisconnected(int)                          {}
func (nopObserver) NodeTerminated(int)                            {}
func (nopObserver) FrameReceived(int, string)                     {}
func (nopObserver) CommandSent(int, string, time.Duration, error) {}
