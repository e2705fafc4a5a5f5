// Package andelink is a client-side cluster manager for horizontally scaled
// audio backends speaking the Lavalink/Andesite control protocol.
//
// A Cluster owns a set of Nodes, one per backend server. Each node maintains
// a durable streaming control connection with bounded reconnection, tracks
// per-guild playback and queue state from asynchronous server events, and
// reconciles the two independently arriving halves of a voice handshake
// before a session is established. The cluster routes new sessions to the
// least loaded node and playback commands to the node serving a guild.
package andelink

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ReconnectPolicy bounds a node's reconnection behaviour: a fixed backoff
// between attempts and a ceiling on consecutive connect failures, after which
// the node is permanently terminated.
type ReconnectPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

const (
	defaultReconnectAttempts = 5
	defaultReconnectBackoff  = 5 * time.Second
)

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultReconnectAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultReconnectBackoff
	}
	return p
}

// Option is a functional option for configuring a Cluster.
type Option func(*Cluster)

// WithReconnectPolicy overrides the default reconnection policy applied to
// every node.
func WithReconnectPolicy(policy ReconnectPolicy) Option {
	return func(c *Cluster) { c.policy = policy.withDefaults() }
}

// WithObserver installs an Observer receiving node lifecycle and traffic
// notifications, typically for metrics.
func WithObserver(observer Observer) Option {
	return func(c *Cluster) { c.observer = observer }
}

// Cluster is the registry of audio nodes. A node is present in the registry
// if and only if it is currently connected; nodes mid-reconnect are delisted
// so that routing and load balancing never target them.
type Cluster struct {
	handler  EventHandler
	observer Observer
	policy   ReconnectPolicy

	mu      sync.RWMutex
	nodes   map[int]*Node // connected nodes only
	managed map[int]*Node // every live node, connected or not
	nextID  int
}

// NewCluster creates a cluster dispatching events to handler. The handler is
// shared by all nodes added later.
func NewCluster(handler EventHandler, opts ...Option) *Cluster {
	c := &Cluster{
		handler:  handler,
		observer: nopObserver{},
		policy:   ReconnectPolicy{}.withDefaults(),
		nodes:    make(map[int]*Node),
		managed:  make(map[int]*Node),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddNode allocates the next node id, constructs the node and starts its
// connection lifecycle. It returns immediately; the node appears in the
// registry once its first connection attempt succeeds. Node ids increase
// monotonically and are never reused, even after a node is removed.
func (c *Cluster) AddNode(cfg NodeConfig) *Node {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	n := newNode(id, cfg, c.handler, c.observer, c.policy)

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	c.mu.Lock()
	c.managed[id] = n
	c.mu.Unlock()

	go n.run(ctx, c)
	return n
}

// BestNode returns the connected node with the fewest active guild sessions.
// With a single node registered it is returned regardless of load; ties are
// broken arbitrarily.
func (c *Cluster) BestNode() (*Node, error) {
	nodes := c.Nodes()
	if len(nodes) == 0 {
		return nil, ErrNoNodesAvailable
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}

	best := nodes[0]
	bestCount := best.PlayerCount()
	for _, n := range nodes[1:] {
		if count := n.PlayerCount(); count < bestCount {
			best, bestCount = n, count
		}
	}
	return best, nil
}

// NodeForGuild returns the connected node holding a player for the guild.
func (c *Cluster) NodeForGuild(guildID string) (*Node, error) {
	for _, n := range c.Nodes() {
		if n.hasPlayer(guildID) {
			return n, nil
		}
	}
	return nil, ErrGuildNotFound
}

// Nodes returns a snapshot of the currently connected nodes, ordered by id.
func (c *Cluster) Nodes() []*Node {
	c.mu.RLock()
	nodes := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		nodes = append(nodes, n)
	}
	c.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}

// Close stops the lifecycle of every node. The cluster must not be reused
// afterwards.
func (c *Cluster) Close() {
	c.mu.RLock()
	managed := make([]*Node, 0, len(c.managed))
	for _, n := range c.managed {
		managed = append(managed, n)
	}
	c.mu.RUnlock()

	for _, n := range managed {
		n.Close()
	}
}

// register lists a node as connected, making it visible to routing.
func (c *Cluster) register(n *Node) {
	c.mu.Lock()
	c.nodes[n.id] = n
	c.mu.Unlock()
}

// unregister delists a node while it reconnects.
func (c *Cluster) unregister(id int) {
	c.mu.Lock()
	delete(c.nodes, id)
	c.mu.Unlock()
}

// retire removes a terminated node entirely. Its id is never reused.
func (c *Cluster) retire(id int) {
	c.mu.Lock()
	delete(c.nodes, id)
	delete(c.managed, id)
	c.mu.Unlock()
}
