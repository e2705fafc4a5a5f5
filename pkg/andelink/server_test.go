package andelink_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/andelink-audio/andelink/pkg/andelink"
	"github.com/andelink-audio/andelink/pkg/andelink/wire"
)

// fakeNode is an in-process audio server: it accepts the node's streaming
// upgrade on / and optionally serves REST requests on any other path.
type fakeNode struct {
	srv     *httptest.Server
	headers chan http.Header
	conns   chan *websocket.Conn
}

// startFakeNode launches a test audio server. Requests to paths other than /
// are dispatched to rest, if given. The server and every accepted connection
// are torn down when the test finishes.
func startFakeNode(t *testing.T, rest ...http.HandlerFunc) *fakeNode {
	t.Helper()
	done := make(chan struct{})
	fn := &fakeNode{
		headers: make(chan http.Header, 4),
		conns:   make(chan *websocket.Conn, 4),
	}
	fn.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			if len(rest) > 0 {
				rest[0](w, r)
			} else {
				http.NotFound(w, r)
			}
			return
		}
		fn.headers <- r.Header.Clone()
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		fn.conns <- conn
		<-done
	}))
	t.Cleanup(fn.srv.Close)
	t.Cleanup(func() { close(done) })
	return fn
}

// config returns a NodeConfig pointing at the fake server.
func (f *fakeNode) config(userID string) andelink.NodeConfig {
	u, err := url.Parse(f.srv.URL)
	if err != nil {
		panic(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		panic(err)
	}
	port, _ := strconv.Atoi(portStr)
	return andelink.NodeConfig{Host: host, Port: port, Password: "secret", UserID: userID}
}

// accept returns the next connection the server accepted.
func (f *fakeNode) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-f.conns:
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for node connection")
		return nil
	}
}

// readFrame reads one text frame and decodes it into a generic map.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("readFrame unmarshal: %v", err)
	}
	return m
}

// writeFrame marshals v and sends it to the node as a text frame.
func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("writeFrame marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
}

// expectNoFrame asserts that no frame arrives within a grace period. The read
// context cancellation tears the connection down, so use this only as the last
// interaction with conn.
func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if _, data, err := conn.Read(ctx); err == nil {
		t.Fatalf("unexpected frame: %s", data)
	}
}

// waitConnected polls until the cluster registry holds want connected nodes.
func waitConnected(t *testing.T, c *andelink.Cluster, want int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if len(c.Nodes()) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout: %d connected nodes, want %d", len(c.Nodes()), want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// connectNode spins up a fake server, a single-node cluster and waits for the
// node to register. It returns the server side of the control connection.
func connectNode(t *testing.T, handler andelink.EventHandler, opts ...andelink.Option) (*andelink.Cluster, *andelink.Node, *fakeNode, *websocket.Conn) {
	t.Helper()
	fn := startFakeNode(t)
	cluster := andelink.NewCluster(handler, opts...)
	t.Cleanup(cluster.Close)
	node := cluster.AddNode(fn.config("bot-user"))
	waitConnected(t, cluster, 1)
	return cluster, node, fn, fn.accept(t)
}

// establishSession drives CreateSession for the guild and consumes the
// resulting voiceUpdate frame.
func establishSession(t *testing.T, node *andelink.Node, conn *websocket.Conn, guildID string) {
	t.Helper()
	err := node.CreateSession(context.Background(), guildID, andelink.VoiceSession{
		SessionID: "sess-" + guildID,
		Token:     "tok-" + guildID,
		Endpoint:  "voice.example.com",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if frame := readFrame(t, conn); frame["op"] != "voiceUpdate" {
		t.Fatalf("op = %v; want voiceUpdate", frame["op"])
	}
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// recordingHandler captures dispatched events on buffered channels.
type recordingHandler struct {
	andelink.NopHandler
	stats      chan wire.Stats
	trackEnds  chan wire.TrackEnd
	wsCloses   chan wire.WebSocketClosed
	playerUpds chan wire.PlayerUpdate
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		stats:      make(chan wire.Stats, 8),
		trackEnds:  make(chan wire.TrackEnd, 8),
		wsCloses:   make(chan wire.WebSocketClosed, 8),
		playerUpds: make(chan wire.PlayerUpdate, 8),
	}
}

func (h *recordingHandler) OnStats(_ context.Context, _ *andelink.Node, s wire.Stats) {
	h.stats <- s
}

func (h *recordingHandler) OnPlayerUpdate(_ context.Context, _ *andelink.Node, u wire.PlayerUpdate) {
	h.playerUpds <- u
}

func (h *recordingHandler) OnTrackEnd(_ context.Context, _ *andelink.Node, e wire.TrackEnd) {
	h.trackEnds <- e
}

func (h *recordingHandler) OnWebSocketClosed(_ context.Context, _ *andelink.Node, e wire.WebSocketClosed) {
	h.wsCloses <- e
}

// recordingObserver captures lifecycle notifications.
type recordingObserver struct {
	terminated chan int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{terminated: make(chan int, 4)}
}

func (o *recordingObserver) NodeConnected(int)                             {}
func (o *recordingObserver) NodeDisconnected(int)                          {}
func (o *recordingObserver) NodeTerminated(id int)                         { o.terminated <- id }
func (o *recordingObserver) FrameReceived(int, string)                     {}
func (o *recordingObserver) CommandSent(int, string, time.Duration, error) {}
