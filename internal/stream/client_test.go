package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
)

// fakeServer accepts websocket connections and lets the test script them.
type fakeServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	queries  chan string
	server   *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		t:       t,
		conns:   make(chan *websocket.Conn, 4),
		queries: make(chan string, 4),
	}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.queries <- r.URL.RawQuery
		fs.conns <- conn
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.server.URL, "http") + "/api/v4/websocket"
}

func (fs *fakeServer) accept() *websocket.Conn {
	fs.t.Helper()
	select {
	case conn := <-fs.conns:
		// First frame is the authentication challenge.
		_, msg, err := conn.ReadMessage()
		require.NoError(fs.t, err)
		var out outboundMessage
		require.NoError(fs.t, json.Unmarshal(msg, &out))
		assert.Equal(fs.t, actionAuthChallenge, out.Action)
		assert.Equal(fs.t, "tok", out.Data["token"])
		return conn
	case <-time.After(5 * time.Second):
		fs.t.Fatal("timed out waiting for connection")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, ev model.Event) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

func hello(id string) model.Event {
	return model.Event{Event: model.EventHello, Data: map[string]any{"connection_id": id}}
}

// recorder captures callbacks in order.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	signal chan string
}

func newRecorder(c *Client) *recorder {
	r := &recorder{signal: make(chan string, 32)}
	c.SetFirstConnectCallback(func() { r.add("first") })
	c.SetMissedEventsCallback(func() { r.add("missed") })
	c.SetReconnectCallback(func() { r.add("reconnect") })
	c.SetEventCallback(func(ev *model.Event) { r.add("event:" + ev.Event) })
	c.SetCloseCallback(func(int) { r.add("close") })
	return r
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	r.signal <- call
}

func (r *recorder) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-r.signal:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func testOptions(url string, reliable bool) Options {
	return Options{
		ConnectionURL:      url,
		PingInterval:       time.Second,
		MinReconnectDelay:  10 * time.Millisecond,
		MaxReconnectDelay:  50 * time.Millisecond,
		ReliableWebSockets: reliable,
	}
}

func TestFirstConnectThenEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fs := newFakeServer(t)
	defer fs.server.Close()
	client := NewClient(zap.NewNop())
	rec := newRecorder(client)

	require.NoError(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), true)))
	conn := fs.accept()

	send(t, conn, hello("conn-1"))
	rec.waitFor(t, "event:hello")

	send(t, conn, model.Event{Event: model.EventPosted, Seq: 1})
	rec.waitFor(t, "event:posted")

	client.Close(false)
	_ = conn.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"first", "event:hello", "event:posted", "close"}, rec.calls)
}

func TestResumeWithSameConnectionIsMissedEvents(t *testing.T) {
	fs := newFakeServer(t)
	client := NewClient(zap.NewNop())
	rec := newRecorder(client)

	require.NoError(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), true)))
	defer client.Close(false)

	conn := fs.accept()
	<-fs.queries
	send(t, conn, hello("conn-1"))
	send(t, conn, model.Event{Event: model.EventPosted, Seq: 1})
	rec.waitFor(t, "event:posted")

	_ = conn.Close()
	rec.waitFor(t, "close")

	conn = fs.accept()
	query := <-fs.queries
	assert.Contains(t, query, "connection_id=conn-1")
	assert.Contains(t, query, "sequence_number=2")

	send(t, conn, hello("conn-1"))
	rec.waitFor(t, "missed")
	_ = conn.Close()
}

func TestNewConnectionIDIsReconnect(t *testing.T) {
	fs := newFakeServer(t)
	client := NewClient(zap.NewNop())
	rec := newRecorder(client)

	require.NoError(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), true)))
	defer client.Close(false)

	conn := fs.accept()
	send(t, conn, hello("conn-1"))
	rec.waitFor(t, "first")
	_ = conn.Close()

	conn = fs.accept()
	send(t, conn, hello("conn-2"))
	rec.waitFor(t, "reconnect")
	_ = conn.Close()
}

func TestSequenceGapWithoutReliableTriggersReconnect(t *testing.T) {
	fs := newFakeServer(t)
	client := NewClient(zap.NewNop())
	rec := newRecorder(client)

	require.NoError(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), false)))
	defer client.Close(false)

	conn := fs.accept()
	send(t, conn, hello("conn-1"))
	rec.waitFor(t, "first")

	send(t, conn, model.Event{Event: model.EventPosted, Seq: 5})
	rec.waitFor(t, "reconnect")
	rec.waitFor(t, "event:posted")
	_ = conn.Close()
}

func TestUserTypingFrame(t *testing.T) {
	fs := newFakeServer(t)
	client := NewClient(zap.NewNop())
	rec := newRecorder(client)

	assert.ErrorIs(t, client.UserTyping("c1", ""), ErrNotConnected)

	require.NoError(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), true)))
	defer client.Close(false)

	conn := fs.accept()
	send(t, conn, hello("conn-1"))
	rec.waitFor(t, "first")

	require.NoError(t, client.UserTyping("c1", "root1"))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var out outboundMessage
	require.NoError(t, json.Unmarshal(msg, &out))
	assert.Equal(t, actionUserTyping, out.Action)
	assert.Equal(t, "c1", out.Data["channel_id"])
	assert.Equal(t, "root1", out.Data["parent_id"])
	_ = conn.Close()
}

func TestRedialAfterCloseIsFirstConnect(t *testing.T) {
	fs := newFakeServer(t)
	client := NewClient(zap.NewNop())
	rec := newRecorder(client)

	require.NoError(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), true)))
	assert.ErrorIs(t, client.Initialize(context.Background(), "tok", testOptions(fs.url(), true)), ErrAlreadyRunning)

	conn := fs.accept()
	<-fs.queries
	send(t, conn, hello("conn-1"))
	rec.waitFor(t, "first")
	send(t, conn, model.Event{Event: model.EventPosted, Seq: 1})
	rec.waitFor(t, "event:posted")

	client.Close(true)
	rec.waitFor(t, "close")
	_ = conn.Close()

	require.NoError(t, client.Redial(context.Background()))
	defer client.Close(false)

	conn = fs.accept()
	query := <-fs.queries
	assert.NotContains(t, query, "connection_id")
	send(t, conn, hello("conn-2"))
	rec.waitFor(t, "first")
	_ = conn.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.NotContains(t, rec.calls, "reconnect")
	assert.NotContains(t, rec.calls, "missed")
}

func TestRedialRequiresInitialize(t *testing.T) {
	client := NewClient(zap.NewNop())
	assert.Error(t, client.Redial(context.Background()))
}

func TestBackoffIsCapped(t *testing.T) {
	opts := Options{MinReconnectDelay: time.Second, MaxReconnectDelay: 5 * time.Second}
	assert.Equal(t, time.Second, opts.backoff(1))
	assert.Equal(t, 2*time.Second, opts.backoff(2))
	assert.Equal(t, 4*time.Second, opts.backoff(3))
	assert.Equal(t, 5*time.Second, opts.backoff(10))
}
