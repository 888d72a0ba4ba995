package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
	"github.com/dgnsrekt/chatsync/internal/stream"
)

// helloServer greets every socket with a fresh connection id.
func helloServer(t *testing.T, dials *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		// authentication challenge
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		id := dials.Add(1)
		hello := model.Event{Event: model.EventHello, Data: map[string]any{"connection_id": fmt.Sprintf("conn-%d", id)}}
		if err := conn.WriteJSON(hello); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestRestartRunsFullReconnectOverStream(t *testing.T) {
	var dials atomic.Int32
	srv := helloServer(t, &dials)
	defer srv.Close()

	st := seededStore(t)
	st.Dispatch(store.ConfigReceived{Config: model.ClientConfig{model.ConfigReliableWebSockets: "false"}})
	fake := serverFake()
	r := newTestReconciler(fake, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := stream.NewClient(zap.NewNop())
	r.Register(ctx, client, handlerFunc(func(context.Context, *model.Event) error { return nil }))

	require.NoError(t, client.Initialize(ctx, "tok", stream.Options{
		ConnectionURL:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v4/websocket",
		PingInterval:      time.Second,
		MinReconnectDelay: 10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
	}))
	defer client.Close(false)

	require.Eventually(t, func() bool {
		return st.Connection().Connected && len(fake.Called("GetProfilesByIDs")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, fake.Called("GetMe"))

	require.NoError(t, r.session.Restart(ctx, client))

	require.Eventually(t, func() bool {
		return len(fake.Called("GetMe")) == 1 && st.HasRole("channel_user")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), dials.Load())
	assert.Equal(t, ModeFirstConnect, r.session.Pending())
	assert.True(t, st.Connection().Connected)
}

type fakeRedialer struct {
	calls []string
}

func (f *fakeRedialer) Close(flushQueues bool) {
	f.calls = append(f.calls, fmt.Sprintf("close %t", flushQueues))
}

func (f *fakeRedialer) Redial(ctx context.Context) error {
	f.calls = append(f.calls, "redial")
	return nil
}

func TestSessionRestartClosesThenRedials(t *testing.T) {
	s := NewSession()
	rd := &fakeRedialer{}

	require.NoError(t, s.Restart(context.Background(), rd))

	assert.Equal(t, []string{"close true", "redial"}, rd.calls)
	assert.Equal(t, ModeReconnect, s.Pending())
}
