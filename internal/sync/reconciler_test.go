package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/api"
	"github.com/dgnsrekt/chatsync/internal/api/apitest"
	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

var testNow = time.UnixMilli(5000)

// seededStore returns a cache for user "me" viewing channel c1 of team t1,
// disconnected at 1000.
func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(nil, zap.NewNop())
	st.Dispatch(
		store.CurrentUserReceived{User: &model.User{ID: "me", Username: "me"}},
		store.ProfilesReceived{Users: []*model.User{{ID: "u1", Username: "one"}, {ID: "u2", Username: "two"}}},
		store.MyTeamMembersReceived{Members: []*model.TeamMember{{TeamID: "t1", UserID: "me"}}},
		store.CurrentTeamSelected{TeamID: "t1"},
		store.ChannelsReceived{TeamID: "t1", Channels: []*model.Channel{
			{ID: "c0", TeamID: "t1", Name: store.DefaultChannelName, Type: model.ChannelOpen},
			{ID: "c1", TeamID: "t1", Name: "general", Type: model.ChannelOpen},
		}},
		store.MyChannelMembersReceived{TeamID: "t1", Members: []*model.ChannelMember{
			{ChannelID: "c0", UserID: "me"},
			{ChannelID: "c1", UserID: "me"},
		}},
		store.CurrentChannelSelected{ChannelID: "c1"},
		store.PostsReceived{ChannelID: "c1", List: &model.PostList{Posts: map[string]*model.Post{
			"p1": {ID: "p1", ChannelID: "c1", CreateAt: 500},
			"p2": {ID: "p2", ChannelID: "c1", CreateAt: 900},
		}}},
		store.ConnectionChanged{At: 100},
		store.ConnectionClosed{At: 1000},
	)
	return st
}

// serverFake mirrors the seeded cache: me is still in t1 and c1.
func serverFake() *apitest.Fake {
	f := apitest.NewFake()
	f.Me = &model.User{ID: "me", Username: "me", Roles: "system_user"}
	f.Teams = []*model.Team{{ID: "t1", Name: "team"}}
	f.TeamMembers = []*model.TeamMember{{TeamID: "t1", UserID: "me", Roles: "team_user"}}
	f.Channels["t1"] = []*model.Channel{
		{ID: "c0", TeamID: "t1", Name: store.DefaultChannelName, Type: model.ChannelOpen},
		{ID: "c1", TeamID: "t1", Name: "general", Type: model.ChannelOpen},
	}
	f.ChannelMembers["t1"] = []*model.ChannelMember{
		{ChannelID: "c0", UserID: "me", Roles: "channel_user"},
		{ChannelID: "c1", UserID: "me", Roles: "channel_user"},
	}
	f.Roles["system_user"] = &model.Role{ID: "r1", Name: "system_user"}
	f.Roles["team_user"] = &model.Role{ID: "r2", Name: "team_user"}
	f.Roles["channel_user"] = &model.Role{ID: "r3", Name: "channel_user"}
	f.Posts["c1"] = &model.PostList{Posts: map[string]*model.Post{
		"p3": {ID: "p3", ChannelID: "c1", CreateAt: 1200},
	}}
	return f
}

func newTestReconciler(client api.Client, st *store.Store) *Reconciler {
	r := NewReconciler(client, st, NewSession(), zap.NewNop())
	r.now = func() time.Time { return testNow }
	r.async = func(fn func()) { fn() }
	return r
}

// recordBatches captures every batch applied to st.
func recordBatches(st *store.Store) *[][]store.Action {
	var batches [][]store.Action
	st.Subscribe(func(batch []store.Action) { batches = append(batches, batch) })
	return &batches
}

func containsAction(batches [][]store.Action, want store.Action) bool {
	for _, b := range batches {
		for _, a := range b {
			if a == want {
				return true
			}
		}
	}
	return false
}

func TestOnMissedEventsOnlyTouchesConnection(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	r := newTestReconciler(fake, st)

	before, err := st.Snapshot()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r.OnMissedEvents(testNow.Add(time.Duration(i) * time.Second))
	}

	after, err := st.Snapshot()
	require.NoError(t, err)

	assert.Empty(t, fake.Calls())
	assert.True(t, after.Connection.Connected)
	assert.Equal(t, testNow.Add(2*time.Second).UnixMilli(), after.Connection.LastConnectAt)

	after.Connection = before.Connection
	assert.Equal(t, before, after)
}

func TestOnFirstConnectFetchesProfileDeltaWithoutMe(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.Users["u1"] = &model.User{ID: "u1", Username: "renamed"}
	client := &hookClient{Fake: fake}
	client.profiles = func(ids []string, since int64) ([]*model.User, error) {
		// The server may echo the caller back; it must not be merged.
		users, err := fake.GetProfilesByIDs(context.Background(), ids, since)
		return append(users, &model.User{ID: "me", Username: "overwritten"}), err
	}
	r := newTestReconciler(client, st)
	batches := recordBatches(st)

	require.NoError(t, r.OnFirstConnect(context.Background(), testNow))

	assert.Equal(t, []string{"GetProfilesByIDs [u1 u2] 1000"}, fake.Called("GetProfilesByIDs"))
	require.Len(t, *batches, 1)

	me, _ := st.User("me")
	assert.Equal(t, "me", me.Username)
	u1, _ := st.User("u1")
	assert.Equal(t, "renamed", u1.Username)
	assert.True(t, st.Connection().Connected)
}

func TestOnFirstConnectWithoutDisconnectSkipsFetch(t *testing.T) {
	st := store.New(nil, zap.NewNop())
	st.Dispatch(
		store.CurrentUserReceived{User: &model.User{ID: "me"}},
		store.ProfilesReceived{Users: []*model.User{{ID: "u1"}}},
	)
	fake := serverFake()
	r := newTestReconciler(fake, st)

	require.NoError(t, r.OnFirstConnect(context.Background(), testNow))

	assert.Empty(t, fake.Calls())
	assert.Equal(t, testNow.UnixMilli(), st.Connection().LastConnectAt)
}

func TestOnFirstConnectSwallowsFetchError(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.Errors["GetProfilesByIDs"] = errors.New("boom")
	r := newTestReconciler(fake, st)

	assert.NoError(t, r.OnFirstConnect(context.Background(), testNow))
	assert.True(t, st.Connection().Connected)
}

func TestOnReconnectLeftTeam(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.TeamMembers = []*model.TeamMember{{TeamID: "t2", UserID: "me", Roles: "team_user"}}
	r := newTestReconciler(fake, st)
	batches := recordBatches(st)

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	assert.True(t, containsAction(*batches, store.TeamLeft{UserID: "me", TeamID: "t1"}))
	assert.Empty(t, fake.Called("GetMyChannels"))
	assert.Empty(t, fake.Called("GetMyChannelMembers"))
	assert.Empty(t, st.CurrentTeamID())
	_, ok := st.Channel("c1")
	assert.False(t, ok)
}

func TestOnReconnectValidChannelFetchesPostDelta(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	r := newTestReconciler(fake, st)
	batches := recordBatches(st)

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	assert.Equal(t, []string{"GetPostsSince c1 900"}, fake.Called("GetPostsSince"))
	assert.False(t, containsAction(*batches, store.SelectDefaultChannel{TeamID: "t1"}))
	assert.Equal(t, int64(1200), st.LastPostAt("c1"))
	assert.Equal(t, "c1", st.CurrentChannelID())

	// One batch for the connection flag, one for everything fetched.
	require.Len(t, *batches, 2)
	assert.Equal(t, []store.Action{store.ConnectionChanged{At: testNow.UnixMilli()}}, (*batches)[0])

	for _, role := range []string{"system_user", "team_user", "channel_user"} {
		assert.True(t, st.HasRole(role), role)
	}
	assert.Equal(t, []string{"GetProfilesByIDs [u1 u2] 1000"}, fake.Called("GetProfilesByIDs"))
}

func TestOnReconnectInvalidChannelSelectsDefault(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.ChannelMembers["t1"] = []*model.ChannelMember{{ChannelID: "c0", UserID: "me"}}
	r := newTestReconciler(fake, st)
	batches := recordBatches(st)

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	assert.True(t, containsAction(*batches, store.SelectDefaultChannel{TeamID: "t1"}))
	assert.Empty(t, fake.Called("GetPostsSince"))
	assert.Equal(t, "c0", st.CurrentChannelID())
}

func TestOnReconnectArchivedChannel(t *testing.T) {
	tests := []struct {
		name         string
		viewArchived string
		wantPosts    bool
	}{
		{name: "hidden", viewArchived: "false", wantPosts: false},
		{name: "visible", viewArchived: "true", wantPosts: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := seededStore(t)
			fake := serverFake()
			fake.Channels["t1"][1] = &model.Channel{ID: "c1", TeamID: "t1", Name: "general", DeleteAt: 2000}
			fake.Config = model.ClientConfig{model.ConfigViewArchivedChannels: tt.viewArchived}
			r := newTestReconciler(fake, st)

			require.NoError(t, r.OnReconnect(context.Background(), testNow))

			assert.Equal(t, tt.wantPosts, len(fake.Called("GetPostsSince")) == 1)
		})
	}
}

func TestOnReconnectWithoutCachedPostsSkipsPostFetch(t *testing.T) {
	st := seededStore(t)
	st.Dispatch(store.PostDeleted{Post: &model.Post{ID: "p1", ChannelID: "c1", RootID: "x"}},
		store.PostDeleted{Post: &model.Post{ID: "p2", ChannelID: "c1", RootID: "x"}})
	fake := serverFake()
	r := newTestReconciler(fake, st)

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	assert.Empty(t, fake.Called("GetPostsSince"))
}

func TestOnReconnectFailureDiscardsBatch(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.TeamMembers = []*model.TeamMember{{TeamID: "t1", UserID: "me"}, {TeamID: "t9", UserID: "me"}}
	fake.Errors["GetMyChannels"] = errors.New("network down")
	r := newTestReconciler(fake, st)
	batches := recordBatches(st)

	err := r.OnReconnect(context.Background(), testNow)
	require.Error(t, err)

	require.Len(t, *batches, 1, "only the connection flag is applied")
	assert.True(t, st.Connection().Connected)
	assert.False(t, st.IsTeamMember("t9"))
	assert.False(t, st.HasRole("system_user"))
}

func TestOnReconnectSessionBundleFailureStopsEarly(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.Errors["GetMe"] = api.ErrAuthFailed
	r := newTestReconciler(fake, st)

	err := r.OnReconnect(context.Background(), testNow)
	require.ErrorIs(t, err, api.ErrAuthFailed)
	assert.Empty(t, fake.Called("GetMyChannels"))
	assert.Empty(t, fake.Called("GetRolesByNames"))
}

func TestOnReconnectCollapsedThreads(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.Config = model.ClientConfig{model.ConfigCollapsedThreads: model.CollapsedThreadsDefaultOn}
	fake.Threads = &model.ThreadList{Total: 1, Threads: []*model.Thread{{ID: "p1", TeamID: "t1", ReplyCount: 3}}}
	r := newTestReconciler(fake, st)

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	assert.Equal(t, []string{"GetThreads me t1 1000"}, fake.Called("GetThreads"))
	th, ok := st.Thread("p1")
	require.True(t, ok)
	assert.Equal(t, int64(3), th.ReplyCount)
}

func TestOnReconnectStaleGenerationDropped(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	client := &hookClient{Fake: fake}
	r := newTestReconciler(client, st)
	client.onTeams = func() { r.session.begin() }
	batches := recordBatches(st)

	err := r.OnReconnect(context.Background(), testNow)
	require.ErrorIs(t, err, ErrStale)

	require.Len(t, *batches, 1)
	assert.False(t, st.HasRole("system_user"))
}

func TestOnReconnectSurvivesResumeMidFetch(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	fake.Channels["t1"] = append(fake.Channels["t1"], &model.Channel{ID: "c9", TeamID: "t1", Name: "new", Type: model.ChannelOpen})
	fake.ChannelMembers["t1"] = append(fake.ChannelMembers["t1"], &model.ChannelMember{ChannelID: "c9", UserID: "me"})
	client := &hookClient{Fake: fake}
	r := newTestReconciler(client, st)
	client.onTeams = func() { r.OnMissedEvents(testNow.Add(time.Second)) }

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	_, ok := st.Channel("c9")
	assert.True(t, ok, "channel created during the outage should be cached")
	assert.True(t, st.HasRole("system_user"))
	assert.True(t, st.Connection().Connected)
}

func TestOnReconnectRefreshesAppBindings(t *testing.T) {
	st := seededStore(t)
	st.Dispatch(store.ConfigReceived{Config: model.ClientConfig{model.ConfigAppsEnabled: "true"}})
	fake := serverFake()
	fake.Bindings = []model.AppBinding{{AppID: "app", Location: "/command"}}
	r := newTestReconciler(fake, st)

	require.NoError(t, r.OnReconnect(context.Background(), testNow))

	assert.Equal(t, []string{"GetAppBindings me c1 t1"}, fake.Called("GetAppBindings"))
	st.View(func(s *store.State) {
		assert.Equal(t, fake.Bindings, s.AppBindings)
	})
}

func TestHandleFirstConnectPendingReconnect(t *testing.T) {
	tests := []struct {
		name            string
		reliable        string
		shouldReconnect bool
		wantFullResync  bool
	}{
		{name: "pending reconnect without reliable websockets", reliable: "false", shouldReconnect: true, wantFullResync: true},
		{name: "pending reconnect with reliable websockets", reliable: "true", shouldReconnect: true, wantFullResync: false},
		{name: "plain close", reliable: "false", shouldReconnect: false, wantFullResync: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := seededStore(t)
			st.Dispatch(store.ConfigReceived{Config: model.ClientConfig{model.ConfigReliableWebSockets: tt.reliable}})
			fake := serverFake()
			r := newTestReconciler(fake, st)

			closed := 0
			r.session.Close(closerFunc(func(flush bool) {
				assert.True(t, flush)
				closed++
			}), tt.shouldReconnect)
			assert.Equal(t, 1, closed)

			r.HandleFirstConnect(context.Background())

			assert.Equal(t, tt.wantFullResync, len(fake.Called("GetMe")) == 1)
			assert.Equal(t, ModeFirstConnect, r.session.Pending())
			assert.True(t, st.Connection().Connected)
		})
	}
}

func TestOnCloseMarksRetryFailed(t *testing.T) {
	st := seededStore(t)
	r := newTestReconciler(serverFake(), st)
	batches := recordBatches(st)

	r.OnClose(3)
	assert.False(t, st.Connection().RetryFailed)

	r.OnClose(maxRetriesBeforeFailed + 1)
	assert.True(t, st.Connection().RetryFailed)

	require.Len(t, *batches, 2)
	assert.Equal(t, store.ConnectionClosed{At: testNow.UnixMilli(), FailCount: 3}, (*batches)[0][0])
}

type closerFunc func(flushQueues bool)

func (f closerFunc) Close(flushQueues bool) { f(flushQueues) }

// hookClient lets a test intercept selected calls of the fake.
type hookClient struct {
	*apitest.Fake
	onTeams  func()
	profiles func(ids []string, since int64) ([]*model.User, error)
}

func (h *hookClient) GetMyTeams(ctx context.Context) ([]*model.Team, error) {
	if h.onTeams != nil {
		h.onTeams()
	}
	return h.Fake.GetMyTeams(ctx)
}

func (h *hookClient) GetProfilesByIDs(ctx context.Context, ids []string, since int64) ([]*model.User, error) {
	if h.profiles != nil {
		return h.profiles(ids, since)
	}
	return h.Fake.GetProfilesByIDs(ctx, ids, since)
}
