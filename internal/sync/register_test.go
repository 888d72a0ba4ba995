package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/chatsync/internal/model"
)

type fakeLifecycle struct {
	firstConnect func()
	onEvent      func(*model.Event)
	missed       func()
	reconnect    func()
	onClose      func(int)
}

func (f *fakeLifecycle) SetFirstConnectCallback(fn func())       { f.firstConnect = fn }
func (f *fakeLifecycle) SetEventCallback(fn func(*model.Event))  { f.onEvent = fn }
func (f *fakeLifecycle) SetMissedEventsCallback(fn func())       { f.missed = fn }
func (f *fakeLifecycle) SetReconnectCallback(fn func())          { f.reconnect = fn }
func (f *fakeLifecycle) SetCloseCallback(fn func(failCount int)) { f.onClose = fn }

type handlerFunc func(ctx context.Context, ev *model.Event) error

func (f handlerFunc) Handle(ctx context.Context, ev *model.Event) error { return f(ctx, ev) }

func TestRegisterWiresLifecycle(t *testing.T) {
	st := seededStore(t)
	fake := serverFake()
	r := newTestReconciler(fake, st)

	var seen []string
	lc := &fakeLifecycle{}
	r.Register(context.Background(), lc, handlerFunc(func(ctx context.Context, ev *model.Event) error {
		seen = append(seen, ev.Event)
		return errors.New("ignored")
	}))
	require.NotNil(t, lc.firstConnect)
	require.NotNil(t, lc.onEvent)
	require.NotNil(t, lc.missed)
	require.NotNil(t, lc.reconnect)
	require.NotNil(t, lc.onClose)

	lc.onClose(2)
	assert.False(t, st.Connection().Connected)

	lc.missed()
	assert.True(t, st.Connection().Connected)
	assert.Empty(t, fake.Calls())

	lc.onEvent(&model.Event{Event: model.EventPosted})
	assert.Equal(t, []string{model.EventPosted}, seen)

	lc.reconnect()
	assert.Len(t, fake.Called("GetMe"), 1)

	lc.firstConnect()
	assert.Len(t, fake.Called("GetMe"), 1)
}
