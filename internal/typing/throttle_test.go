package typing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) UserTyping(channelID, parentID string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, channelID+"/"+parentID)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestNotifier(sender Sender, cfg model.ClientConfig) (*Notifier, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	n := NewNotifier(sender, func() model.ClientConfig { return cfg }, zap.NewNop())
	n.now = clock.now
	return n, clock
}

func enabledConfig() model.ClientConfig {
	return model.ClientConfig{
		model.ConfigEnableUserTyping:        "true",
		model.ConfigTypingUpdateInterval:    "5000",
		model.ConfigMaxNotificationsChannel: "100",
	}
}

func TestNotifyTypingWithinWindowSendsOnce(t *testing.T) {
	sender := &fakeSender{}
	n, clock := newTestNotifier(sender, enabledConfig())

	assert.True(t, n.NotifyTyping("c1", "", 10))
	clock.t = clock.t.Add(2 * time.Second)
	assert.False(t, n.NotifyTyping("c1", "", 10))

	assert.Equal(t, []string{"c1/"}, sender.sent)
}

func TestNotifyTypingBeyondWindowSendsTwice(t *testing.T) {
	sender := &fakeSender{}
	n, clock := newTestNotifier(sender, enabledConfig())

	assert.True(t, n.NotifyTyping("c1", "root", 10))
	clock.t = clock.t.Add(6 * time.Second)
	assert.True(t, n.NotifyTyping("c1", "root", 10))

	assert.Equal(t, []string{"c1/root", "c1/root"}, sender.sent)
}

func TestNotifyTypingSkipsLargeChannels(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newTestNotifier(sender, enabledConfig())

	assert.False(t, n.NotifyTyping("c1", "", 100))
	assert.Empty(t, sender.sent)
}

func TestNotifyTypingDisabled(t *testing.T) {
	sender := &fakeSender{}
	cfg := enabledConfig()
	cfg[model.ConfigEnableUserTyping] = "false"
	n, _ := newTestNotifier(sender, cfg)

	assert.False(t, n.NotifyTyping("c1", "", 1))
	assert.Empty(t, sender.sent)
}

func TestNotifyTypingFailedSendDoesNotConsumeWindow(t *testing.T) {
	sender := &fakeSender{err: errors.New("not connected")}
	n, _ := newTestNotifier(sender, enabledConfig())

	assert.False(t, n.NotifyTyping("c1", "", 1))

	sender.err = nil
	assert.True(t, n.NotifyTyping("c1", "", 1))
}
