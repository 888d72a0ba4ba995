// Package typing rate-limits outbound "user is typing" notifications.
package typing

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/chatsync/internal/metrics"
	"github.com/dgnsrekt/chatsync/internal/model"
)

// Sender delivers the typing ping to the server.
type Sender interface {
	UserTyping(channelID, parentID string) error
}

// ConfigSource returns the current server client config.
type ConfigSource func() model.ClientConfig

// Notifier sends at most one typing ping per configured interval, process
// wide, and only for channels small enough to avoid notification storms.
type Notifier struct {
	sender Sender
	config ConfigSource
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

func NewNotifier(sender Sender, config ConfigSource, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// NotifyTyping sends a typing ping for the channel (or thread when
// parentID is set) if the feature is enabled, memberCount is below the
// server's ceiling and the throttle window has elapsed. It reports whether
// a ping was sent.
func (n *Notifier) NotifyTyping(channelID, parentID string, memberCount int) bool {
	cfg := n.config()
	if !cfg.Bool(model.ConfigEnableUserTyping) {
		return false
	}
	if memberCount >= cfg.Int(model.ConfigMaxNotificationsChannel, model.DefaultMaxNotificationsPerChn) {
		return false
	}

	interval := cfg.Millis(model.ConfigTypingUpdateInterval, model.DefaultTypingUpdateInterval)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.limiter == nil || interval != n.interval {
		n.limiter = rate.NewLimiter(rate.Every(interval), 1)
		n.interval = interval
	}
	if !n.limiter.AllowN(n.now(), 1) {
		return false
	}

	if err := n.sender.UserTyping(channelID, parentID); err != nil {
		// Give the token back so the next keystroke can retry.
		n.limiter = nil
		n.logger.Debug("typing notification not sent",
			zap.String("channelID", channelID),
			zap.Error(err),
		)
		return false
	}
	metrics.TypingSent.Inc()
	return true
}
