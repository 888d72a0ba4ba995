package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/store"
)

const alertQueueSize = 8

type alert struct {
	lost      bool
	failCount int
	since     time.Time
	downtime  time.Duration
}

// Alerter watches connection actions applied to the cache. It sends one
// alert once an outage reaches the configured number of failed attempts,
// and one recovery notice when the stream connects again.
type Alerter struct {
	notifier  Notifier
	server    string
	threshold int
	logger    *zap.Logger

	mu        sync.Mutex
	alerted   bool
	downSince int64

	alerts chan alert
}

func NewAlerter(n Notifier, cfg *Config, server string, logger *zap.Logger) *Alerter {
	return &Alerter{
		notifier:  n,
		server:    server,
		threshold: cfg.AlertAfterFailures,
		logger:    logger,
		alerts:    make(chan alert, alertQueueSize),
	}
}

// Observe is a store.Subscriber.
func (a *Alerter) Observe(batch []store.Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, act := range batch {
		switch act := act.(type) {
		case store.ConnectionClosed:
			if a.downSince == 0 {
				a.downSince = act.At
			}
			if !a.alerted && a.threshold > 0 && act.FailCount >= a.threshold {
				a.alerted = true
				a.enqueue(alert{lost: true, failCount: act.FailCount, since: time.UnixMilli(a.downSince)})
			}
		case store.ConnectionChanged:
			if a.alerted {
				a.enqueue(alert{downtime: time.Duration(act.At-a.downSince) * time.Millisecond})
			}
			a.alerted = false
			a.downSince = 0
		}
	}
}

func (a *Alerter) enqueue(al alert) {
	select {
	case a.alerts <- al:
	default:
		a.logger.Warn("alert queue full, dropping alert", zap.Bool("lost", al.lost))
	}
}

// Run sends queued alerts until ctx is done.
func (a *Alerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case al := <-a.alerts:
			var err error
			if al.lost {
				err = a.notifier.SendConnectionLost(ctx, a.server, al.failCount, al.since)
			} else {
				err = a.notifier.SendConnectionRestored(ctx, a.server, al.downtime)
			}
			if err != nil {
				a.logger.Warn("connection alert not sent", zap.Error(err))
			}
		}
	}
}
