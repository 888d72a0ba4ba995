// Package sync keeps the local cache in step with the server across event
// stream connects, drops and resumes.
package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/api"
	"github.com/dgnsrekt/chatsync/internal/metrics"
	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// ErrStale is returned when a newer reconciliation started while this one
// was fetching. Its batch is discarded.
var ErrStale = errors.New("reconciliation superseded")

// maxRetriesBeforeFailed is the stream fail count after which the
// connection is reported as failed.
const maxRetriesBeforeFailed = 7

// Strategy labels used in metrics and logs.
const (
	strategyFirstConnect = "first_connect"
	strategyMissedEvents = "missed_events"
	strategyReconnect    = "reconnect"
)

// Reconciler resyncs the cache on each stream lifecycle signal.
type Reconciler struct {
	client  api.Client
	store   *store.Store
	session *Session
	logger  *zap.Logger

	now   func() time.Time
	async func(fn func())
}

func NewReconciler(client api.Client, st *store.Store, session *Session, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		client:  client,
		store:   st,
		session: session,
		logger:  logger,
		now:     time.Now,
		async:   func(fn func()) { go fn() },
	}
}

// snapshot is the cache state a reconciliation starts from.
type snapshot struct {
	userID           string
	teamID           string
	channelID        string
	knownUserIDs     []string
	lastDisconnectAt int64
	config           model.ClientConfig
}

func (r *Reconciler) snapshot() snapshot {
	snap := snapshot{knownUserIDs: r.store.KnownUserIDs(), config: r.store.Config()}
	r.store.View(func(st *store.State) {
		snap.userID = st.CurrentUserID
		snap.teamID = st.CurrentTeamID
		snap.channelID = st.CurrentChannelID
		snap.lastDisconnectAt = st.Connection.LastDisconnectAt
	})
	return snap
}

// HandleFirstConnect consumes the session's pending mode. A pending
// reconnect on a server without reliable websockets runs the full
// reconnect, everything else the first-connect resync.
func (r *Reconciler) HandleFirstConnect(ctx context.Context) {
	mode := r.session.takePending()
	if mode == ModeReconnect && !r.store.Config().Bool(model.ConfigReliableWebSockets) {
		if err := r.OnReconnect(ctx, r.now()); err != nil {
			r.logger.Warn("reconnect after close failed", zap.Error(err))
		}
		return
	}
	_ = r.OnFirstConnect(ctx, r.now())
}

// OnFirstConnect marks the connection up and, after an earlier drop,
// refreshes every known profile changed since then. Everything lands in
// one batch. Fetch failures are logged and never returned.
func (r *Reconciler) OnFirstConnect(ctx context.Context, now time.Time) error {
	gen := r.session.begin()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration.WithLabelValues(strategyFirstConnect))

	snap := r.snapshot()
	batch := []store.Action{store.ConnectionChanged{At: now.UnixMilli()}}

	if snap.lastDisconnectAt > 0 {
		users, err := r.profileDelta(ctx, snap)
		if err != nil {
			r.logger.Warn("profile refresh failed",
				zap.Int64("since", snap.lastDisconnectAt),
				zap.Error(err),
			)
		} else if len(users) > 0 {
			batch = append(batch, store.ProfilesReceived{Users: users})
		}
	}

	if !r.session.isCurrent(gen) {
		r.logger.Debug("first connect superseded, dropping batch")
		metrics.ReconciliationsTotal.WithLabelValues(strategyFirstConnect, "stale").Inc()
		return nil
	}
	r.store.Dispatch(batch...)
	metrics.ReconciliationsTotal.WithLabelValues(strategyFirstConnect, "ok").Inc()
	r.logger.Info("connected",
		zap.Int("actions", len(batch)),
		zap.Duration("took", timer.Duration()),
	)
	return nil
}

// OnMissedEvents marks the connection up. The server replays what was
// missed, so nothing is fetched. It leaves the generation alone: a resume
// does not cover the gap an in-flight reconnect is fetching.
func (r *Reconciler) OnMissedEvents(now time.Time) {
	r.store.Dispatch(store.ConnectionChanged{At: now.UnixMilli()})
	metrics.ReconciliationsTotal.WithLabelValues(strategyMissedEvents, "ok").Inc()
	r.logger.Info("resumed connection")
}

// OnClose records a drop reported by the stream.
func (r *Reconciler) OnClose(failCount int) {
	r.store.Dispatch(store.ConnectionClosed{
		At:          r.now().UnixMilli(),
		FailCount:   failCount,
		RetryFailed: failCount > maxRetriesBeforeFailed,
	})
	r.logger.Info("connection closed", zap.Int("failCount", failCount))
}

// profileDelta fetches profiles of every known user but the current one
// changed since the last disconnect.
func (r *Reconciler) profileDelta(ctx context.Context, snap snapshot) ([]*model.User, error) {
	ids := make([]string, 0, len(snap.knownUserIDs))
	for _, id := range snap.knownUserIDs {
		if id != snap.userID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := r.client.GetProfilesByIDs(ctx, ids, snap.lastDisconnectAt)
	if err != nil {
		return nil, err
	}
	out := users[:0:0]
	for _, u := range users {
		if u != nil && u.ID != snap.userID {
			out = append(out, u)
		}
	}
	return out, nil
}
