package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/chatsync/internal/metrics"
	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// sessionBundle is what the first fetch phase of a reconnect returns.
type sessionBundle struct {
	me          *model.User
	teams       []*model.Team
	teamMembers []*model.TeamMember
	unreads     []*model.TeamUnread
	preferences []model.Preference
	config      model.ClientConfig
	profiles    []*model.User
}

// teamData is what the team fetch phase returns.
type teamData struct {
	channels []*model.Channel
	members  []*model.ChannelMember
	threads  []*model.Thread
}

// OnReconnect runs the full resync after a severe drop. The connection is
// marked up at once. All fetched state is applied as one batch, and only
// when every fetch succeeded and no newer reconciliation has started.
func (r *Reconciler) OnReconnect(ctx context.Context, now time.Time) error {
	gen := r.session.begin()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration.WithLabelValues(strategyReconnect))

	snap := r.snapshot()
	r.store.Dispatch(store.ConnectionChanged{At: now.UnixMilli()})

	if snap.config.Bool(model.ConfigAppsEnabled) {
		r.async(func() { r.refreshAppBindings(ctx, gen, snap) })
	}

	batch, err := r.collect(ctx, snap)
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues(strategyReconnect, "error").Inc()
		r.logger.Warn("reconnect resync failed, cache left unchanged", zap.Error(err))
		return err
	}
	if !r.session.isCurrent(gen) {
		metrics.ReconciliationsTotal.WithLabelValues(strategyReconnect, "stale").Inc()
		r.logger.Info("reconnect superseded, dropping batch", zap.Int("actions", len(batch)))
		return ErrStale
	}

	r.store.Dispatch(batch...)
	metrics.ReconciliationsTotal.WithLabelValues(strategyReconnect, "ok").Inc()
	r.logger.Info("reconnected",
		zap.Int("actions", len(batch)),
		zap.Duration("took", timer.Duration()),
	)
	return nil
}

// collect runs the reconnect fetches and returns the batch to apply.
func (r *Reconciler) collect(ctx context.Context, snap snapshot) ([]store.Action, error) {
	bundle, err := r.fetchSessionBundle(ctx, snap)
	if err != nil {
		return nil, err
	}

	batch := []store.Action{
		store.CurrentUserReceived{User: bundle.me},
		store.TeamsReceived{Teams: bundle.teams},
		store.MyTeamMembersReceived{Members: bundle.teamMembers, Replace: true},
		store.TeamUnreadsReceived{Unreads: bundle.unreads},
		store.PreferencesReceived{Preferences: bundle.preferences},
	}
	if bundle.config != nil {
		batch = append(batch, store.ConfigReceived{Config: bundle.config})
	}

	cfg := snap.config
	if bundle.config != nil {
		cfg = bundle.config
	}

	roleNames := []string{bundle.me.Roles}
	for _, m := range bundle.teamMembers {
		if m != nil {
			roleNames = append(roleNames, m.Roles)
		}
	}

	switch {
	case snap.teamID == "":
	case !stillMember(bundle.teamMembers, snap.teamID):
		batch = append(batch, store.TeamLeft{UserID: bundle.me.ID, TeamID: snap.teamID})
	default:
		team, err := r.fetchTeam(ctx, bundle.me.ID, snap, cfg)
		if err != nil {
			return nil, err
		}
		batch = append(batch,
			store.ChannelsReceived{TeamID: snap.teamID, Channels: team.channels, Replace: true},
			store.MyChannelMembersReceived{TeamID: snap.teamID, Members: team.members, Replace: true},
		)
		if len(team.threads) > 0 {
			batch = append(batch, store.ThreadsReceived{Threads: team.threads})
		}
		for _, m := range team.members {
			if m != nil {
				roleNames = append(roleNames, m.Roles)
			}
		}

		if !channelValid(snap.channelID, team, cfg) {
			batch = append(batch, store.SelectDefaultChannel{TeamID: snap.teamID})
		} else if since := r.store.LastPostAt(snap.channelID); since > 0 {
			posts, err := r.client.GetPostsSince(ctx, snap.channelID, since)
			if err != nil {
				return nil, fmt.Errorf("posts since %d in %s: %w", since, snap.channelID, err)
			}
			batch = append(batch, store.PostsReceived{ChannelID: snap.channelID, List: posts})
		}
	}

	if names := store.SplitRoles(roleNames...); len(names) > 0 {
		roles, err := r.client.GetRolesByNames(ctx, names)
		if err != nil {
			return nil, fmt.Errorf("roles: %w", err)
		}
		batch = append(batch, store.RolesReceived{Roles: roles})
	}

	if len(bundle.profiles) > 0 {
		batch = append(batch, store.ProfilesReceived{Users: bundle.profiles})
	}
	return batch, nil
}

// fetchSessionBundle fetches the current user's session state, the client
// config and the profile delta in parallel.
func (r *Reconciler) fetchSessionBundle(ctx context.Context, snap snapshot) (*sessionBundle, error) {
	var b sessionBundle
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		me, err := r.client.GetMe(gctx)
		if err != nil {
			return fmt.Errorf("me: %w", err)
		}
		b.me = me
		return nil
	})
	g.Go(func() error {
		teams, err := r.client.GetMyTeams(gctx)
		if err != nil {
			return fmt.Errorf("teams: %w", err)
		}
		b.teams = teams
		return nil
	})
	g.Go(func() error {
		members, err := r.client.GetMyTeamMembers(gctx)
		if err != nil {
			return fmt.Errorf("team members: %w", err)
		}
		b.teamMembers = members
		return nil
	})
	g.Go(func() error {
		unreads, err := r.client.GetMyTeamUnreads(gctx)
		if err != nil {
			return fmt.Errorf("team unreads: %w", err)
		}
		b.unreads = unreads
		return nil
	})
	g.Go(func() error {
		prefs, err := r.client.GetMyPreferences(gctx)
		if err != nil {
			return fmt.Errorf("preferences: %w", err)
		}
		b.preferences = prefs
		return nil
	})
	g.Go(func() error {
		cfg, err := r.client.GetClientConfig(gctx)
		if err != nil {
			return fmt.Errorf("client config: %w", err)
		}
		b.config = cfg
		return nil
	})
	if snap.lastDisconnectAt > 0 {
		g.Go(func() error {
			users, err := r.profileDelta(gctx, snap)
			if err != nil {
				return fmt.Errorf("profiles since %d: %w", snap.lastDisconnectAt, err)
			}
			b.profiles = users
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if b.me == nil {
		return nil, fmt.Errorf("me: empty response")
	}
	return &b, nil
}

// fetchTeam fetches the open team's channels, memberships and, with
// collapsed threads on, the threads changed since the last disconnect.
func (r *Reconciler) fetchTeam(ctx context.Context, userID string, snap snapshot, cfg model.ClientConfig) (*teamData, error) {
	var t teamData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		channels, err := r.client.GetMyChannels(gctx, snap.teamID)
		if err != nil {
			return fmt.Errorf("channels of %s: %w", snap.teamID, err)
		}
		t.channels = channels
		return nil
	})
	g.Go(func() error {
		members, err := r.client.GetMyChannelMembers(gctx, snap.teamID)
		if err != nil {
			return fmt.Errorf("channel members of %s: %w", snap.teamID, err)
		}
		t.members = members
		return nil
	})
	if cfg.CollapsedThreadsEnabled() {
		g.Go(func() error {
			list, err := r.client.GetThreads(gctx, userID, snap.teamID, snap.lastDisconnectAt)
			if err != nil {
				return fmt.Errorf("threads of %s: %w", snap.teamID, err)
			}
			if list != nil {
				t.threads = list.Threads
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &t, nil
}

// refreshAppBindings reloads app bindings for the open channel. It runs
// outside the reconnect batch and is dropped when superseded.
func (r *Reconciler) refreshAppBindings(ctx context.Context, gen uint64, snap snapshot) {
	bindings, err := r.client.GetAppBindings(ctx, snap.userID, snap.channelID, snap.teamID)
	if err != nil {
		r.logger.Debug("app bindings refresh failed", zap.Error(err))
		return
	}
	if !r.session.isCurrent(gen) {
		return
	}
	r.store.Dispatch(store.AppBindingsReceived{Bindings: bindings})
}

func stillMember(members []*model.TeamMember, teamID string) bool {
	for _, m := range members {
		if m != nil && m.TeamID == teamID && m.DeleteAt == 0 {
			return true
		}
	}
	return false
}

// channelValid reports whether the open channel is still joined and either
// not deleted or visible as archived.
func channelValid(channelID string, team *teamData, cfg model.ClientConfig) bool {
	if channelID == "" {
		return false
	}
	joined := false
	for _, m := range team.members {
		if m != nil && m.ChannelID == channelID {
			joined = true
			break
		}
	}
	if !joined {
		return false
	}
	for _, ch := range team.channels {
		if ch != nil && ch.ID == channelID {
			return ch.DeleteAt == 0 || cfg.Bool(model.ConfigViewArchivedChannels)
		}
	}
	return false
}
