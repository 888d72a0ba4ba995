package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/chatsync/internal/api"
	"github.com/dgnsrekt/chatsync/internal/events"
	"github.com/dgnsrekt/chatsync/internal/metrics"
	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/notify"
	"github.com/dgnsrekt/chatsync/internal/status"
	"github.com/dgnsrekt/chatsync/internal/store"
	"github.com/dgnsrekt/chatsync/internal/stream"
	"github.com/dgnsrekt/chatsync/internal/sync"
	"github.com/dgnsrekt/chatsync/internal/typing"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the server and keep the local cache in sync",
		Long: `Connect to the event stream, reconcile the local cache on every
(re)connect, and apply live events until interrupted.

Examples:
  # Run with ./configs/chatsync.yaml
  chatsync run

  # Run with an explicit config and debug logging
  chatsync run -c /etc/chatsync.yaml -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	wsURL, err := cfg.Server.WebSocketURL()
	if err != nil {
		return err
	}

	client := api.NewClient(
		cfg.Server.URL,
		cfg.Server.Token,
		cfg.Server.RatePerSecond,
		cfg.Server.Timeout(),
		cfg.Server.RetryDelayDuration(),
		cfg.Server.RetryCount,
		logger,
	)

	initial, err := store.LoadSnapshot(cfg.Cache.SnapshotPath)
	if err != nil {
		logger.Warn("snapshot unreadable, starting empty",
			zap.String("path", cfg.Cache.SnapshotPath),
			zap.Error(err),
		)
	}
	st := store.New(initial, logger)
	counts := st.Counts()
	logger.Info("cache loaded",
		zap.String("path", cfg.Cache.SnapshotPath),
		zap.Int("users", counts.Users),
		zap.Int("channels", counts.Channels),
		zap.Int("posts", counts.Posts),
	)

	streamClient := stream.NewClient(logger)

	st.Subscribe(func(batch []store.Action) {
		metrics.BatchesApplied.Inc()
		metrics.SetConnected(st.Connection().Connected)
		for _, a := range batch {
			if c, ok := a.(store.ConfigReceived); ok {
				streamClient.SetReliableWebSockets(c.Config.Bool(model.ConfigReliableWebSockets))
			}
		}
	})

	notifyCfg := &notify.Config{
		Enabled:            cfg.Notify.Enabled,
		Server:             cfg.Notify.Server,
		Topic:              cfg.Notify.Topic,
		Priority:           cfg.Notify.Priority,
		Tags:               cfg.Notify.Tags,
		Token:              cfg.Notify.Token,
		AlertAfterFailures: cfg.Notify.AlertAfterFailures,
	}
	alerter := notify.NewAlerter(notify.New(notifyCfg, logger), notifyCfg, cfg.Server.URL, logger)
	st.Subscribe(alerter.Observe)

	session := sync.NewSession()
	reconciler := sync.NewReconciler(client, st, session, logger)
	dispatcher := events.NewDispatcher(client, st, logger)
	reconciler.Register(ctx, streamClient, dispatcher)

	// Reliable websockets must be known before the first dial.
	if clientCfg, err := client.GetClientConfig(ctx); err != nil {
		logger.Warn("client config not loaded", zap.Error(err))
	} else {
		st.Dispatch(store.ConfigReceived{Config: clientCfg})
	}

	typingNotifier := typing.NewNotifier(streamClient, st.Config, logger)

	g, gctx := errgroup.WithContext(ctx)

	// restart forces the full reconnect resync on the next hello.
	restart := func() error {
		logger.Info("restarting event stream")
		return session.Restart(gctx, streamClient)
	}

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := restart(); err != nil {
					logger.Warn("restart after SIGHUP failed", zap.Error(err))
				}
			}
		}
	})

	g.Go(func() error {
		alerter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		snapshotLoop(gctx, st)
		return nil
	})

	if cfg.Status.Enabled {
		srv := status.NewServer(st, typingNotifier, streamClient.Connected, restart, logger)
		httpServer := &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      status.NewRouter(srv, logger),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting status server", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown error", zap.Error(err))
			}
			return nil
		})
	}

	logger.Info("connecting", zap.String("url", wsURL))
	if err := streamClient.Initialize(gctx, cfg.Server.Token, stream.Options{
		ConnectionURL:      wsURL,
		PingInterval:       cfg.Stream.PingInterval(),
		MinReconnectDelay:  cfg.Stream.MinReconnectDelay(),
		MaxReconnectDelay:  cfg.Stream.MaxReconnectDelay(),
		ReliableWebSockets: st.Config().Bool(model.ConfigReliableWebSockets),
	}); err != nil {
		logger.Warn("first connect failed, retrying in background", zap.Error(err))
	}

	<-gctx.Done()
	logger.Info("shutting down...")

	session.Close(streamClient, false)
	err = g.Wait()

	if saveErr := st.SaveSnapshot(cfg.Cache.SnapshotPath); saveErr != nil {
		logger.Error("final snapshot failed", zap.Error(saveErr))
	}

	logger.Info("stopped")
	return err
}

func snapshotLoop(ctx context.Context, st *store.Store) {
	interval := cfg.Cache.SnapshotInterval()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.SaveSnapshot(cfg.Cache.SnapshotPath); err != nil {
				logger.Warn("snapshot failed", zap.Error(err))
				continue
			}
			logger.Debug("snapshot saved", zap.String("path", cfg.Cache.SnapshotPath))
		}
	}
}
