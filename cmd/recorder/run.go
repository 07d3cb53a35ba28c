package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/archive"
	"github.com/dgnsrekt/pucks-replay/internal/config"
	"github.com/dgnsrekt/pucks-replay/internal/ingest"
	"github.com/dgnsrekt/pucks-replay/internal/live"
	"github.com/dgnsrekt/pucks-replay/internal/notify"
	"github.com/dgnsrekt/pucks-replay/internal/registry"
	"github.com/dgnsrekt/pucks-replay/internal/rtdb"
	"github.com/dgnsrekt/pucks-replay/internal/server"
	"github.com/dgnsrekt/pucks-replay/internal/session"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
	"github.com/dgnsrekt/pucks-replay/internal/spool"
	"github.com/dgnsrekt/pucks-replay/internal/upstream"
)

const (
	shutdownTimeout = 15 * time.Second
)

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the game server and record matches",
		Long: `Connect to the game server, decode position updates, publish live
snapshots and finalize replays at every goal or reset.

Examples:
  # Run with ./configs/default.yaml (if present) and environment overrides
  recorder run

  # Run against a local server with verbose logs
  PUCKS_UPSTREAM_URL=ws://localhost:9000/ws recorder run -v`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{keepLogFile: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecorder(cmd.Context(), a.cfg, a.logger)
		},
	}
}

// sinks are the enabled output targets, in delivery order. Viewer targets
// live in this process and get their own dispatcher so remote writes cannot
// slow the live feed.
type sinks struct {
	viewers []sink.Sink
	remote  []sink.Sink
	names   []string
	archive *archive.Store
	hub     *live.Hub
	stream  *live.Stream
}

func (s *sinks) addViewer(name string, t sink.Sink) {
	s.names = append(s.names, name)
	s.viewers = append(s.viewers, t)
}

func (s *sinks) add(name string, t sink.Sink) {
	s.names = append(s.names, name)
	s.remote = append(s.remote, t)
}

// publisher builds one dispatcher per non-empty target list.
func (s *sinks) publisher(cfg config.SinkConfig, logger *zap.Logger) *sink.Group {
	dispatchCfg := sink.Config{
		LiveQueue:     cfg.LiveQueue,
		ReplayQueue:   cfg.ReplayQueue,
		ReplayWorkers: cfg.ReplayWorkers,
		Timeout:       cfg.Timeout,
	}
	var dispatchers []*sink.Dispatcher
	if len(s.viewers) > 0 {
		dispatchers = append(dispatchers,
			sink.NewDispatcher(sink.Multi(s.viewers), dispatchCfg, logger.Named("viewers")))
	}
	if len(s.remote) > 0 {
		dispatchers = append(dispatchers,
			sink.NewDispatcher(sink.Multi(s.remote), dispatchCfg, logger.Named("remote")))
	}
	return sink.NewGroup(dispatchers...)
}

func (s *sinks) Close() {
	if s.archive != nil {
		_ = s.archive.Close()
	}
}

func buildSinks(cfg *config.Config, logger *zap.Logger) (*sinks, error) {
	out := &sinks{}

	if cfg.Server.LiveEnabled {
		hub, err := live.NewHub(logger.Named("live"))
		if err != nil {
			return nil, fmt.Errorf("creating live hub: %w", err)
		}
		out.hub = hub
		out.addViewer("live", hub)

		out.stream = live.NewStream(logger.Named("sse"))
		out.addViewer("sse", out.stream)
	}

	if cfg.RTDB.Enabled() {
		client := rtdb.NewClient(
			cfg.RTDB.URL,
			cfg.RTDB.AuthToken,
			cfg.RTDB.RatePerSecond,
			cfg.RTDB.Timeout,
			cfg.RTDB.RetryDelay,
			cfg.RTDB.RetryCount,
			logger.Named("rtdb"),
		)
		switch {
		case cfg.RTDB.UsesServiceAccount():
			// Tokens are refreshed for the life of the process.
			ts, err := rtdb.ServiceAccountTokenSource(context.Background(), []byte(cfg.RTDB.ServiceAccount))
			if err != nil {
				return nil, fmt.Errorf("loading service account: %w", err)
			}
			client.WithTokenSource(ts)
		case cfg.RTDB.AuthToken == "":
			logger.Warn("rtdb writes are unauthenticated; set FIREBASE_CONFIG or FIREBASE_AUTH_TOKEN",
				zap.String("url", cfg.RTDB.URL))
		}
		out.add("rtdb", rtdb.NewSink(client))
	}

	if cfg.Archive.Enabled {
		compression, err := archive.ParseCompression(cfg.Archive.Compression)
		if err != nil {
			return nil, err
		}
		store, err := archive.Open(cfg.Archive.Path, compression, logger.Named("archive"))
		if err != nil {
			return nil, fmt.Errorf("opening replay archive: %w", err)
		}
		out.archive = store
		out.add("archive", store)
	}

	if cfg.Spool.Enabled {
		sp := spool.New(cfg.Spool.Directory, logger.Named("spool"))
		if err := sp.CleanupTemp(); err != nil {
			logger.Warn("failed to clean spool directory", zap.Error(err))
		}
		out.add("spool", sp)
	}

	// Notifications go last so they follow the archive write.
	if cfg.Notify.Enabled {
		out.add("notify", notify.NewSink(notify.New(&cfg.Notify, logger.Named("notify"))))
	}

	return out, nil
}

func runRecorder(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	entities, err := registry.FromEntries(cfg.Roster)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	outputs, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer outputs.Close()

	logger.Info("configuration loaded",
		zap.String("upstream", cfg.Upstream.URL),
		zap.Int("replayThreshold", cfg.Session.ReplayThreshold),
		zap.Strings("sinks", outputs.names),
		zap.Int("roster", entities.Len()),
		zap.String("port", cfg.Server.Port),
	)

	// The dispatcher and hub outlive ctx so queued replays drain after the
	// upstream connection stops.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if outputs.hub != nil {
		go outputs.hub.Run(bgCtx)
	}

	dispatcher := outputs.publisher(cfg.Sink, logger.Named("sink"))
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go dispatcher.Run(dispatchCtx)

	lifecycle := session.NewLifecycle(dispatcher, session.Options{
		Threshold: cfg.Session.ReplayThreshold,
	}, logger.Named("session"))
	processor := ingest.NewProcessor(lifecycle, entities, logger.Named("ingest"))
	client := upstream.NewClient(cfg.Upstream, logger.Named("upstream"))

	deps := server.Deps{
		Ingest:   processor,
		Sink:     dispatcher,
		Upstream: client,
	}
	if outputs.archive != nil {
		deps.Replays = outputs.archive
	}
	if outputs.hub != nil {
		deps.Live = outputs.hub
	}
	if outputs.stream != nil {
		deps.Events = outputs.stream
	}
	srv := server.NewServer(deps, logger.Named("http"))

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.NewRouter(srv, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if outputs.stream != nil {
		httpServer.RegisterOnShutdown(outputs.stream.Close)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	upstreamCtx, stopUpstream := context.WithCancel(ctx)
	defer stopUpstream()
	upstreamDone := make(chan error, 1)
	go func() {
		upstreamDone <- client.Run(upstreamCtx, processor)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
		runErr = fmt.Errorf("http server: %w", err)
	}

	stopUpstream()
	<-upstreamDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}

	stopDispatch()
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
		logger.Warn("sink queues did not drain before shutdown timeout")
	}
	stopBackground()

	stats := processor.Stats()
	logger.Info("recorder stopped",
		zap.Uint64("messages", stats.Messages),
		zap.Uint64("replays", stats.ReplaysEmitted),
		zap.Uint64("decodeErrors", stats.DecodeErrors()),
	)
	return runErr
}
