// tablewatch keeps a resilient bus connection to the game server and
// streams one room's broadcasts to stdout as JSON lines.
// Usage: go run ./cmd/tablewatch --config configs/tablewatch.example.yaml
//
// Credentials come from the config (auth.token, or auth.phone and
// auth.password) and are typically injected through environment variables:
//
//	DOUNIU_PHONE    - Account phone number
//	DOUNIU_PASSWORD - Account password
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/douniu-client/internal/api"
	"github.com/rickgao/douniu-client/internal/auth"
	"github.com/rickgao/douniu-client/internal/config"
	"github.com/rickgao/douniu-client/internal/connection"
	"github.com/rickgao/douniu-client/internal/metrics"
	"github.com/rickgao/douniu-client/internal/poller"
	"github.com/rickgao/douniu-client/internal/table"
	"github.com/rickgao/douniu-client/internal/transport"
	"github.com/rickgao/douniu-client/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tablewatch.example.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("tablewatch failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	logger.Info("starting tablewatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"server", cfg.Server.URL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	provider, shutdownMetrics, err := metrics.NewMeterProvider(ctx, metrics.ExportConfig{
		ServiceName:    version.Product,
		ServiceVersion: version.Version,
		Endpoint:       cfg.Metrics.OTLPEndpoint,
		Insecure:       cfg.Metrics.Insecure,
		Interval:       cfg.Metrics.Interval,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}()

	recorder, err := metrics.NewRecorder(provider.Meter("github.com/rickgao/douniu-client"))
	if err != nil {
		return err
	}

	// Session
	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)
	store := auth.NewFileStore(cfg.Auth.TokenFile)

	session, err := openSession(ctx, cfg.Auth, store, apiClient, logger)
	if err != nil {
		return err
	}

	watchCfg, err := resolveRoom(ctx, cfg.Room, session, apiClient, logger)
	if err != nil {
		return err
	}

	// Connection
	manager := connection.NewManager(
		connectionConfig(cfg),
		transport.NewWebSocketFactory(transportConfig(cfg), logger),
		logger,
		connection.WithHooks(recorder.Hooks()),
	)
	watcher := table.NewWatcher(manager, watchCfg, os.Stdout, logger)

	fatal := make(chan error, 1)
	report := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	guard := auth.NewGuard(cfg.Auth.MaxErrors, store, func(err error) {
		report(fmt.Errorf("session ended after repeated errors: %w", err))
	}, logger)

	onConnect := func(h *connection.Handle) {
		guard.Reset()
		watcher.OnConnect(h)
	}
	onError := func(err error) {
		guard.OnError(err)
		if errors.Is(err, connection.ErrReconnectExhausted) {
			report(err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		manager.Connect(session.Token, onConnect, onError)

		var err error
		select {
		case <-gctx.Done():
			logger.Info("shutting down...")
		case err = <-fatal:
		}

		if watcher.Leave() {
			logger.Info("left room", "room_code", watchCfg.RoomCode)
		}
		manager.Disconnect()
		return err
	})

	if watchCfg.RoomID > 0 {
		snapshots := poller.New(poller.Config{
			RoomCode: watchCfg.RoomCode,
			RoomID:   watchCfg.RoomID,
			Token:    session.Token,
			Interval: cfg.Room.PollInterval,
			Timeout:  cfg.API.Timeout,
		}, apiClient, watcher, func() bool {
			return manager.State() != connection.StateConnected
		}, logger)

		g.Go(func() error {
			if err := snapshots.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return snapshots.Stop(stopCtx)
		})
	}

	if !cfg.Health.Disabled {
		healthServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           newHealthHandler(manager, watcher),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return healthServer.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	watcher.Close()
	stats := watcher.Stats()
	logger.Info("tablewatch stopped",
		"connects", stats.Connects,
		"messages", stats.Messages,
	)
	return err
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func connectionConfig(cfg *config.ClientConfig) connection.Config {
	c := connection.DefaultConfig()
	c.URL = cfg.Server.URL
	c.Reconnect.InitialDelay = cfg.Reconnect.InitialDelay
	c.Reconnect.MaxDelay = cfg.Reconnect.MaxDelay
	c.Reconnect.MaxAttempts = cfg.Reconnect.MaxAttempts
	c.HeartbeatInterval = cfg.Heartbeat.Interval
	c.HeartbeatTopic = cfg.Heartbeat.Topic
	c.AuthTopic = cfg.Heartbeat.AuthTopic
	return c
}

func transportConfig(cfg *config.ClientConfig) transport.WebSocketConfig {
	c := transport.DefaultWebSocketConfig()
	c.SockJS = cfg.Server.UseSockJS()
	c.PingInterval = cfg.Transport.PingInterval
	c.PongTimeout = cfg.Transport.PongTimeout
	c.WriteTimeout = cfg.Transport.WriteTimeout
	c.HandshakeTimeout = cfg.Transport.HandshakeTimeout

	c.Header = http.Header{}
	c.Header.Set("User-Agent", version.UserAgent())
	if cfg.Server.Origin != "" {
		c.Header.Set("Origin", cfg.Server.Origin)
	}
	return c
}
