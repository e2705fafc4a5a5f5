// Command andelink-bot is a Discord music bot built on the andelink cluster
// manager. It connects to one or more backend audio servers, routes guild
// playback to the least loaded node and serves prefix text commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/andelink-audio/andelink/internal/bot"
	"github.com/andelink-audio/andelink/internal/config"
	"github.com/andelink-audio/andelink/internal/observe"
	"github.com/andelink-audio/andelink/pkg/andelink"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "andelink-bot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "andelink-bot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("andelink-bot starting",
		"config", *configPath,
		"log_level", cfg.LogLevel,
		"nodes", len(cfg.Cluster.Nodes),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "andelink-bot"})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Discord bot ───────────────────────────────────────────────────────────
	// The bot connects first: nodes need the bot's user id for their
	// authentication headers.
	discordBot, err := bot.New(bot.Config{
		Token:         cfg.Discord.Token,
		CommandPrefix: cfg.Discord.CommandPrefix,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}

	// ── Cluster ───────────────────────────────────────────────────────────────
	cluster := andelink.NewCluster(discordBot,
		andelink.WithObserver(observe.NewClusterObserver(observe.DefaultMetrics())),
		andelink.WithReconnectPolicy(andelink.ReconnectPolicy{
			MaxAttempts: cfg.Cluster.ReconnectAttempts,
			Backoff:     time.Duration(cfg.Cluster.ReconnectBackoff),
		}),
	)
	for _, entry := range cfg.Cluster.Nodes {
		node := cluster.AddNode(andelink.NodeConfig{
			Host:     entry.Host,
			Port:     entry.Port,
			Secure:   entry.SSL,
			Password: entry.Password,
			Shards:   entry.Shards,
			UserID:   discordBot.UserID(),
		})
		slog.Info("audio node added", "node_id", node.ID(), "host", entry.Host, "port", entry.Port)
	}
	discordBot.AttachCluster(cluster)

	// ── Serve ─────────────────────────────────────────────────────────────────
	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}

		group.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	slog.Info("bot ready — press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	cluster.Close()
	if err := discordBot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
