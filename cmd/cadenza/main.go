// Command cadenza is a Discord music bot front-end for Lavalink- and
// Andesite-compatible playback nodes.
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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/cadenza-audio/cadenza/internal/config"
	discordbot "github.com/cadenza-audio/cadenza/internal/discord"
	"github.com/cadenza-audio/cadenza/internal/health"
	"github.com/cadenza-audio/cadenza/internal/observe"
	"github.com/cadenza-audio/cadenza/pkg/cadenza"
)

const version = "0.1.0"

// pingInterval is how often connected nodes that support ping are measured.
const pingInterval = 60 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cadenza: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("cadenza starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"nodes", len(cfg.Nodes),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "cadenza",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(cfg.Discord.Token)
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	if err := bot.Open(); err != nil {
		slog.Error("failed to connect to Discord", "err", err)
		return 1
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}()

	// ── Playback client and nodes ─────────────────────────────────────────────
	client := cadenza.New(bot,
		cadenza.WithLogger(logger),
		cadenza.WithClientName("cadenza/"+version),
	)
	bot.BindClient(client)
	defer client.Close()

	client.AddHandler(metrics.HandleEvent)
	client.AddHandler(logPlaybackEvent)

	playerGauge, err := observe.RegisterPlayerGauge(otel.GetMeterProvider(), func() int64 {
		return int64(len(client.Players()))
	})
	if err != nil {
		slog.Warn("failed to register player gauge", "err", err)
	} else {
		defer playerGauge.Unregister() //nolint:errcheck
	}

	reconnectors := connectNodes(ctx, client, cfg.Nodes)
	defer func() {
		for _, r := range reconnectors {
			r.Stop()
		}
	}()

	if len(client.Nodes()) == 0 {
		slog.Error("no node could be connected")
		return 1
	}

	// ── Admin HTTP server (health + metrics) ──────────────────────────────────
	mux := http.NewServeMux()
	health.New(health.NodesChecker(client)).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("admin server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		pollNodePings(gctx, client, metrics)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	slog.Info("cadenza ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// connectNodes connects every configured node. Nodes with reconnect enabled
// are wrapped in a [cadenza.Reconnector]; for the rest a failed initial
// connection is logged and skipped so one bad node does not stop startup.
func connectNodes(ctx context.Context, client *cadenza.Client, nodes []config.NodeConfig) []*cadenza.Reconnector {
	var reconnectors []*cadenza.Reconnector

	for _, nc := range nodes {
		cfg := cadenza.NodeConfig{
			Identifier:   nc.Identifier,
			Host:         nc.Host,
			Port:         nc.Port,
			Password:     nc.Password,
			Secure:       nc.Secure,
			Capabilities: capabilitiesFor(nc.Variant),
		}

		if nc.Reconnect {
			r := cadenza.NewReconnector(cadenza.ReconnectorConfig{
				Client: client,
				Node:   cfg,
			})
			if _, err := r.Connect(ctx); err != nil {
				slog.Error("node connection failed", "node", nc.Identifier, "err", err)
				continue
			}
			r.Monitor(ctx)
			reconnectors = append(reconnectors, r)
			continue
		}

		if _, err := client.CreateNode(ctx, cfg); err != nil {
			slog.Error("node connection failed", "node", nc.Identifier, "err", err)
		}
	}

	return reconnectors
}

// capabilitiesFor maps a config variant to a capability set.
func capabilitiesFor(v config.Variant) cadenza.Capabilities {
	switch v {
	case config.VariantAndesite:
		return cadenza.Andesite()
	case config.VariantAndesiteCompat:
		return cadenza.AndesiteCompat()
	default:
		return cadenza.Lavalink()
	}
}

// pollNodePings periodically measures round-trip latency for every connected
// node whose variant supports ping.
func pollNodePings(ctx context.Context, client *cadenza.Client, metrics *observe.Metrics) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, node := range client.Nodes() {
			if !node.Capabilities().Ping || !node.IsConnected() {
				continue
			}
			rtt, err := node.Ping(ctx)
			if err != nil {
				slog.Warn("node ping failed", "node", node.Identifier(), "err", err)
				continue
			}
			metrics.RecordNodePing(ctx, node.Identifier(), rtt)
		}
	}
}

// logPlaybackEvent mirrors the playback event stream into the log.
func logPlaybackEvent(event cadenza.Event) {
	switch event := event.(type) {
	case cadenza.TrackStart:
		slog.Info("track started", "guild", event.Player.GuildID(), "track", event.TrackID)
	case cadenza.TrackEnd:
		slog.Info("track ended", "guild", event.Player.GuildID(), "reason", event.Reason)
	case cadenza.TrackSkipped:
		slog.Warn("track skipped", "guild", event.Player.GuildID(), "title", event.Track.Info.Title, "reason", event.Reason)
	case cadenza.TrackException:
		slog.Warn("track exception", "guild", event.Player.GuildID(), "severity", event.Severity, "message", event.Message)
	case cadenza.TrackStuck:
		slog.Warn("track stuck", "guild", event.Player.GuildID(), "threshold", event.Threshold)
	case cadenza.WebSocketClosed:
		slog.Warn("voice websocket closed", "guild", event.Player.GuildID(), "code", event.Code, "by_remote", event.ByRemote)
	case cadenza.NodeDisconnected:
		slog.Warn("node disconnected", "node", event.Node.Identifier(), "err", event.Err)
	}
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
