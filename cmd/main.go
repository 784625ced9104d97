package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"calstore/internal/config"
	"calstore/internal/google"
	"calstore/internal/localcache"
	"calstore/internal/metrics"
	"calstore/internal/remote"
	"calstore/internal/server"
	"calstore/internal/store"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "calstore",
		Usage: "Manage calendar events against a remote service, falling back to a local cache.",
		Commands: []*cli.Command{
			serveCommand(),
			eventsCommand(),
			exportCommand(),
			importCommand(),
			connectCommand(),
			disconnectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the mock remote event service.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address. Overrides CALSTORE_ADDR."},
			&cli.BoolFlag{Name: "disconnected", Usage: "Start with the calendar disconnected."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.Context)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			addr := cfg.Addr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithMetrics(newMetrics(cfg)),
				server.WithConnected(cfg.StartConnected && !c.Bool("disconnected")),
			}
			oauth, err := google.NewOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
			switch {
			case err == nil:
				opts = append(opts, server.WithOAuth(oauth))
			case errors.Is(err, google.ErrNotConfigured):
				logger.Warn("Google OAuth is not configured, the authorization URL route will fail.")
			default:
				return fmt.Errorf("failed to configure google oauth: %w", err)
			}
			if cfg.RateLimitRPS > 0 {
				opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
			}

			repo := server.NewRepository()
			if cfg.SeedFixtures {
				e := repo.Seed(time.Now())
				logger.Info("Seeded demo event.", "id", e.ID, "title", e.Title)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(repo, opts...).ListenAndServe(ctx, addr)
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Print the URL that connects the remote calendar account.",
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, st *store.Store, _ *slog.Logger) error {
				u, err := st.ConnectURL(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Open the following link in your browser to connect:\n%s\n", u)
				return nil
			})
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Disconnect the remote calendar and continue from the local cache.",
		Action: func(c *cli.Context) error {
			return withStore(c, func(ctx context.Context, st *store.Store, logger *slog.Logger) error {
				if err := st.Disconnect(ctx); err != nil {
					return err
				}
				logger.Info("Disconnected.", "mode", st.Mode(), "events", len(st.Events()))
				return nil
			})
		},
	}
}

// withStore loads config, builds and initializes a store, runs fn and
// disposes the store.
func withStore(c *cli.Context, fn func(ctx context.Context, st *store.Store, logger *slog.Logger) error) error {
	cfg, err := config.Load(c.Context)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.LogLevel)

	st, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Dispose()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, st, logger)
}

func buildStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	client, err := remote.NewClient(cfg.RemoteURL,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}

	cache := localcache.NewFileCache(cfg.CacheDir)
	logger.Debug("Using local cache.", "dir", cache.Dir())

	return store.New(
		store.NewRemoteBackend(client),
		store.NewLocalBackend(cache),
		store.WithLogger(logger),
		store.WithMetrics(newMetrics(cfg)),
	), nil
}

func newMetrics(cfg *config.Config) *metrics.Manager {
	return metrics.NewManager(metrics.WithHistogramBuckets(cfg.HistogramBuckets))
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
