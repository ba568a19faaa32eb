package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/activitylog/internal/app"
	"github.com/atvirokodosprendimai/activitylog/internal/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "activitylog",
		Usage: "CPQ activity log batching and consolidation service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Sources: cli.EnvVars("CONFIG_PATH"),
				Usage:   "YAML config file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "HTTP listen address (overrides server.addr)",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "SQLite file path (overrides sqlite.path)",
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, outbox dispatcher and marker sweeper",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, logger, err := load(c)
					if err != nil {
						return err
					}
					if err := app.Migrate(ctx, cfg, logger); err != nil {
						return err
					}
					logger.Info("migrations applied")
					return nil
				},
			},
			{
				Name:  "sweep",
				Usage: "Remove stale bulk operation markers once and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, logger, err := load(c)
					if err != nil {
						return err
					}
					n, err := app.Sweep(ctx, cfg, logger)
					if err != nil {
						return err
					}
					logger.Info("sweep finished", "removed", n)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("activitylog failed", "error", err)
		os.Exit(1)
	}
}

func load(c *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if path := c.String("db-path"); path != "" {
		cfg.SQLite.Path = path
	}
	return cfg, app.NewLogger(cfg.Log, os.Stderr), nil
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, logger, err := load(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("close resources", "error", closeErr)
		}
	}()

	return a.Run(ctx)
}
