package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ex30link/internal/app"
	"github.com/florianilch/ex30link/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "ex30link",
		Usage: "Volvo EX30 connected vehicle bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "vehicle--vin",
				Usage: "VIN of the vehicle",
			},
			&cli.StringFlag{
				Name:  "storage--type",
				Usage: "refresh token storage (file|keyring)",
				Value: string(app.DefaultConfigStorageType),
			},
			&cli.StringFlag{
				Name:  "storage--dir",
				Usage: "directory for file storage",
			},
		},
		Commands: []*cli.Command{
			startCommand(),
			loginCommand(),
			tokenCommand(),
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "serve the config UI and poll the vehicle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "config UI host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "config UI port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.DurationFlag{
				Name:  "polling--interval",
				Usage: "vehicle polling interval",
				Value: app.DefaultConfigPollingInterval,
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "OpenTelemetry log exporter (otlp-grpc|otlp-http|stdout)",
			},
		},
		Action: startAction,
	}
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// setup loads the configuration, installs logging and creates the App.
// The returned func flushes telemetry.
func setup(ctx context.Context, cmd *cli.Command) (*app.App, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdownTelemetry, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat),
		observability.WithExporter(cfg.Telemetry.Exporter),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}
	shutdown := func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("flushing telemetry failed", "error", err)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, shutdown, nil
}
