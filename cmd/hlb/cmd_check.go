package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"hlb/internal/check"
	"hlb/internal/config"
	"hlb/internal/executor"
	"hlb/internal/logging"
	"hlb/internal/remote"
)

func runCheck(ctx context.Context, cmd *cli.Command) error {
	g := readGlobals(cmd)

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.NewLogger(logging.Config{Level: g.consoleLevel(cfg)})
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := check.Options{
		NewExecutor: func(t *config.Target) executor.Executor {
			return executor.New(t, executor.WithLogger(logger))
		},
		Logger: logger,
	}
	if cfg.S3.Enabled {
		opts.NewBackend = func(ctx context.Context) (remote.Backend, error) {
			return newBackend(ctx, cfg, logger)
		}
	}

	return check.Run(ctx, cfg, os.Stdout, opts)
}
