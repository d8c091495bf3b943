package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"hlb/internal/config"
	"hlb/internal/lifecycle"
	"hlb/internal/logging"
	"hlb/internal/schedule"
	"hlb/internal/util"
)

func runDaemon(ctx context.Context, cmd *cli.Command) error {
	g := readGlobals(cmd)

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.NewLogger(logging.Config{
		DailyFile: func(day time.Time) string { return util.LogFile(cfg.StateDir, "daemon", day) },
		Level:     g.consoleLevel(cfg),
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = logger.With("daemon", uuid.NewString())

	job := func(ctx context.Context, t *config.Target) error {
		res, err := backupTarget(ctx, cfg, t, logger, lifecycle.BackupOptions{})
		if err != nil {
			return err
		}
		logger.Info("Snapshot created", "target", t.Name, "snapshot", res.Snapshot.String(), "pruned", len(res.Pruned))
		return nil
	}

	s, err := schedule.New(cfg.Targets, job, schedule.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("Daemon started", "targets", s.Targets())

	return s.Run(ctx)
}
