package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
	"hlb/internal/executor"
	"hlb/internal/lifecycle"
	"hlb/internal/lock"
	"hlb/internal/logging"
	"hlb/internal/util"
)

// globals are the flags every command accepts.
type globals struct {
	configPath string
	target     string
	verbose    bool
	quiet      bool
}

func readGlobals(cmd *cli.Command) globals {
	return globals{
		configPath: cmd.String("config"),
		target:     cmd.String("target"),
		verbose:    cmd.Bool("verbose"),
		quiet:      cmd.Bool("quiet"),
	}
}

// consoleLevel is the configured level, overridden by --verbose or --quiet.
func (g globals) consoleLevel(cfg *config.Config) slog.Level {
	switch {
	case g.verbose:
		return slog.LevelDebug
	case g.quiet:
		return slog.LevelWarn
	}
	return cfg.Level()
}

// session holds what a command operating on one target needs.
type session struct {
	cfg     *config.Config
	target  *config.Target
	logger  *slog.Logger
	exec    executor.Executor
	manager *lifecycle.Manager

	closers []func() error
}

// openSession loads the config, resolves the target and sets up logging.
// Mutating commands also take the target's local lock.
func openSession(cmd *cli.Command, command string, mutating bool) (*session, error) {
	g := readGlobals(cmd)

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}

	t, err := cfg.Resolve(g.target)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.NewLogger(logging.Config{
		File:  util.LogFile(cfg.StateDir, t.Name, time.Now()),
		Level: g.consoleLevel(cfg),
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With("run", uuid.NewString(), "command", command, "target", t.Name)

	s := &session{
		cfg:     cfg,
		target:  t,
		logger:  logger,
		closers: []func() error{closer.Close},
	}

	if mutating {
		release, err := lock.Acquire(util.LockPath(cfg.StateDir, t.Name), t.Name, command)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, release)
	}

	s.exec, s.manager = newManager(t, logger, g.verbose)
	logger.Debug("Session opened", "destination", t.Destination.String(), "executor", s.exec.Describe())

	return s, nil
}

// Close releases the lock and closes the log file.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("Failed to release session resource", "error", err)
		}
	}
	s.closers = nil
}

// newManager builds the executor and lifecycle manager of a target. With
// verbose the transfer output is shown.
func newManager(t *config.Target, logger *slog.Logger, verbose bool) (executor.Executor, *lifecycle.Manager) {
	exec := executor.New(t, executor.WithLogger(logger))

	var stdout io.Writer
	if verbose {
		stdout = os.Stdout
	}
	return exec, lifecycle.New(t, exec,
		lifecycle.WithLogger(logger),
		lifecycle.WithOutput(stdout, os.Stderr))
}

// printError writes err and its remediation to w.
func printError(w io.Writer, err error, suggestion string) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if suggestion != "" {
		fmt.Fprintf(w, "Hint: %s\n", suggestion)
	}
}

// backupTarget runs one locked backup of t. The daemon uses it for every
// scheduled activation.
func backupTarget(ctx context.Context, cfg *config.Config, t *config.Target, logger *slog.Logger, opts lifecycle.BackupOptions) (*lifecycle.Result, error) {
	release, err := lock.Acquire(util.LockPath(cfg.StateDir, t.Name), t.Name, "backup")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("Failed to release lock", "error", err)
		}
	}()

	logger = logger.With("run", uuid.NewString(), "target", t.Name)
	_, m := newManager(t, logger, false)
	return m.Backup(ctx, opts)
}

// usageError reports a command invoked with wrong arguments.
func usageError(format string, args ...any) error {
	return &hlberrors.ExitError{Err: errors.Newf(format, args...), Code: hlberrors.ExitUser}
}
