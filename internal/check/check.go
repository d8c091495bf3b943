// Package check reports whether the configuration, the sources, the
// destinations and the offload bucket are usable. It never mutates anything.
package check

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"

	"hlb/internal/config"
	"hlb/internal/executor"
	"hlb/internal/lifecycle"
	"hlb/internal/manifest"
	"hlb/internal/remote"
	"hlb/internal/util"
)

type Options struct {
	// NewExecutor returns the executor for a target. Defaults to executor.New.
	NewExecutor func(*config.Target) executor.Executor
	// NewBackend connects to the offload bucket. Nil skips the S3 check.
	NewBackend func(ctx context.Context) (remote.Backend, error)
	// LookPath finds local binaries. Defaults to exec.LookPath.
	LookPath func(string) (string, error)
	Logger   *slog.Logger
}

// Run checks everything and reports each result on w. It returns an error
// counting the failed checks.
func Run(ctx context.Context, cfg *config.Config, w io.Writer, opts Options) error {
	if opts.NewExecutor == nil {
		opts.NewExecutor = func(t *config.Target) executor.Executor { return executor.New(t) }
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	failed := 0
	report := func(subject string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s: FAIL: %v\n", subject, err)
			return
		}
		fmt.Fprintf(w, "%s: OK\n", subject)
	}

	fmt.Fprintln(w, "config: OK")

	for _, bin := range []string{"rsync", "diff"} {
		_, err := opts.LookPath(bin)
		report("binary "+bin, err)
	}

	if len(cfg.Targets) == 0 {
		fmt.Fprintln(w, "no targets defined")
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]

		_, err := os.Stat(t.Source)
		report(fmt.Sprintf("target %s source %s", t.Name, t.Source), err)

		ex := opts.NewExecutor(t)
		m := lifecycle.New(t, ex, lifecycle.WithLogger(opts.Logger))
		subject := fmt.Sprintf("target %s destination %s (%s)", t.Name, t.Destination, ex.Describe())
		if _, err := m.Catalog(ctx); err != nil {
			report(subject, err)
			continue
		}
		report(subject, m.Verify(ctx))

		if c, err := manifest.Read(util.ManifestPath(cfg.StateDir, t.Name)); err == nil {
			fmt.Fprintf(w, "target %s local manifest: %d snapshot(s), written %s\n",
				t.Name, len(c.Snapshots), time.Unix(c.Datetime, 0).Format(time.RFC3339))
		}
		if ref, err := manifest.ReadRef(util.RefPath(cfg.StateDir, t.Name)); err == nil {
			fmt.Fprintf(w, "target %s last manifest push: %s (%s)\n",
				t.Name, ref.S3Path, time.Unix(ref.Datetime, 0).Format(time.RFC3339))
		}
	}

	if cfg.S3.Enabled && opts.NewBackend != nil {
		if err := remote.ValidateStorageClass(cfg.S3.StorageClass); err != nil {
			fmt.Fprintf(w, "s3 storage class: WARN: %v\n", err)
		}
		backend, err := opts.NewBackend(ctx)
		if err == nil {
			err = backend.VerifyCredentials(ctx)
		}
		report("s3 bucket "+cfg.S3.Bucket, err)
	}

	if failed > 0 {
		return errors.Newf("%d check(s) failed", failed)
	}
	fmt.Fprintln(w, "all checks passed")
	return nil
}
