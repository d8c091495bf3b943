// Package executor runs the directory, transfer and comparison primitives a
// snapshot destination needs, either on the local machine or on a remote
// host reached over SSH.
package executor

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
)

// Executor is the set of primitives the lifecycle and projector operate on.
// Paths are absolute paths on the machine that holds the destination.
type Executor interface {
	// List returns the entry names of dir in no particular order.
	List(ctx context.Context, dir string) ([]string, error)
	// Remove deletes path recursively. Removing an absent path succeeds.
	Remove(ctx context.Context, path string) error
	// Rename moves oldPath to newPath atomically.
	Rename(ctx context.Context, oldPath, newPath string) error
	Exists(ctx context.Context, path string) (bool, error)
	// Touch creates path as an empty file if it does not exist.
	Touch(ctx context.Context, path string) error
	// Transfer mirrors a source tree into a destination directory.
	Transfer(ctx context.Context, req TransferRequest) error
	// Fetch copies a destination path back to the local machine.
	Fetch(ctx context.Context, req FetchRequest) error
	// Diff writes a recursive unified diff of older against newer to w.
	// Differences are not an error.
	Diff(ctx context.Context, older, newer string, w io.Writer) error
	// Describe names where the executor runs, for logs and messages.
	Describe() string
}

// Comparer is implemented by executors that can tell whether two paths hold
// identical content.
type Comparer interface {
	Same(ctx context.Context, a, b string) (bool, error)
}

// TransferRequest describes one mirroring transfer.
type TransferRequest struct {
	Source      string
	Destination string
	// LinkDest is a previous snapshot whose unchanged files are hard-linked
	// instead of copied. Empty means a full copy.
	LinkDest  string
	Exclude   []string
	ExtraArgs []string
	Stdout    io.Writer
	Stderr    io.Writer
}

// FetchRequest copies one path out of the destination into a directory on
// the local machine. Source without a trailing slash lands as an entry of
// Destination; with one, its contents do.
type FetchRequest struct {
	Source      string
	Destination string
	DryRun      bool
	Stdout      io.Writer
	Stderr      io.Writer
}

type Option func(*options)

type options struct {
	fs     afero.Fs
	run    Runner
	logger *slog.Logger
}

// WithFs sets the filesystem a local executor operates on.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(o *options) { o.run = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{
		fs:     afero.NewOsFs(),
		run:    ExecRunner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the executor for a target's destination: SSH when a host is
// configured, local otherwise.
func New(t *config.Target, opts ...Option) Executor {
	if t.Destination.Remote() {
		return NewSSH(t.Destination.Host, opts...)
	}
	return NewLocal(opts...)
}

// rsyncArgs builds the argument list for one transfer. remote is prefixed to
// the destination when the receiver is another host.
func rsyncArgs(req TransferRequest, remote string) []string {
	args := []string{"-a", "--delete", "--delete-excluded"}
	if req.LinkDest != "" {
		args = append(args, "--link-dest="+req.LinkDest)
	}
	for _, pattern := range req.Exclude {
		args = append(args, "--exclude="+pattern)
	}
	args = append(args, req.ExtraArgs...)

	dst := withSlash(req.Destination)
	if remote != "" {
		dst = remote + ":" + dst
	}
	return append(args, withSlash(req.Source), dst)
}

func fetchArgs(req FetchRequest, remote string) []string {
	args := []string{"-a"}
	if req.DryRun {
		args = append(args, "--dry-run", "--itemize-changes")
	}

	src := req.Source
	if remote != "" {
		src = remote + ":" + src
	}
	return append(args, src, withSlash(req.Destination))
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

func transfer(ctx context.Context, run Runner, logger *slog.Logger, req TransferRequest, remote string) error {
	logger.Info("Starting transfer", "source", req.Source, "destination", req.Destination, "linkDest", req.LinkDest)
	return rsync(ctx, run, rsyncArgs(req, remote), req.Stdout, req.Stderr, req.Source, req.Destination)
}

func fetch(ctx context.Context, run Runner, logger *slog.Logger, req FetchRequest, remote string) error {
	logger.Info("Starting fetch", "source", req.Source, "destination", req.Destination, "dryRun", req.DryRun)
	return rsync(ctx, run, fetchArgs(req, remote), req.Stdout, req.Stderr, req.Source, req.Destination)
}

// rsync runs one rsync process. A failure not caused by cancellation is
// marked ErrTransfer and carries the last line rsync printed.
func rsync(ctx context.Context, run Runner, args []string, stdout, stderrW io.Writer, from, to string) error {
	_, stderr, err := run(ctx, Command{Name: "rsync", Args: args, Stdout: stdout, Stderr: stderrW})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = errors.Wrapf(err, "rsync %s -> %s", from, to)
		if msg := strings.TrimSpace(stderr); msg != "" {
			err = errors.WithDetail(err, msg)
			err = errors.Wrap(err, lastLine(msg))
		}
		return errors.Mark(err, hlberrors.ErrTransfer)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// diffExit treats the exit status 1 of diff(1), meaning "files differ", as
// success.
func diffExit(err error) error {
	if code, ok := exitCode(err); ok && code == 1 {
		return nil
	}
	return err
}
