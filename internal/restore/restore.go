// Package restore copies a path out of a snapshot back onto the local
// machine.
package restore

import (
	"context"
	"io"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"hlb/internal/catalog"
	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
	"hlb/internal/executor"
	"hlb/internal/projector"
	"hlb/internal/snapshot"
)

// Request describes one restore.
type Request struct {
	// Snapshot is the identifier to restore from.
	Snapshot string
	// Path is relative to the source root. Empty restores the whole
	// snapshot and requires To.
	Path string
	// To is the local directory receiving the restored entry. Empty means
	// the entry's original parent directory under the source.
	To     string
	DryRun bool
	// Force allows overwriting an existing local entry.
	Force bool
}

// Result names what was restored where.
type Result struct {
	Snapshot snapshot.ID
	From     string
	To       string
}

type Restorer struct {
	target *config.Target
	exec   executor.Executor
	paths  *projector.Projector
	fs     afero.Fs
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

type Option func(*Restorer)

func WithLogger(l *slog.Logger) Option {
	return func(r *Restorer) { r.logger = l }
}

// WithFs sets the local filesystem checked before and after the copy.
func WithFs(fs afero.Fs) Option {
	return func(r *Restorer) { r.fs = fs }
}

// WithOutput forwards rsync output, the itemized changes of a dry run
// included.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Restorer) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

func New(t *config.Target, exec executor.Executor, paths *projector.Projector, opts ...Option) *Restorer {
	r := &Restorer{
		target: t,
		exec:   exec,
		paths:  paths,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Restorer) Run(ctx context.Context, req Request) (*Result, error) {
	r.logger.Info("Restore started", "snapshot", req.Snapshot, "path", req.Path, "to", req.To, "dryRun", req.DryRun)

	ids, err := catalog.List(ctx, r.exec, r.target.Destination.Path)
	if err != nil {
		return nil, err
	}
	id, _, ok := catalog.Find(ids, req.Snapshot)
	if !ok {
		return nil, hlberrors.NotFoundf("snapshot %s not found", req.Snapshot)
	}

	from := r.paths.PathIn(id, req.Path)
	exists, err := r.exec.Exists(ctx, from)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, hlberrors.NotFoundf("%s is not in snapshot %s", displayPath(req.Path), id)
	}

	dir, final, err := r.destination(req)
	if err != nil {
		return nil, err
	}
	if req.Path == "" {
		from += "/"
	}

	if !req.Force {
		if taken, err := afero.Exists(r.fs, final); err != nil {
			return nil, err
		} else if taken {
			err := errors.Newf("%s already exists", final)
			return nil, errors.WithHint(err, "pass --force to overwrite it, or --to to restore elsewhere")
		}
	}

	if !req.DryRun {
		if err := r.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	err = r.exec.Fetch(ctx, executor.FetchRequest{
		Source:      from,
		Destination: dir,
		DryRun:      req.DryRun,
		Stdout:      r.stdout,
		Stderr:      r.stderr,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "restoring %s from %s", displayPath(req.Path), id)
	}

	if !req.DryRun {
		if err := r.verify(final); err != nil {
			return nil, err
		}
	}

	r.logger.Info("Restore completed", "snapshot", id.String(), "from", from, "to", final)
	return &Result{Snapshot: id, From: from, To: final}, nil
}

// destination returns the directory rsync copies into and the local path
// the restored entry ends up at.
func (r *Restorer) destination(req Request) (dir, final string, err error) {
	if req.Path == "" {
		if req.To == "" {
			return "", "", errors.WithHint(
				errors.New("restoring a whole snapshot needs an explicit destination"),
				"pass --to <dir>")
		}
		return req.To, req.To, nil
	}

	base := path.Base(req.Path)
	if req.To != "" {
		return req.To, filepath.Join(req.To, base), nil
	}
	dir = filepath.Join(r.target.Source, filepath.FromSlash(path.Dir(req.Path)))
	return dir, filepath.Join(dir, base), nil
}

func (r *Restorer) verify(final string) error {
	ok, err := afero.Exists(r.fs, final)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf("%s not found after restore", final)
	}
	r.logger.Debug("Restored entry verified", "path", final)
	return nil
}

func displayPath(rel string) string {
	if rel == "" {
		return "the source root"
	}
	return rel
}
