// Package projector maps a path under a target's source to the matching
// path inside every snapshot, for point-in-time lookups, removal and diffs.
package projector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"hlb/internal/catalog"
	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
	"hlb/internal/executor"
	"hlb/internal/snapshot"
)

type Projector struct {
	target  *config.Target
	exec    executor.Executor
	workDir string
	logger  *slog.Logger
}

type Option func(*Projector)

func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) { p.logger = l }
}

// New returns a projector resolving relative paths against workDir.
func New(t *config.Target, exec executor.Executor, workDir string, opts ...Option) *Projector {
	p := &Projector{
		target:  t,
		exec:    exec,
		workDir: workDir,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Relative converts p, absolute or relative to the working directory, into a
// slash-separated path relative to the source root. An empty result means
// the source root itself.
func (p *Projector) Relative(name string) (string, error) {
	abs := name
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.workDir, abs)
	}

	rel, err := filepath.Rel(filepath.Clean(p.target.Source), filepath.Clean(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", hlberrors.NotFoundf("%s is not inside source %s", name, p.target.Source)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// PathIn returns the destination path of rel inside snapshot id.
func (p *Projector) PathIn(id snapshot.ID, rel string) string {
	return path.Join(p.target.Destination.Path, id.String(), rel)
}

// Excluded reports whether rel is covered by one of the target's exclude
// rules, so the next backup will not bring it back.
func (p *Projector) Excluded(rel string) bool {
	info, err := os.Stat(filepath.Join(p.target.Source, filepath.FromSlash(rel)))
	return p.target.Excludes(rel, err == nil && info.IsDir())
}

// RemoveEverywhere deletes rel from every snapshot holding it and returns
// the deleted paths, oldest first. With dryRun nothing is deleted.
func (p *Projector) RemoveEverywhere(ctx context.Context, rel string, dryRun bool) ([]string, error) {
	if rel == "" {
		return nil, errors.New("refusing to remove the source root from every snapshot")
	}

	ids, err := catalog.List(ctx, p.exec, p.target.Destination.Path)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ids {
		target := p.PathIn(id, rel)
		ok, err := p.exec.Exists(ctx, target)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}

		removed = append(removed, target)
		if dryRun {
			p.logger.Info("Would remove", "path", target)
			continue
		}
		p.logger.Info("Removing", "path", target)
		if err := p.exec.Remove(ctx, target); err != nil {
			return removed, errors.Wrapf(err, "removing %s", target)
		}
	}
	return removed, nil
}

// Previous returns the snapshot immediately before the one named name.
func Previous(ids []snapshot.ID, name string) (snapshot.ID, error) {
	_, i, ok := catalog.Find(ids, name)
	if !ok {
		return snapshot.ID{}, hlberrors.NotFoundf("snapshot %s not found", name)
	}
	if i == 0 {
		return snapshot.ID{}, hlberrors.NotFoundf("snapshot %s is the oldest, there is no previous snapshot", name)
	}
	return ids[i-1], nil
}

// Revision is one snapshot where a path's content changed.
type Revision struct {
	ID   snapshot.ID
	Path string
}

// Revisions lists, newest first, the snapshots where rel differs from the
// nearest newer revision. Snapshots without rel are skipped. When the
// executor cannot compare content every snapshot holding rel is returned
// and degraded is true.
func (p *Projector) Revisions(ctx context.Context, rel string) (revs []Revision, degraded bool, err error) {
	ids, err := catalog.List(ctx, p.exec, p.target.Destination.Path)
	if err != nil {
		return nil, false, err
	}

	cmp, ok := p.exec.(executor.Comparer)
	degraded = !ok

	for i := len(ids) - 1; i >= 0; i-- {
		target := p.PathIn(ids[i], rel)
		exists, err := p.exec.Exists(ctx, target)
		if err != nil {
			return nil, degraded, err
		}
		if !exists {
			continue
		}

		if !degraded && len(revs) > 0 {
			same, err := cmp.Same(ctx, revs[len(revs)-1].Path, target)
			if err != nil {
				return nil, degraded, errors.Wrapf(err, "comparing %s", target)
			}
			if same {
				continue
			}
		}
		revs = append(revs, Revision{ID: ids[i], Path: target})
	}

	if len(revs) == 0 {
		return nil, degraded, hlberrors.NotFoundf("%s is not in any snapshot", rel)
	}
	return revs, degraded, nil
}

// Diff writes the differences of rel between the snapshot named name and
// the snapshot before it.
func (p *Projector) Diff(ctx context.Context, name, rel string, w io.Writer) error {
	ids, err := catalog.List(ctx, p.exec, p.target.Destination.Path)
	if err != nil {
		return err
	}

	prev, err := Previous(ids, name)
	if err != nil {
		return err
	}
	cur, _, _ := catalog.Find(ids, name)

	return p.exec.Diff(ctx, p.PathIn(prev, rel), p.PathIn(cur, rel), w)
}
