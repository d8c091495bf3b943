package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"hlb/internal/crypto"
)

// Local operates on a destination mounted on this machine.
type Local struct {
	fs     afero.Fs
	run    Runner
	logger *slog.Logger
}

var (
	_ Executor = (*Local)(nil)
	_ Comparer = (*Local)(nil)
)

func NewLocal(opts ...Option) *Local {
	o := newOptions(opts)
	return &Local{fs: o.fs, run: o.run, logger: o.logger}
}

func (l *Local) Describe() string {
	return "local"
}

func (l *Local) List(_ context.Context, dir string) ([]string, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func (l *Local) Remove(_ context.Context, path string) error {
	l.logger.Debug("Removing", "path", path)
	return l.fs.RemoveAll(path)
}

func (l *Local) Rename(ctx context.Context, oldPath, newPath string) error {
	l.logger.Debug("Renaming", "from", oldPath, "to", newPath)
	return retry(ctx, "rename", func() error {
		return l.fs.Rename(oldPath, newPath)
	})
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	return afero.Exists(l.fs, path)
}

func (l *Local) Touch(_ context.Context, path string) error {
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return l.fs.Chtimes(path, now, now)
}

func (l *Local) Transfer(ctx context.Context, req TransferRequest) error {
	return transfer(ctx, l.run, l.logger, req, "")
}

func (l *Local) Fetch(ctx context.Context, req FetchRequest) error {
	return fetch(ctx, l.run, l.logger, req, "")
}

func (l *Local) Diff(ctx context.Context, older, newer string, w io.Writer) error {
	_, stderr, err := l.run(ctx, Command{Name: "diff", Args: []string{"-ruN", "--", older, newer}, Stdout: w})
	if err = diffExit(err); err != nil {
		return errors.Wrapf(err, "diff %s %s: %s", older, newer, stderr)
	}
	return nil
}

// Same reports whether a and b hold the same content. Two absent paths are
// the same; hard links to one inode are the same without reading them.
// Symbolic links are compared by target and never followed.
func (l *Local) Same(ctx context.Context, a, b string) (bool, error) {
	ia, errA := l.lstat(a)
	ib, errB := l.lstat(b)
	switch {
	case os.IsNotExist(errA) && os.IsNotExist(errB):
		return true, nil
	case os.IsNotExist(errA) || os.IsNotExist(errB):
		return false, nil
	case errA != nil:
		return false, errA
	case errB != nil:
		return false, errB
	}

	if os.SameFile(ia, ib) {
		return true, nil
	}
	if ia.Mode().Type() != ib.Mode().Type() {
		return false, nil
	}

	switch {
	case ia.IsDir():
		return l.sameDir(ctx, a, b)
	case ia.Mode()&os.ModeSymlink != 0:
		return l.sameLink(a, b)
	case !ia.Mode().IsRegular():
		return true, nil
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	ha, err := crypto.BLAKE3File(l.fs, a)
	if err != nil {
		return false, err
	}
	hb, err := crypto.BLAKE3File(l.fs, b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

func (l *Local) lstat(path string) (os.FileInfo, error) {
	if ls, ok := l.fs.(afero.Lstater); ok {
		info, _, err := ls.LstatIfPossible(path)
		return info, err
	}
	return l.fs.Stat(path)
}

func (l *Local) sameLink(a, b string) (bool, error) {
	lr, ok := l.fs.(afero.LinkReader)
	if !ok {
		return false, errors.Newf("%s: filesystem cannot read symbolic links", a)
	}
	ta, err := lr.ReadlinkIfPossible(a)
	if err != nil {
		return false, err
	}
	tb, err := lr.ReadlinkIfPossible(b)
	if err != nil {
		return false, err
	}
	return ta == tb, nil
}

func (l *Local) sameDir(ctx context.Context, a, b string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	na, err := afero.ReadDir(l.fs, a)
	if err != nil {
		return false, err
	}
	nb, err := afero.ReadDir(l.fs, b)
	if err != nil {
		return false, err
	}
	if len(na) != len(nb) {
		return false, nil
	}

	// ReadDir sorts by name
	for i := range na {
		if na[i].Name() != nb[i].Name() {
			return false, nil
		}
		same, err := l.Same(ctx, filepath.Join(a, na[i].Name()), filepath.Join(b, nb[i].Name()))
		if err != nil || !same {
			return false, err
		}
	}
	return true, nil
}
