package executor

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

// SSH operates on a destination on another host by running shell commands
// through ssh(1). It cannot compare content, so it does not implement
// Comparer.
type SSH struct {
	host   string
	run    Runner
	logger *slog.Logger
}

var _ Executor = (*SSH)(nil)

func NewSSH(host string, opts ...Option) *SSH {
	o := newOptions(opts)
	return &SSH{host: host, run: o.run, logger: o.logger}
}

func (s *SSH) Describe() string {
	return "ssh " + s.host
}

// remote runs a shell command line on the host.
func (s *SSH) remote(ctx context.Context, stdout io.Writer, argv ...string) (string, string, error) {
	line := shellJoin(argv)
	s.logger.Debug("Running remote command", "host", s.host, "command", line)
	return s.run(ctx, Command{
		Name:   "ssh",
		Args:   []string{"-o", "BatchMode=yes", s.host, line},
		Stdout: stdout,
	})
}

func (s *SSH) check(ctx context.Context, argv ...string) error {
	_, stderr, err := s.remote(ctx, nil, argv...)
	if err != nil {
		return errors.Wrapf(err, "%s on %s: %s", argv[0], s.host, strings.TrimSpace(stderr))
	}
	return nil
}

func (s *SSH) List(ctx context.Context, dir string) ([]string, error) {
	stdout, stderr, err := s.remote(ctx, nil, "ls", "-1A", "--", dir)
	if err != nil {
		return nil, errors.Wrapf(err, "ls on %s: %s", s.host, strings.TrimSpace(stderr))
	}

	var names []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (s *SSH) Remove(ctx context.Context, path string) error {
	return s.check(ctx, "rm", "-rf", "--", path)
}

func (s *SSH) Rename(ctx context.Context, oldPath, newPath string) error {
	return s.check(ctx, "mv", "-T", "--", oldPath, newPath)
}

func (s *SSH) Exists(ctx context.Context, path string) (bool, error) {
	_, stderr, err := s.remote(ctx, nil, "test", "-e", path)
	if err == nil {
		return true, nil
	}
	// test exits 1 for a missing path; ssh itself exits 255
	if code, ok := exitCode(err); ok && code == 1 {
		return false, nil
	}
	return false, errors.Wrapf(err, "test on %s: %s", s.host, strings.TrimSpace(stderr))
}

func (s *SSH) Touch(ctx context.Context, path string) error {
	return s.check(ctx, "touch", "--", path)
}

func (s *SSH) Transfer(ctx context.Context, req TransferRequest) error {
	return transfer(ctx, s.run, s.logger, req, s.host)
}

func (s *SSH) Fetch(ctx context.Context, req FetchRequest) error {
	return fetch(ctx, s.run, s.logger, req, s.host)
}

func (s *SSH) Diff(ctx context.Context, older, newer string, w io.Writer) error {
	_, stderr, err := s.remote(ctx, w, "diff", "-ruN", "--", older, newer)
	if err = diffExit(err); err != nil {
		return errors.Wrapf(err, "diff on %s: %s", s.host, strings.TrimSpace(stderr))
	}
	return nil
}

// shellJoin quotes every argument for a POSIX shell.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./=:@,+%", r)
}
