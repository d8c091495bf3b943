package check

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlb/internal/config"
	"hlb/internal/executor"
	"hlb/internal/remote"
	"hlb/internal/retention"
)

type fakeBackend struct {
	err error
}

func (f *fakeBackend) Upload(context.Context, io.Reader, string, string) error { return nil }
func (f *fakeBackend) Head(context.Context, string) (*remote.ObjectInfo, error) {
	return nil, nil
}
func (f *fakeBackend) VerifyCredentials(context.Context) error { return f.err }

func setup(t *testing.T) (*config.Config, Options) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/mnt/usb/backups", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/mnt/usb/backups/backup.marker", nil, 0o644))
	require.NoError(t, fs.MkdirAll("/mnt/unmarked", 0o755))

	cfg := &config.Config{
		StateDir: t.TempDir(),
		Targets: []config.Target{
			{Name: "usb", Source: t.TempDir(), Destination: config.Destination{Path: "/mnt/usb/backups"}, Retention: retention.DefaultPolicy()},
		},
	}
	opts := Options{
		NewExecutor: func(*config.Target) executor.Executor { return executor.NewLocal(executor.WithFs(fs)) },
		LookPath:    func(bin string) (string, error) { return "/usr/bin/" + bin, nil },
	}
	return cfg, opts
}

func TestRunAllPass(t *testing.T) {
	cfg, opts := setup(t)
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), cfg, &out, opts))

	assert.Contains(t, out.String(), "target usb destination /mnt/usb/backups (local): OK")
	assert.Contains(t, out.String(), "all checks passed")
}

func TestRunReportsFailures(t *testing.T) {
	cfg, opts := setup(t)
	cfg.Targets = append(cfg.Targets,
		config.Target{Name: "unmarked", Source: "/nonexistent/source", Destination: config.Destination{Path: "/mnt/unmarked"}},
		config.Target{Name: "unplugged", Source: cfg.Targets[0].Source, Destination: config.Destination{Path: "/mnt/gone"}},
	)
	opts.LookPath = func(bin string) (string, error) {
		if bin == "rsync" {
			return "", errors.New("executable file not found in $PATH")
		}
		return "/usr/bin/" + bin, nil
	}
	cfg.S3 = config.S3Config{Enabled: true, Bucket: "offsite", StorageClass: "GLACIER"}
	opts.NewBackend = func(context.Context) (remote.Backend, error) {
		return &fakeBackend{err: errors.New("access denied")}, nil
	}

	var out bytes.Buffer
	err := Run(context.Background(), cfg, &out, opts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 check(s) failed")
	report := out.String()
	assert.Contains(t, report, "binary rsync: FAIL")
	assert.Contains(t, report, "target unmarked source /nonexistent/source: FAIL")
	assert.Contains(t, report, "target unmarked destination /mnt/unmarked (local): FAIL")
	assert.Contains(t, report, "backup.marker is missing")
	assert.Contains(t, report, "target unplugged destination /mnt/gone (local): FAIL")
	assert.Contains(t, report, "s3 storage class: WARN")
	assert.Contains(t, report, "s3 bucket offsite: FAIL: access denied")
}
