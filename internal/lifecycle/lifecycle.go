// Package lifecycle creates and deletes the snapshots of one target.
//
// Creating a snapshot runs a prune pass, discards a stale staging entry
// unless resuming, mirrors the source into the staging entry with the
// latest snapshot as hard-link base, then renames the staging entry to a
// fresh identifier. A failed transfer leaves the staging entry behind and
// never produces an identifier-named entry.
package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/cockroachdb/errors"

	"hlb/internal/catalog"
	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
	"hlb/internal/executor"
	"hlb/internal/retention"
	"hlb/internal/snapshot"
)

// Manager runs lifecycle operations for one target.
type Manager struct {
	target *config.Target
	exec   executor.Executor
	logger *slog.Logger
	now    func() time.Time
	stdout io.Writer
	stderr io.Writer
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock sets the source of the current instant.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOutput forwards transfer output to stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(m *Manager) {
		m.stdout = stdout
		m.stderr = stderr
	}
}

func New(t *config.Target, exec executor.Executor, opts ...Option) *Manager {
	m := &Manager{
		target: t,
		exec:   exec,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Target() *config.Target {
	return m.target
}

func (m *Manager) Executor() executor.Executor {
	return m.exec
}

// Now returns the instant the manager considers current.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Root is the destination directory holding the snapshots.
func (m *Manager) Root() string {
	return m.target.Destination.Path
}

// Path returns the destination path of a top-level entry.
func (m *Manager) Path(name string) string {
	return path.Join(m.Root(), name)
}

// Verify fails with ErrDestinationUnverified unless the marker file exists
// at the destination root.
func (m *Manager) Verify(ctx context.Context) error {
	ok, err := m.exec.Exists(ctx, m.Path(snapshot.MarkerName))
	if err != nil {
		return errors.Wrapf(err, "checking destination %s", m.target.Destination)
	}
	if ok {
		return nil
	}

	err = errors.Newf("%s is not a verified backup destination: %s is missing", m.target.Destination, snapshot.MarkerName)
	err = errors.Mark(err, hlberrors.ErrDestinationUnverified)
	return errors.WithHintf(err, "check that the destination is mounted, then run: hlb mark --target %s", m.target.Name)
}

// Mark creates the marker file that makes the destination usable.
func (m *Manager) Mark(ctx context.Context) error {
	if err := m.exec.Touch(ctx, m.Path(snapshot.MarkerName)); err != nil {
		return errors.Wrapf(err, "creating marker at %s", m.target.Destination)
	}
	m.logger.Info("Destination marked", "destination", m.target.Destination.String())
	return nil
}

// Catalog lists the snapshots at the destination, oldest first.
func (m *Manager) Catalog(ctx context.Context) ([]snapshot.ID, error) {
	return catalog.List(ctx, m.exec, m.Root())
}

// Plan is the retention outcome of a catalog at one instant.
type Plan struct {
	Now       time.Time
	Snapshots []snapshot.ID
	Tiers     []retention.Tier
	Decisions []retention.Decision
}

// Plan lists the catalog and classifies it. Nothing is deleted.
func (m *Manager) Plan(ctx context.Context) (*Plan, error) {
	ids, err := m.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	return &Plan{
		Now:       now,
		Snapshots: ids,
		Tiers:     retention.Classify(ids, m.target.Retention, now),
		Decisions: retention.Decide(ids, m.target.Retention, now),
	}, nil
}

// Prune deletes every snapshot the retention policy marks, oldest first, and
// returns their decisions. With dryRun nothing is deleted.
func (m *Manager) Prune(ctx context.Context, dryRun bool) ([]retention.Decision, error) {
	if err := m.Verify(ctx); err != nil {
		return nil, err
	}
	return m.prune(ctx, dryRun)
}

func (m *Manager) prune(ctx context.Context, dryRun bool) ([]retention.Decision, error) {
	plan, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}

	var pruned []retention.Decision
	for _, d := range plan.Decisions {
		if d.Prune {
			pruned = append(pruned, d)
		}
	}
	m.logger.Debug("Retention plan",
		"snapshots", catalog.Strings(plan.Snapshots),
		"kept", len(retention.Kept(plan.Decisions)),
		"pruned", len(retention.Pruned(plan.Decisions)),
		"dryRun", dryRun)

	for _, d := range pruned {
		if dryRun {
			m.logger.Info("Would prune snapshot", "snapshot", d.ID.String(), "tier", d.Tier.String(), "reason", d.Reason())
			continue
		}
		m.logger.Info("Pruning snapshot", "snapshot", d.ID.String(), "tier", d.Tier.String(), "reason", d.Reason())
		if err := m.exec.Remove(ctx, m.Path(d.ID.String())); err != nil {
			return nil, errors.Wrapf(err, "pruning snapshot %s", d.ID)
		}
	}

	return pruned, nil
}

// BackupOptions controls one backup run.
type BackupOptions struct {
	// Resume keeps an existing staging entry instead of discarding it.
	Resume bool
	// NoPrune skips the prune pass.
	NoPrune bool
}

// Result summarizes a backup run.
type Result struct {
	Snapshot snapshot.ID
	// Base is the hard-link base, zero when the catalog was empty.
	Base   snapshot.ID
	Pruned []retention.Decision
}

// Backup verifies the destination, prunes, and creates a new snapshot.
func (m *Manager) Backup(ctx context.Context, opts BackupOptions) (*Result, error) {
	if err := m.Verify(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	if !opts.NoPrune {
		pruned, err := m.prune(ctx, false)
		if err != nil {
			return nil, err
		}
		res.Pruned = pruned
	}

	id, base, err := m.create(ctx, opts.Resume)
	if err != nil {
		return nil, err
	}
	res.Snapshot = id
	res.Base = base

	m.logger.Info("Backup finished",
		"snapshot", id.String(),
		"base", baseName(base),
		"pruned", len(res.Pruned))
	return res, nil
}

func (m *Manager) create(ctx context.Context, resume bool) (snapshot.ID, snapshot.ID, error) {
	staging := m.Path(snapshot.StagingName)

	if resume {
		m.logger.Info("Resuming staged snapshot", "path", staging)
	} else if err := m.exec.Remove(ctx, staging); err != nil {
		return snapshot.ID{}, snapshot.ID{}, errors.Wrap(err, "discarding previous staging entry")
	}

	ids, err := m.Catalog(ctx)
	if err != nil {
		return snapshot.ID{}, snapshot.ID{}, err
	}

	req := executor.TransferRequest{
		Source:      m.target.Source,
		Destination: staging,
		Exclude:     m.target.Exclude,
		ExtraArgs:   m.target.RsyncArgs,
		Stdout:      m.stdout,
		Stderr:      m.stderr,
	}
	base, hasBase := catalog.Latest(ids)
	if hasBase {
		req.LinkDest = m.Path(base.String())
	}

	if err := m.exec.Transfer(ctx, req); err != nil {
		if ctx.Err() != nil {
			return snapshot.ID{}, snapshot.ID{}, err
		}
		err = errors.Mark(err, hlberrors.ErrTransfer)
		err = errors.WithHintf(err, "the partial copy was kept as %s; rerun with --resume to continue it", snapshot.StagingName)
		return snapshot.ID{}, snapshot.ID{}, err
	}

	id := snapshot.New(m.now())
	if _, _, exists := catalog.Find(ids, id.String()); exists {
		return snapshot.ID{}, snapshot.ID{}, errors.Newf("snapshot %s already exists", id)
	}

	if err := m.exec.Rename(ctx, staging, m.Path(id.String())); err != nil {
		return snapshot.ID{}, snapshot.ID{}, errors.Wrapf(err, "finalizing snapshot %s", id)
	}
	m.logger.Info("Snapshot created", "snapshot", id.String(), "base", baseName(base))

	return id, base, nil
}

func baseName(base snapshot.ID) string {
	if base.IsZero() {
		return "none"
	}
	return base.String()
}
