package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"hlb/internal/projector"
	"hlb/internal/snapshot"
)

// newProjector resolves paths against the invocation's working directory.
func newProjector(s *session) (*projector.Projector, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return projector.New(s.target, s.exec, wd, projector.WithLogger(s.logger)), nil
}

func runRemove(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return usageError("rm takes exactly one <path> argument")
	}
	dryRun := cmd.Bool("dry-run")

	s, err := openSession(cmd, "rm", !dryRun)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := newProjector(s)
	if err != nil {
		return err
	}
	rel, err := p.Relative(cmd.Args().First())
	if err != nil {
		return err
	}
	if err := s.manager.Verify(ctx); err != nil {
		return err
	}

	if !p.Excluded(rel) {
		fmt.Fprintf(os.Stderr, "Warning: no exclude rule of target %s covers %s; the next backup will copy it again\n", s.target.Name, rel)
	}

	removed, err := p.RemoveEverywhere(ctx, rel, dryRun)
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	for _, path := range removed {
		fmt.Printf("%s %s\n", verb, path)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Printf("%s is not in any snapshot\n", rel)
	}
	return nil
}

func runRevisions(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return usageError("revisions takes exactly one <path> argument")
	}

	s, err := openSession(cmd, "revisions", false)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := newProjector(s)
	if err != nil {
		return err
	}
	rel, err := p.Relative(cmd.Args().First())
	if err != nil {
		return err
	}

	revs, degraded, err := p.Revisions(ctx, rel)
	if err != nil {
		return err
	}
	if degraded {
		fmt.Fprintf(os.Stderr, "Note: content cannot be compared on %s, listing every snapshot that holds %s\n", s.exec.Describe(), rel)
	}
	for _, r := range revs {
		fmt.Printf("%s  %s\n", r.ID, r.Path)
	}
	return nil
}

func runDiff(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 || cmd.NArg() > 2 {
		return usageError("diff takes a <snapshot> argument and an optional [path]")
	}
	id, err := snapshot.Parse(cmd.Args().First())
	if err != nil {
		return err
	}

	s, err := openSession(cmd, "diff", false)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := newProjector(s)
	if err != nil {
		return err
	}

	var rel string
	if cmd.NArg() == 2 {
		if rel, err = p.Relative(cmd.Args().Get(1)); err != nil {
			return err
		}
	}

	return p.Diff(ctx, id.String(), rel, os.Stdout)
}
