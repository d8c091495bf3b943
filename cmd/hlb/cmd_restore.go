package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"hlb/internal/restore"
	"hlb/internal/snapshot"
)

func runRestore(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 || cmd.NArg() > 2 {
		return usageError("restore takes a <snapshot> argument and an optional [path]")
	}
	id, err := snapshot.Parse(cmd.Args().First())
	if err != nil {
		return err
	}

	s, err := openSession(cmd, "restore", false)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := newProjector(s)
	if err != nil {
		return err
	}

	req := restore.Request{
		Snapshot: id.String(),
		To:       cmd.String("to"),
		DryRun:   cmd.Bool("dry-run"),
		Force:    cmd.Bool("force"),
	}
	if cmd.NArg() == 2 {
		if req.Path, err = p.Relative(cmd.Args().Get(1)); err != nil {
			return err
		}
	}

	r := restore.New(s.target, s.exec, p,
		restore.WithLogger(s.logger),
		restore.WithOutput(os.Stdout, os.Stderr))
	res, err := r.Run(ctx, req)
	if err != nil {
		return err
	}

	if req.DryRun {
		fmt.Printf("Would restore %s to %s\n", res.From, res.To)
		return nil
	}
	fmt.Printf("Restored %s to %s\n", res.From, res.To)
	return nil
}
