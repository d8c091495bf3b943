package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"hlb/internal/lifecycle"
	"hlb/internal/retention"
)

func runBackup(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "backup", true)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("Backup started", "source", s.target.Source, "destination", s.target.Destination.String())

	res, err := s.manager.Backup(ctx, lifecycle.BackupOptions{
		Resume:  cmd.Bool("resume"),
		NoPrune: cmd.Bool("no-prune"),
	})
	if err != nil {
		s.logger.Error("Backup failed", "error", err)
		return err
	}

	printBackupSummary(os.Stdout, res)
	return nil
}

func printBackupSummary(w io.Writer, res *lifecycle.Result) {
	base := "none (full copy)"
	if !res.Base.IsZero() {
		base = res.Base.String()
	}
	fmt.Fprintf(w, "Snapshot %s created\n", res.Snapshot)
	fmt.Fprintf(w, "  hard-link base: %s\n", base)
	fmt.Fprintf(w, "  pruned:         %d\n", len(res.Pruned))
	printDecisions(w, res.Pruned, "  - ")
}

func runPrune(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")

	s, err := openSession(cmd, "prune", !dryRun)
	if err != nil {
		return err
	}
	defer s.Close()

	pruned, err := s.manager.Prune(ctx, dryRun)
	if err != nil {
		return err
	}

	switch {
	case len(pruned) == 0:
		fmt.Println("Nothing to prune")
	case dryRun:
		fmt.Printf("Would prune %d snapshot(s):\n", len(pruned))
	default:
		fmt.Printf("Pruned %d snapshot(s):\n", len(pruned))
	}
	printDecisions(os.Stdout, pruned, "  ")
	return nil
}

func printDecisions(w io.Writer, decisions []retention.Decision, indent string) {
	for _, d := range decisions {
		fmt.Fprintf(w, "%s%s  %s\n", indent, d.ID, d.Reason())
	}
}
