package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"hlb/internal/config"
	hlberrors "hlb/internal/errors"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "hlb",
		Usage:   "Hard-link deduplicated rsync snapshots with tiered retention",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration yaml file",
				Value: config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "name of the target to operate on (default: first declared)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log debug messages and show transfer output",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only log warnings and errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Prune, then create a new snapshot",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "continue a previously interrupted transfer instead of starting over",
					},
					&cli.BoolFlag{
						Name:  "no-prune",
						Usage: "skip the retention pass",
					},
				},
				Action: runBackup,
			},
			{
				Name:  "prune",
				Usage: "Delete snapshots the retention policy no longer keeps",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "show what would be deleted without deleting",
					},
				},
				Action: runPrune,
			},
			{
				Name:  "list",
				Usage: "List snapshots with their retention tier",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the listing as JSON",
					},
				},
				Action: runList,
			},
			{
				Name:   "mark",
				Usage:  "Mark the destination as a backup location",
				Action: runMark,
			},
			{
				Name:      "rm",
				Usage:     "Remove a path from every snapshot",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "show what would be removed without removing",
					},
				},
				Action: runRemove,
			},
			{
				Name:      "revisions",
				Usage:     "List the snapshots where a path changed",
				ArgsUsage: "<path>",
				Action:    runRevisions,
			},
			{
				Name:      "diff",
				Usage:     "Show what changed between a snapshot and the one before it",
				ArgsUsage: "<snapshot> [path]",
				Action:    runDiff,
			},
			{
				Name:      "restore",
				Usage:     "Copy a path out of a snapshot",
				ArgsUsage: "<snapshot> [path]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "to",
						Usage: "directory receiving the restored path (default: its original location)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing path",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "show what would be restored without restoring",
					},
				},
				Action: runRestore,
			},
			{
				Name:   "check",
				Usage:  "Check the configuration, destinations and offload bucket",
				Action: runCheck,
			},
			{
				Name:  "manifest",
				Usage: "Write the catalog manifest of a target",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "push",
						Usage: "upload the manifest to the configured S3 bucket",
					},
				},
				Action: runManifest,
			},
			{
				Name:   "genkey",
				Usage:  "Generate public and private key pair",
				Action: runGenerateKey,
			},
			{
				Name:  "test-keys",
				Usage: "Test if public and private key pair match",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "private-key",
						Usage:    "Path to age private key file",
						Required: true,
					},
				},
				Action: runTestKeys,
			},
			{
				Name:   "daemon",
				Usage:  "Run scheduled backups until interrupted",
				Action: runDaemon,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		exitErr := hlberrors.ToExit(err)
		if ctx.Err() != nil {
			exitErr.Code = hlberrors.ExitInterrupt
			fmt.Fprintln(os.Stderr, "\nInterrupted")
		}
		printError(os.Stderr, exitErr, exitErr.Suggestion)
		os.Exit(exitErr.Code)
	}
}
