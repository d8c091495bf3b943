package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"hlb/internal/list"
	"hlb/internal/logging"
)

func runList(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "list", false)
	if err != nil {
		return err
	}
	defer s.Close()

	plan, err := s.manager.Plan(ctx)
	if err != nil {
		return err
	}
	out := list.Build(s.target, plan)

	if cmd.Bool("json") {
		return list.WriteJSON(os.Stdout, out)
	}
	list.Render(os.Stdout, out, logging.SupportsColor(os.Stdout))
	return nil
}

func runMark(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "mark", true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Mark(ctx); err != nil {
		return err
	}
	fmt.Printf("Marked %s as the backup destination of %s\n", s.target.Destination, s.target.Name)
	return nil
}
