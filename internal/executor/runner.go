package executor

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/cockroachdb/errors"
)

// Command is one external process invocation. Stdout, when set, receives
// the process output instead of it being captured. Stderr is always
// captured and additionally copied to Stderr when set.
type Command struct {
	Name   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner runs a command to completion and returns its captured output.
type Runner func(ctx context.Context, c Command) (stdout, stderr string, err error)

// ExecRunner runs commands as local processes.
func ExecRunner(ctx context.Context, c Command) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderrBuf
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, c.Stderr)
	}

	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// exitCode extracts the exit status of a finished process from err.
func exitCode(err error) (int, bool) {
	var ec interface{ ExitCode() int }
	if err != nil && errors.As(err, &ec) {
		return ec.ExitCode(), true
	}
	return 0, false
}
