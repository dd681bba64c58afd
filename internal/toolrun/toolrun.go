// Package toolrun is the narrow seam between the pipeline and the external
// tools it drives (docker, helm, kubectl, aws). Stages construct argv lists;
// a Runner executes them. Tests substitute a FakeRunner and assert on the
// constructed arguments without touching real infrastructure.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	shipway "github.com/sampleops/shipway"
)

// Command is one external tool invocation.
type Command struct {
	// Name is the tool binary, e.g. "helm".
	Name string
	// Args is the argument vector, excluding the tool name.
	Args []string
	// Dir is the working directory; empty means the process working dir.
	Dir string
	// Stdin is piped to the tool when non-empty (registry passwords).
	Stdin string
}

// String renders the command the way it would be typed in a shell, with stdin
// content elided.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns the combined captured output.
func (r Result) Output() string {
	return r.Stdout + r.Stderr
}

// Runner executes commands. Run returns a *shipway.ToolError when the tool
// exits nonzero; any other error means the tool could not be started.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands via os/exec. With Stream set, tool output is
// forwarded to the process streams as it is produced while still being
// captured for error reporting.
type ExecRunner struct {
	Stream bool
	Log    *logrus.Logger
}

// Run executes the command and maps its exit status.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if r.Log != nil {
		r.Log.WithField("cmd", cmd.String()).Debug("exec")
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if r.Stream {
		c.Stdout = io.MultiWriter(os.Stdout, &stdout)
		c.Stderr = io.MultiWriter(os.Stderr, &stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &shipway.ToolError{
			Tool:     cmd.Name,
			Args:     cmd.Args,
			ExitCode: res.ExitCode,
			Output:   res.Output(),
		}
	}
	// Start failure: tool missing from PATH, bad working dir, ctx cancelled.
	return res, err
}
