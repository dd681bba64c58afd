package toolrun

import (
	"context"
	"strings"
)

// FakeRunner records every command instead of executing it. Tests inspect
// Calls to assert on constructed argv lists, and use FailOn to inject
// failures at specific invocations.
type FakeRunner struct {
	// Calls holds every command in invocation order.
	Calls []Command
	// FailOn, when non-nil, is consulted before each command; a non-nil
	// return is surfaced as that command's error.
	FailOn func(cmd Command) error
	// Stdout, when non-nil, supplies fake stdout keyed by a prefix of the
	// rendered command.
	Stdout map[string]string
}

// Run records the command and returns the scripted outcome.
func (f *FakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	f.Calls = append(f.Calls, cmd)

	if f.FailOn != nil {
		if err := f.FailOn(cmd); err != nil {
			return Result{ExitCode: 1}, err
		}
	}

	res := Result{}
	for prefix, out := range f.Stdout {
		if strings.HasPrefix(cmd.String(), prefix) {
			res.Stdout = out
		}
	}
	return res, nil
}

// CommandLines renders every recorded call, one per line, for coarse
// assertions on ordering.
func (f *FakeRunner) CommandLines() []string {
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.String()
	}
	return lines
}

// CountPrefix returns how many recorded calls start with the given rendered
// prefix.
func (f *FakeRunner) CountPrefix(prefix string) int {
	n := 0
	for _, line := range f.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
