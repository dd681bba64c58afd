package toolrun

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shipway "github.com/sampleops/shipway"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := &ExecRunner{}

	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err 1>&2"}})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, "out\nerr\n", res.Output())
}

func TestExecRunnerNonzeroExitIsToolError(t *testing.T) {
	r := &ExecRunner{}

	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo broken 1>&2; exit 3"}})
	require.Error(t, err)

	var toolErr *shipway.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "sh", toolErr.Tool)
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Contains(t, toolErr.Output, "broken")
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunnerMissingTool(t *testing.T) {
	r := &ExecRunner{}

	_, err := r.Run(context.Background(), Command{Name: "definitely-not-a-tool-on-path"})
	require.Error(t, err)

	var toolErr *shipway.ToolError
	assert.False(t, errors.As(err, &toolErr), "start failures are not tool failures")
}

func TestExecRunnerPipesStdin(t *testing.T) {
	r := &ExecRunner{}

	res, err := r.Run(context.Background(), Command{Name: "cat", Stdin: "secret-token"})
	require.NoError(t, err)
	assert.Equal(t, "secret-token", res.Stdout)
}

func TestCommandString(t *testing.T) {
	cmd := Command{Name: "helm", Args: []string{"upgrade", "--install", "sample-app-dev"}, Stdin: "password"}
	assert.Equal(t, "helm upgrade --install sample-app-dev", cmd.String())
}

func TestFakeRunnerRecordsAndFails(t *testing.T) {
	boom := errors.New("boom")
	f := &FakeRunner{
		FailOn: func(cmd Command) error {
			if cmd.Name == "docker" {
				return boom
			}
			return nil
		},
		Stdout: map[string]string{"aws ecr": "a-password"},
	}

	res, err := f.Run(context.Background(), Command{Name: "aws", Args: []string{"ecr", "get-login-password"}})
	require.NoError(t, err)
	assert.Equal(t, "a-password", res.Stdout)

	_, err = f.Run(context.Background(), Command{Name: "docker", Args: []string{"push", "x"}})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"aws ecr get-login-password", "docker push x"}, f.CommandLines())
	assert.Equal(t, 1, f.CountPrefix("docker"))
}
