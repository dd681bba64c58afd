package shipway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeploymentTarget(t *testing.T) {
	got, err := ParseDeploymentTarget("kind")
	require.NoError(t, err)
	assert.Equal(t, TargetKind, got)

	got, err = ParseDeploymentTarget("eks")
	require.NoError(t, err)
	assert.Equal(t, TargetEKS, got)

	_, err = ParseDeploymentTarget("minikube")
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DEPLOYMENT_TARGET", cfgErr.Var)
}

func TestStageOrderIsFixed(t *testing.T) {
	assert.Equal(t, []string{"lint", "test", "chart-lint", "build", "deploy", "helm-test"}, StageOrder)
}

func TestEnvironmentsPromotionOrder(t *testing.T) {
	assert.Equal(t, []string{"dev", "staging", "prod"}, Environments)
	assert.True(t, KnownEnvironment("staging"))
	assert.False(t, KnownEnvironment("qa"))
}

func TestPipelineRunRecording(t *testing.T) {
	run := NewPipelineRun(TargetKind)
	require.NotEmpty(t, run.ID)
	assert.True(t, run.Succeeded(), "empty run counts as successful")

	run.Record(StageResult{Stage: StageLint, Succeeded: true})
	run.Record(StageResult{Stage: StageTest, Succeeded: false, Error: "npm test exited with code 1"})

	assert.Len(t, run.Results, 2)
	assert.False(t, run.Succeeded())
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Tool: "helm", Args: []string{"lint", "chart"}, ExitCode: 1, Output: "icon is recommended"}
	assert.Equal(t, "helm exited with code 1", err.Error())
}
