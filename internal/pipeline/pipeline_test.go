package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shipway "github.com/sampleops/shipway"
	"github.com/sampleops/shipway/internal/config"
	"github.com/sampleops/shipway/internal/stage"
	"github.com/sampleops/shipway/internal/target"
	"github.com/sampleops/shipway/internal/toolrun"
)

// fixture builds a full pipeline over a FakeRunner and a throwaway repo.
func fixture(t *testing.T, tgt shipway.DeploymentTarget) (*Pipeline, *toolrun.FakeRunner) {
	t.Helper()
	root := t.TempDir()

	appDir := filepath.Join(root, "app")
	chartDir := filepath.Join(root, "chart")
	envDir := filepath.Join(root, "environments")
	for _, d := range []string{appDir, chartDir, envDir} {
		require.NoError(t, os.Mkdir(d, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(chartDir, "Chart.yaml"),
		[]byte("apiVersion: v2\nname: sample-app\nversion: 0.1.0\n"), 0o644))
	for _, env := range shipway.Environments {
		require.NoError(t, os.WriteFile(filepath.Join(envDir, env+".yaml"), []byte("replicaCount: 1\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(envDir, "eks-"+env+".yaml"),
			[]byte("image:\n  repository: ${ECR_REPO_URI}\n"), 0o644))
	}

	cfg := &config.Config{
		ImageTag:        "latest",
		DeployEnv:       "dev",
		Target:          tgt,
		AppDir:          appDir,
		ChartDir:        chartDir,
		EnvironmentsDir: envDir,
	}
	if tgt == shipway.TargetEKS {
		cfg.AWSRegion = "eu-west-1"
		cfg.AWSAccountID = "123456789012"
		cfg.ECRRepoURI = "123456789012.dkr.ecr.eu-west-1.amazonaws.com/sample-app"
	}

	resolved, err := target.Resolve(cfg)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	fake := &toolrun.FakeRunner{}
	return New(cfg, resolved, stage.New(cfg, resolved, fake, log), log), fake
}

func stageNames(run *shipway.PipelineRun) []string {
	names := make([]string, len(run.Results))
	for i, r := range run.Results {
		names[i] = r.Stage
	}
	return names
}

func TestAllRunsStagesInOrder(t *testing.T) {
	p, _ := fixture(t, shipway.TargetKind)

	require.NoError(t, p.Execute(context.Background(), CommandAll))

	assert.Equal(t, shipway.StageOrder, stageNames(p.Run))
	assert.True(t, p.Run.Succeeded())
	for _, r := range p.Run.Results[4:] {
		assert.Equal(t, "dev", r.Environment)
	}
}

func TestAllFailsFast(t *testing.T) {
	p, fake := fixture(t, shipway.TargetKind)
	fake.FailOn = func(cmd toolrun.Command) error {
		if cmd.Name == "docker" && strings.Contains(cmd.String(), "npm test") {
			return &shipway.ToolError{Tool: "docker", ExitCode: 1, Output: "2 tests failed"}
		}
		return nil
	}

	err := p.Execute(context.Background(), CommandAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage test failed")

	// Lint succeeded, test failed, nothing after test ever ran.
	assert.Equal(t, []string{shipway.StageLint, shipway.StageTest}, stageNames(p.Run))
	assert.False(t, p.Run.Results[1].Succeeded)
	assert.Contains(t, p.Run.Results[1].Output, "2 tests failed")
	assert.Equal(t, 0, fake.CountPrefix("helm"))
}

func TestDeployAllPromotesThroughAllEnvironments(t *testing.T) {
	p, fake := fixture(t, shipway.TargetKind)

	require.NoError(t, p.Execute(context.Background(), CommandDeployAll))

	assert.Equal(t, []string{
		shipway.StageDeploy, shipway.StageHelmTest,
		shipway.StageDeploy, shipway.StageHelmTest,
		shipway.StageDeploy, shipway.StageHelmTest,
	}, stageNames(p.Run))
	envs := make([]string, 0, 6)
	for _, r := range p.Run.Results {
		envs = append(envs, r.Environment)
	}
	assert.Equal(t, []string{"dev", "dev", "staging", "staging", "prod", "prod"}, envs)
	assert.Equal(t, 3, fake.CountPrefix("helm upgrade --install"))
}

// A deploy failure at staging leaves dev deployed and tested, and never
// touches prod. No rollback is attempted.
func TestDeployAllHaltsAtFirstFailingEnvironment(t *testing.T) {
	p, fake := fixture(t, shipway.TargetKind)
	fake.FailOn = func(cmd toolrun.Command) error {
		if strings.HasPrefix(cmd.String(), "helm upgrade --install sample-app-staging") {
			return &shipway.ToolError{Tool: "helm", ExitCode: 1, Output: "timed out waiting for rollout"}
		}
		return nil
	}

	err := p.Execute(context.Background(), CommandDeployAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promotion halted at staging")

	results := p.Run.Results
	require.Len(t, results, 3)
	assert.True(t, results[0].Succeeded, "dev deploy stays applied")
	assert.True(t, results[1].Succeeded, "dev helm-test ran")
	assert.False(t, results[2].Succeeded)
	assert.Equal(t, "staging", results[2].Environment)

	assert.Equal(t, 0, fake.CountPrefix("helm upgrade --install sample-app-prod"), "prod is never attempted")
	assert.Equal(t, 0, fake.CountPrefix("helm uninstall"), "no rollback of earlier environments")
}

func TestExecuteSingleStageUsesConfiguredEnvironment(t *testing.T) {
	p, fake := fixture(t, shipway.TargetKind)

	require.NoError(t, p.Execute(context.Background(), shipway.StageDeploy))

	require.Len(t, fake.Calls, 1)
	assert.Contains(t, fake.Calls[0].Args, "sample-app-dev")
	assert.Equal(t, "dev", p.Run.Results[0].Environment)
}

func TestExecuteUnknownCommand(t *testing.T) {
	p, fake := fixture(t, shipway.TargetKind)

	err := p.Execute(context.Background(), "ship-it")
	require.Error(t, err)

	var cfgErr *shipway.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, fake.Calls)
}

func TestEKSRunUsesOneTargetThroughout(t *testing.T) {
	p, fake := fixture(t, shipway.TargetEKS)
	fake.Stdout = map[string]string{"aws ecr get-login-password": "pw\n"}

	require.NoError(t, p.Execute(context.Background(), CommandAll))

	for _, line := range fake.CommandLines() {
		assert.NotContains(t, line, "localhost:5001", "no mixing of registries mid-run")
	}
	assert.Equal(t, shipway.TargetEKS, p.Run.Target)
}
