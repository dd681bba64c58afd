// Package pipeline sequences the stages. The orchestrator runs the fixed
// order lint -> test -> chart-lint -> build -> deploy -> helm-test for one
// environment and aborts on the first failure; the environment sequencer
// promotes dev -> staging -> prod, halting at the first broken tier without
// touching the ones already deployed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	shipway "github.com/sampleops/shipway"
	"github.com/sampleops/shipway/internal/config"
	"github.com/sampleops/shipway/internal/stage"
	"github.com/sampleops/shipway/internal/target"
)

// Commands beyond the single-stage names.
const (
	CommandAll       = "all"
	CommandDeployAll = "deploy-all"
)

// Pipeline drives stages and records their results.
type Pipeline struct {
	cfg    *config.Config
	tgt    *target.Target
	stages *stage.Stages
	log    *logrus.Logger

	// Run accumulates the results of this invocation.
	Run *shipway.PipelineRun
}

// New builds a pipeline for one run.
func New(cfg *config.Config, tgt *target.Target, stages *stage.Stages, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		tgt:    tgt,
		stages: stages,
		log:    log,
		Run:    shipway.NewPipelineRun(cfg.Target),
	}
}

// Execute runs a single named stage, the full sequence ("all"), or the
// environment sequencer ("deploy-all").
func (p *Pipeline) Execute(ctx context.Context, command string) error {
	switch command {
	case CommandAll:
		return p.All(ctx)
	case CommandDeployAll:
		return p.DeployAll(ctx)
	case shipway.StageLint:
		return p.runStage(ctx, shipway.StageLint, "", p.stages.Lint)
	case shipway.StageTest:
		return p.runStage(ctx, shipway.StageTest, "", p.stages.Test)
	case shipway.StageChartLint:
		return p.runStage(ctx, shipway.StageChartLint, "", p.stages.ChartLint)
	case shipway.StageBuild:
		return p.runStage(ctx, shipway.StageBuild, "", p.stages.Build)
	case shipway.StageDeploy:
		return p.deployEnv(ctx, p.cfg.DeployEnv)
	case shipway.StageHelmTest:
		return p.helmTestEnv(ctx, p.cfg.DeployEnv)
	}
	return &shipway.ConfigError{Var: "command", Reason: fmt.Sprintf("unknown command %q", command)}
}

// All runs the full sequence against the configured environment.
func (p *Pipeline) All(ctx context.Context) error {
	if err := p.runStage(ctx, shipway.StageLint, "", p.stages.Lint); err != nil {
		return err
	}
	if err := p.runStage(ctx, shipway.StageTest, "", p.stages.Test); err != nil {
		return err
	}
	if err := p.runStage(ctx, shipway.StageChartLint, "", p.stages.ChartLint); err != nil {
		return err
	}
	if err := p.runStage(ctx, shipway.StageBuild, "", p.stages.Build); err != nil {
		return err
	}
	if err := p.deployEnv(ctx, p.cfg.DeployEnv); err != nil {
		return err
	}
	return p.helmTestEnv(ctx, p.cfg.DeployEnv)
}

// DeployAll promotes through every environment in order, deploy then
// helm-test each. The first failure halts the sequence; already-deployed
// environments are left running so they can be fixed forward or rolled back
// individually.
func (p *Pipeline) DeployAll(ctx context.Context) error {
	for _, env := range shipway.Environments {
		if err := p.deployEnv(ctx, env); err != nil {
			return fmt.Errorf("promotion halted at %s: %w", env, err)
		}
		if err := p.helmTestEnv(ctx, env); err != nil {
			return fmt.Errorf("promotion halted at %s: %w", env, err)
		}
	}
	return nil
}

func (p *Pipeline) deployEnv(ctx context.Context, env string) error {
	return p.runStage(ctx, shipway.StageDeploy, env, func(ctx context.Context) error {
		return p.stages.Deploy(ctx, env)
	})
}

func (p *Pipeline) helmTestEnv(ctx context.Context, env string) error {
	return p.runStage(ctx, shipway.StageHelmTest, env, func(ctx context.Context) error {
		return p.stages.HelmTest(ctx, env)
	})
}

// runStage executes one stage, records its result, and wraps any failure
// with stage context.
func (p *Pipeline) runStage(ctx context.Context, name, env string, fn func(context.Context) error) error {
	fields := logrus.Fields{"run": p.Run.ID, "stage": name}
	if env != "" {
		fields["environment"] = env
	}
	p.log.WithFields(fields).Info("stage starting")

	start := time.Now()
	err := fn(ctx)

	res := shipway.StageResult{
		Stage:       name,
		Environment: env,
		Succeeded:   err == nil,
		Duration:    time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		var toolErr *shipway.ToolError
		if errors.As(err, &toolErr) {
			res.Output = toolErr.Output
		}
	}
	p.Run.Record(res)

	if err != nil {
		p.log.WithFields(fields).WithError(err).Error("stage failed")
		return fmt.Errorf("stage %s failed: %w", name, err)
	}
	p.log.WithFields(fields).WithField("duration", res.Duration.Round(time.Millisecond)).Info("stage finished")
	return nil
}
