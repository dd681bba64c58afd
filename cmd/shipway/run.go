package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sampleops/shipway/internal/config"
	"github.com/sampleops/shipway/internal/pipeline"
	"github.com/sampleops/shipway/internal/stage"
	"github.com/sampleops/shipway/internal/target"
	"github.com/sampleops/shipway/internal/toolrun"
)

// newLogger configures the run logger. SHIPWAY_DEBUG=1 turns on command
// echoing.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debugEnabled() {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func debugEnabled() bool {
	v := os.Getenv("SHIPWAY_DEBUG")
	return v != "" && v != "0" && v != "false"
}

// buildPipeline constructs the whole run wiring: config from the environment,
// resolved target, streaming executor, stages, pipeline.
func buildPipeline() (*pipeline.Pipeline, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	tgt, err := target.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	log := newLogger()
	tools := &toolrun.ExecRunner{Stream: true, Log: log}
	stages := stage.New(cfg, tgt, tools, log)
	return pipeline.New(cfg, tgt, stages, log), nil
}

// runPipelineCommand is the shared entry point of every stage subcommand.
func runPipelineCommand(ctx context.Context, command string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	return p.Execute(ctx, command)
}

// newStageCmd builds the subcommand for one standalone stage.
func newStageCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCommand(cmd.Context(), name)
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the full pipeline for DEPLOY_ENV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCommand(cmd.Context(), pipeline.CommandAll)
		},
	}
}

func newDeployAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-all",
		Short: "Deploy and test every environment in promotion order",
		Long: `Deploy-all promotes through dev, staging and prod in order, running deploy
and helm-test for each. The first failure halts the sequence; environments
already deployed are left running for fix-forward or a targeted rollback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCommand(cmd.Context(), pipeline.CommandDeployAll)
		},
	}
}
