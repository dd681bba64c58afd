// Command shipway drives the sample-app delivery pipeline against a local
// kind cluster or EKS.
//
// Usage:
//
//	shipway              Run the full pipeline for DEPLOY_ENV
//	shipway build        Run a single stage
//	shipway deploy-all   Promote dev -> staging -> prod
//	shipway watch        Re-run the static stages on file changes
//
// Configuration comes from the environment: IMAGE_TAG, DEPLOY_ENV,
// DEPLOYMENT_TARGET (kind|eks), and on EKS additionally AWS_REGION,
// AWS_ACCOUNT_ID and ECR_REPO_URI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	shipway "github.com/sampleops/shipway"
	"github.com/sampleops/shipway/internal/pipeline"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shipway [stage]",
		Short: "Drive the sample-app delivery pipeline",
		Long: `shipway lints, tests, builds and deploys the sample-app Helm service.

Stages run in a fixed order and the run aborts at the first failure:

    lint -> test -> chart-lint -> build -> deploy -> helm-test

Run with no arguments to execute the full sequence for DEPLOY_ENV, or name a
single stage for standalone execution.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCommand(cmd.Context(), pipeline.CommandAll)
		},
	}

	rootCmd.AddCommand(
		newStageCmd(shipway.StageLint, "Lint the application source in an ephemeral node container"),
		newStageCmd(shipway.StageTest, "Run the application test suite in an ephemeral node container"),
		newStageCmd(shipway.StageChartLint, "Lint the chart with defaults and every environment overlay"),
		newStageCmd(shipway.StageBuild, "Build and push the image, package and push the chart"),
		newStageCmd(shipway.StageDeploy, "Upgrade-or-install the release for DEPLOY_ENV"),
		newStageCmd(shipway.StageHelmTest, "Run the in-cluster connectivity test for DEPLOY_ENV"),
		newAllCmd(),
		newDeployAllCmd(),
		newGraphCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
