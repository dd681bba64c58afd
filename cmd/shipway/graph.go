package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sampleops/shipway/internal/graph"
)

func newGraphCmd() *cobra.Command {
	var (
		outputFormat string
		allEnvs      bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of the pipeline stages",
		Long: `Generate a DOT or Mermaid format graph of the stage sequence.

The output can be rendered with Graphviz:
    shipway graph | dot -Tpng -o pipeline.png

Or used in GitHub markdown (Mermaid format):
    shipway graph -f mermaid

Examples:
    shipway graph
    shipway graph --all-envs          # show the deploy-all promotion chain
    shipway graph -f mermaid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(outputFormat, allEnvs)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVar(&allEnvs, "all-envs", false, "Expand the deploy tail into the promotion chain")

	return cmd
}

func runGraph(format string, allEnvs bool) error {
	var graphFormat graph.Format
	switch format {
	case "dot":
		graphFormat = graph.FormatDOT
	case "mermaid":
		graphFormat = graph.FormatMermaid
	default:
		return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
	}

	gen := &graph.Generator{
		Format:             graphFormat,
		ExpandEnvironments: allEnvs,
	}
	return gen.Generate(os.Stdout)
}
