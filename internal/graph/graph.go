// Package graph renders the pipeline stage sequence in DOT or Mermaid format.
package graph

import (
	"io"

	"github.com/emicklei/dot"

	shipway "github.com/sampleops/shipway"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator renders the stage graph.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ExpandEnvironments fans the deploy/helm-test tail out into the
	// promotion chain dev -> staging -> prod, as run by deploy-all.
	ExpandEnvironments bool
}

// Generate writes the graph to w.
func (g *Generator) Generate(w io.Writer) error {
	graph := g.build()

	format := g.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := w.Write([]byte(output))
	return err
}

func (g *Generator) build() *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	static := []string{shipway.StageLint, shipway.StageTest, shipway.StageChartLint, shipway.StageBuild}

	prev := graph.Node(static[0])
	for _, name := range static[1:] {
		n := graph.Node(name)
		graph.Edge(prev, n)
		prev = n
	}

	if !g.ExpandEnvironments {
		deploy := graph.Node(shipway.StageDeploy)
		graph.Edge(prev, deploy)
		graph.Edge(deploy, graph.Node(shipway.StageHelmTest))
		return graph
	}

	for _, env := range shipway.Environments {
		deploy := graph.Node(shipway.StageDeploy + " " + env)
		test := graph.Node(shipway.StageHelmTest + " " + env)
		graph.Edge(prev, deploy)
		graph.Edge(deploy, test)
		prev = test
	}
	return graph
}
