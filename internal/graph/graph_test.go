package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, g *Generator) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, g.Generate(&sb))
	return sb.String()
}

func TestGenerateDOT(t *testing.T) {
	out := render(t, &Generator{})

	assert.Contains(t, out, "digraph")
	for _, name := range []string{"lint", "test", "chart-lint", "build", "deploy", "helm-test"} {
		assert.Contains(t, out, `"`+name+`"`)
	}
}

func TestGenerateExpandedEnvironments(t *testing.T) {
	out := render(t, &Generator{ExpandEnvironments: true})

	assert.Contains(t, out, "deploy dev")
	assert.Contains(t, out, "deploy staging")
	assert.Contains(t, out, "deploy prod")
	assert.Contains(t, out, "helm-test prod")
	assert.NotContains(t, out, `"deploy"`)
}

func TestGenerateMermaid(t *testing.T) {
	out := render(t, &Generator{Format: FormatMermaid})

	assert.Contains(t, out, "graph TD")
	assert.NotContains(t, out, "digraph")
}
