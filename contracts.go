// Package shipway defines the shared contracts of the sample-app delivery
// pipeline.
//
// The shipway CLI drives a fixed sequence of stages against either a local
// kind cluster or an EKS cluster:
//
//	lint -> test -> chart-lint -> build -> deploy -> helm-test
//
// The types in this package describe what a run produced: which stages ran,
// whether they succeeded, and which environment each deploy targeted. The
// actual work is delegated to external tools (docker, helm, kubectl, aws);
// shipway only decides what to invoke, with which arguments, and in what
// order.
package shipway

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeploymentTarget selects the execution substrate for a whole run: the local
// kind cluster with its co-located registry, or an EKS cluster backed by ECR.
// Exactly one target governs a run; it is chosen at startup and never changes.
type DeploymentTarget string

const (
	// TargetKind deploys to the local kind cluster and pushes artifacts to
	// the local OCI registry.
	TargetKind DeploymentTarget = "kind"
	// TargetEKS deploys to EKS and pushes artifacts to ECR.
	TargetEKS DeploymentTarget = "eks"
)

// ParseDeploymentTarget validates a target string from the environment.
func ParseDeploymentTarget(s string) (DeploymentTarget, error) {
	switch DeploymentTarget(s) {
	case TargetKind, TargetEKS:
		return DeploymentTarget(s), nil
	}
	return "", &ConfigError{Var: "DEPLOYMENT_TARGET", Reason: fmt.Sprintf("unknown target %q (want kind or eks)", s)}
}

// Stage names, in pipeline order.
const (
	StageLint      = "lint"
	StageTest      = "test"
	StageChartLint = "chart-lint"
	StageBuild     = "build"
	StageDeploy    = "deploy"
	StageHelmTest  = "helm-test"
)

// StageOrder is the fixed execution order of a full run. There are no cycles,
// no concurrent stages, and no reentry.
var StageOrder = []string{StageLint, StageTest, StageChartLint, StageBuild, StageDeploy, StageHelmTest}

// Environments is the promotion order used by deploy-all. A failure in any
// environment halts the sequence; earlier environments stay deployed.
var Environments = []string{"dev", "staging", "prod"}

// KnownEnvironment reports whether name is one of the promotion tiers.
func KnownEnvironment(name string) bool {
	for _, e := range Environments {
		if e == name {
			return true
		}
	}
	return false
}

// StageResult records one stage invocation.
type StageResult struct {
	// Stage is the stage name (see the Stage* constants).
	Stage string `json:"stage"`
	// Environment is set for deploy and helm-test, empty otherwise.
	Environment string `json:"environment,omitempty"`
	// Succeeded is true when every underlying tool exited zero.
	Succeeded bool `json:"succeeded"`
	// Output is the captured tool output of a failed stage. Successful
	// stages stream their output and leave this empty.
	Output string `json:"output,omitempty"`
	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
	// Duration is the wall-clock time of the stage.
	Duration time.Duration `json:"duration"`
}

// PipelineRun is the ordered record of one CLI invocation. The run terminates
// at the first failed stage; there is no partial retry.
type PipelineRun struct {
	ID      string           `json:"id"`
	Target  DeploymentTarget `json:"target"`
	Started time.Time        `json:"started"`
	Results []StageResult    `json:"results"`
}

// NewPipelineRun starts an empty run record for the given target.
func NewPipelineRun(target DeploymentTarget) *PipelineRun {
	return &PipelineRun{
		ID:      uuid.NewString(),
		Target:  target,
		Started: time.Now(),
	}
}

// Record appends a stage result and returns it.
func (r *PipelineRun) Record(res StageResult) StageResult {
	r.Results = append(r.Results, res)
	return res
}

// Succeeded reports whether every recorded stage succeeded.
func (r *PipelineRun) Succeeded() bool {
	for _, res := range r.Results {
		if !res.Succeeded {
			return false
		}
	}
	return true
}

// ConfigError reports invalid or missing configuration. It is raised before
// any external tool is invoked.
type ConfigError struct {
	// Var is the environment variable or setting at fault.
	Var string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Var, e.Reason)
}

// ToolError reports a delegated command that exited nonzero. The captured
// output is surfaced verbatim so the tool's own diagnostics reach the user.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}
