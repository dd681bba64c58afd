// Package target derives every target-dependent name used by the pipeline:
// registry host, image reference, chart OCI references, values-file paths,
// namespaces and release names. Derivation is pure; all branching on the
// deployment target lives here so the stages stay target-agnostic.
package target

import (
	"fmt"
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	shipway "github.com/sampleops/shipway"
	"github.com/sampleops/shipway/internal/config"
)

// AppName is the application and chart name. Release names are derived from
// it per environment.
const AppName = "sample-app"

// KindRegistry is the registry co-located with the local kind cluster.
const KindRegistry = "localhost:5001"

// Target holds the resolved, target-specific coordinates for one run. All
// fields are pure functions of the configuration; nothing here mutates.
type Target struct {
	// Kind of substrate this run deploys to.
	Kind shipway.DeploymentTarget
	// Registry is the registry host, e.g. "localhost:5001" or
	// "123456789012.dkr.ecr.eu-west-1.amazonaws.com".
	Registry string
	// ImageRepo is the image repository without a tag.
	ImageRepo string
	// ImageRef is the fully qualified image reference including the tag.
	ImageRef string
	// ChartPushRef is the OCI path charts are pushed to.
	ChartPushRef string
	// ChartRef is the OCI reference charts are installed from.
	ChartRef string
	// AWSRegion is set on EKS for registry authentication.
	AWSRegion string

	environmentsDir string
}

// Resolve derives the Target from the configuration. EKS without a repository
// URI never gets here; config validation rejects it first.
func Resolve(cfg *config.Config) (*Target, error) {
	t := &Target{
		Kind:            cfg.Target,
		AWSRegion:       cfg.AWSRegion,
		environmentsDir: cfg.EnvironmentsDir,
	}

	switch cfg.Target {
	case shipway.TargetKind:
		t.Registry = KindRegistry
		t.ImageRepo = KindRegistry + "/" + AppName
	case shipway.TargetEKS:
		host, _, ok := strings.Cut(cfg.ECRRepoURI, "/")
		if !ok {
			return nil, &shipway.ConfigError{Var: "ECR_REPO_URI", Reason: fmt.Sprintf("%q is not a registry/repository URI", cfg.ECRRepoURI)}
		}
		t.Registry = host
		t.ImageRepo = cfg.ECRRepoURI
	default:
		return nil, &shipway.ConfigError{Var: "DEPLOYMENT_TARGET", Reason: "unknown target " + string(cfg.Target)}
	}

	t.ImageRef = t.ImageRepo + ":" + cfg.ImageTag
	t.ChartPushRef = "oci://" + t.Registry + "/charts"
	t.ChartRef = t.ChartPushRef + "/" + AppName

	for _, env := range shipway.Environments {
		if errs := validation.IsDNS1123Label(t.ReleaseName(env)); len(errs) > 0 {
			return nil, &shipway.ConfigError{Var: "release", Reason: strings.Join(errs, "; ")}
		}
	}
	return t, nil
}

// ValuesFile maps an environment name to its overlay path:
// environments/<env>.yaml on kind, environments/eks-<env>.yaml on EKS.
func (t *Target) ValuesFile(env string) string {
	name := env + ".yaml"
	if t.Kind == shipway.TargetEKS {
		name = "eks-" + name
	}
	return filepath.Join(t.environmentsDir, name)
}

// Namespace returns the namespace for an environment. Kind deployments use
// the current context's namespace and return "".
func (t *Target) Namespace(env string) string {
	if t.Kind == shipway.TargetEKS {
		return env
	}
	return ""
}

// ReleaseName returns the Helm release name for an environment. Releases are
// named per environment on both targets so deploy-all can promote through all
// tiers of a single cluster.
func (t *Target) ReleaseName(env string) string {
	return AppName + "-" + env
}

// IsEKS reports whether this run targets EKS.
func (t *Target) IsEKS() bool {
	return t.Kind == shipway.TargetEKS
}
