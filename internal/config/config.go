// Package config builds the immutable run configuration from the process
// environment. It is constructed once in main and passed by reference to every
// component; nothing reads ambient environment variables after startup.
package config

import (
	"os"

	shipway "github.com/sampleops/shipway"
)

// Defaults for the repository layout the pipeline operates on.
const (
	DefaultAppDir          = "app"
	DefaultChartDir        = "chart"
	DefaultEnvironmentsDir = "environments"
)

// Config is the full configuration of one pipeline run.
type Config struct {
	// ImageTag tags the built image and chart artifact. IMAGE_TAG, default
	// "latest".
	ImageTag string
	// DeployEnv is the environment used by single-environment deploy and
	// helm-test. DEPLOY_ENV, default "dev".
	DeployEnv string
	// Target selects kind or EKS. DEPLOYMENT_TARGET, default kind.
	Target shipway.DeploymentTarget

	// AWSRegion, AWSAccountID and ECRRepoURI are required when Target is
	// EKS and ignored on kind.
	AWSRegion    string
	AWSAccountID string
	ECRRepoURI   string

	// AppDir, ChartDir and EnvironmentsDir locate the application source,
	// the Helm chart, and the values overlays relative to the working
	// directory.
	AppDir          string
	ChartDir        string
	EnvironmentsDir string
}

// FromEnv reads the environment once and validates the result. An EKS target
// without its registry coordinates fails here, before any external call.
func FromEnv() (*Config, error) {
	target, err := shipway.ParseDeploymentTarget(envOr("DEPLOYMENT_TARGET", string(shipway.TargetKind)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ImageTag:        envOr("IMAGE_TAG", "latest"),
		DeployEnv:       envOr("DEPLOY_ENV", "dev"),
		Target:          target,
		AWSRegion:       os.Getenv("AWS_REGION"),
		AWSAccountID:    os.Getenv("AWS_ACCOUNT_ID"),
		ECRRepoURI:      os.Getenv("ECR_REPO_URI"),
		AppDir:          DefaultAppDir,
		ChartDir:        DefaultChartDir,
		EnvironmentsDir: DefaultEnvironmentsDir,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if !shipway.KnownEnvironment(c.DeployEnv) {
		return &shipway.ConfigError{Var: "DEPLOY_ENV", Reason: "unknown environment " + c.DeployEnv}
	}
	if c.Target == shipway.TargetEKS {
		switch {
		case c.ECRRepoURI == "":
			return &shipway.ConfigError{Var: "ECR_REPO_URI", Reason: "required when DEPLOYMENT_TARGET=eks"}
		case c.AWSRegion == "":
			return &shipway.ConfigError{Var: "AWS_REGION", Reason: "required when DEPLOYMENT_TARGET=eks"}
		case c.AWSAccountID == "":
			return &shipway.ConfigError{Var: "AWS_ACCOUNT_ID", Reason: "required when DEPLOYMENT_TARGET=eks"}
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
