// Package stage implements the six pipeline stages. Each stage builds argv
// lists for the external tools and runs them through toolrun; a nonzero exit
// anywhere fails the stage with the tool's output attached. No stage retries.
package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	shipway "github.com/sampleops/shipway"
	"github.com/sampleops/shipway/internal/config"
	"github.com/sampleops/shipway/internal/target"
	"github.com/sampleops/shipway/internal/toolrun"
	"github.com/sampleops/shipway/internal/values"
)

// NodeImage is the ephemeral container lint and test run in.
const NodeImage = "node:20-alpine"

// Helm waits this long for a rollout before giving up.
const DeployTimeout = "120s"

// Helm waits this long for the in-cluster connectivity test.
const HelmTestTimeout = "60s"

// Stages runs individual pipeline stages against a resolved target.
type Stages struct {
	cfg   *config.Config
	tgt   *target.Target
	tools toolrun.Runner
	log   *logrus.Logger
}

// New wires a stage runner. The toolrun.Runner is the only side-effecting
// dependency; tests pass a FakeRunner.
func New(cfg *config.Config, tgt *target.Target, tools toolrun.Runner, log *logrus.Logger) *Stages {
	return &Stages{cfg: cfg, tgt: tgt, tools: tools, log: log}
}

// Lint runs eslint over the application source inside an ephemeral node
// container.
func (s *Stages) Lint(ctx context.Context) error {
	return s.runInNode(ctx, "npm ci --no-audit --no-fund && npm run lint")
}

// Test runs the application test suite inside an ephemeral node container
// with dependencies installed.
func (s *Stages) Test(ctx context.Context) error {
	return s.runInNode(ctx, "npm ci --no-audit --no-fund && npm test")
}

func (s *Stages) runInNode(ctx context.Context, script string) error {
	appDir, err := filepath.Abs(s.cfg.AppDir)
	if err != nil {
		return err
	}
	_, err = s.tools.Run(ctx, toolrun.Command{
		Name: "docker",
		Args: []string{
			"run", "--rm",
			"-v", appDir + ":/app",
			"-w", "/app",
			NodeImage,
			"sh", "-c", script,
		},
	})
	return err
}

// ChartLint validates the chart once with its defaults, then once per
// discovered environment overlay. Any failing overlay aborts the stage;
// adding an overlay file grows the matrix by exactly one run.
func (s *Stages) ChartLint(ctx context.Context) error {
	if _, err := s.tools.Run(ctx, toolrun.Command{Name: "helm", Args: []string{"lint", s.cfg.ChartDir}}); err != nil {
		return err
	}

	overlays, err := values.Discover(s.cfg.EnvironmentsDir)
	if err != nil {
		return err
	}
	for _, overlay := range overlays {
		if err := values.CheckWellFormed(overlay); err != nil {
			return err
		}
		if _, err := s.tools.Run(ctx, toolrun.Command{
			Name: "helm",
			Args: []string{"lint", s.cfg.ChartDir, "--values", overlay},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Build produces and publishes both artifacts: the container image and the
// packaged chart. On EKS, docker and helm authenticate to ECR before either
// push.
func (s *Stages) Build(ctx context.Context) error {
	if _, err := s.tools.Run(ctx, toolrun.Command{
		Name: "docker",
		Args: []string{"build", "-t", s.tgt.ImageRef, s.cfg.AppDir},
	}); err != nil {
		return err
	}

	if s.tgt.IsEKS() {
		if err := s.registryLogin(ctx); err != nil {
			return err
		}
	}

	if _, err := s.tools.Run(ctx, toolrun.Command{
		Name: "docker",
		Args: []string{"push", s.tgt.ImageRef},
	}); err != nil {
		return err
	}

	meta, err := values.ReadChartMeta(s.cfg.ChartDir)
	if err != nil {
		return err
	}

	dist, err := os.MkdirTemp("", "shipway-dist-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dist) }()

	if _, err := s.tools.Run(ctx, toolrun.Command{
		Name: "helm",
		Args: []string{"package", s.cfg.ChartDir, "--destination", dist, "--app-version", s.cfg.ImageTag},
	}); err != nil {
		return err
	}

	archive := filepath.Join(dist, meta.Name+"-"+meta.Version+".tgz")
	_, err = s.tools.Run(ctx, toolrun.Command{
		Name: "helm",
		Args: []string{"push", archive, s.tgt.ChartPushRef},
	})
	return err
}

// registryLogin authenticates docker and helm to ECR with a short-lived
// password from the aws CLI.
func (s *Stages) registryLogin(ctx context.Context) error {
	res, err := s.tools.Run(ctx, toolrun.Command{
		Name: "aws",
		Args: []string{"ecr", "get-login-password", "--region", s.tgt.AWSRegion},
	})
	if err != nil {
		return err
	}
	password := strings.TrimSpace(res.Stdout)

	if _, err := s.tools.Run(ctx, toolrun.Command{
		Name:  "docker",
		Args:  []string{"login", "--username", "AWS", "--password-stdin", s.tgt.Registry},
		Stdin: password,
	}); err != nil {
		return err
	}
	_, err = s.tools.Run(ctx, toolrun.Command{
		Name:  "helm",
		Args:  []string{"registry", "login", s.tgt.Registry, "--username", "AWS", "--password-stdin"},
		Stdin: password,
	})
	return err
}

// Deploy upgrades or installs the release for one environment. Re-running
// with the same environment and tag is a no-op upgrade, never an
// "already exists" failure.
func (s *Stages) Deploy(ctx context.Context, env string) error {
	valuesFile := s.tgt.ValuesFile(env)
	if _, err := os.Stat(valuesFile); err != nil {
		return &shipway.ConfigError{Var: "values", Reason: "no overlay for environment " + env + ": " + err.Error()}
	}

	if s.tgt.IsEKS() {
		substituted, err := values.SubstituteRepoURI(valuesFile, s.cfg.ECRRepoURI)
		if err != nil {
			return err
		}
		defer func() { _ = os.Remove(substituted) }()
		valuesFile = substituted

		if err := s.ensureNamespace(ctx, s.tgt.Namespace(env)); err != nil {
			return err
		}
	}

	args := []string{
		"upgrade", "--install", s.tgt.ReleaseName(env), s.tgt.ChartRef,
		"--values", valuesFile,
		"--set", "image.repository=" + s.tgt.ImageRepo,
		"--set", "image.tag=" + s.cfg.ImageTag,
		"--wait", "--timeout", DeployTimeout,
	}
	if ns := s.tgt.Namespace(env); ns != "" {
		args = append(args, "--namespace", ns)
	}

	s.log.WithFields(logrus.Fields{"environment": env, "release": s.tgt.ReleaseName(env)}).Info("deploying")
	_, err := s.tools.Run(ctx, toolrun.Command{Name: "helm", Args: args})
	return err
}

// ensureNamespace creates the namespace only when it is missing, so repeated
// deploys never trip over an existing one.
func (s *Stages) ensureNamespace(ctx context.Context, ns string) error {
	if _, err := s.tools.Run(ctx, toolrun.Command{
		Name: "kubectl",
		Args: []string{"get", "namespace", ns},
	}); err == nil {
		return nil
	}
	_, err := s.tools.Run(ctx, toolrun.Command{
		Name: "kubectl",
		Args: []string{"create", "namespace", ns},
	})
	return err
}

// HelmTest runs the chart's in-cluster connectivity test for one environment.
func (s *Stages) HelmTest(ctx context.Context, env string) error {
	args := []string{"test", s.tgt.ReleaseName(env), "--timeout", HelmTestTimeout}
	if ns := s.tgt.Namespace(env); ns != "" {
		args = append(args, "--namespace", ns)
	}
	_, err := s.tools.Run(ctx, toolrun.Command{Name: "helm", Args: args})
	return err
}
