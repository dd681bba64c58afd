// Package values handles the environment overlay files: discovery for
// chart-lint, well-formedness checks, and the ECR placeholder substitution
// performed before an EKS deploy.
package values

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	shipway "github.com/sampleops/shipway"
)

// RepoURIToken is the placeholder EKS overlays carry for the image
// repository; deploy replaces it with the real ECR URI.
const RepoURIToken = "${ECR_REPO_URI}"

// Discover lists every values overlay in dir, sorted by name. Each discovered
// file is linted once by chart-lint, so adding an overlay grows the lint
// matrix without code changes.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &shipway.ConfigError{Var: "environments", Reason: fmt.Sprintf("reading %s: %v", dir, err)}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// CheckWellFormed parses the file as YAML and fails on syntax errors.
func CheckWellFormed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &shipway.ConfigError{Var: "values", Reason: err.Error()}
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// SubstituteRepoURI writes a copy of the overlay with every occurrence of
// RepoURIToken replaced by repoURI, and returns the temp file path. The
// caller removes the file when the deploy finishes. The substituted document
// is re-parsed so a malformed result never reaches helm.
func SubstituteRepoURI(path, repoURI string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &shipway.ConfigError{Var: "values", Reason: err.Error()}
	}

	substituted := strings.ReplaceAll(string(data), RepoURIToken, repoURI)

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(substituted), &doc); err != nil {
		return "", fmt.Errorf("substituted values %s are not valid YAML: %w", path, err)
	}

	f, err := os.CreateTemp("", "shipway-values-*.yaml")
	if err != nil {
		return "", fmt.Errorf("creating temp values file: %w", err)
	}
	if _, err := f.WriteString(substituted); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing temp values file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// ChartMeta is the subset of Chart.yaml the build stage needs to locate the
// packaged artifact.
type ChartMeta struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ReadChartMeta parses <chartDir>/Chart.yaml.
func ReadChartMeta(chartDir string) (ChartMeta, error) {
	var meta ChartMeta
	data, err := os.ReadFile(filepath.Join(chartDir, "Chart.yaml"))
	if err != nil {
		return meta, &shipway.ConfigError{Var: "chart", Reason: err.Error()}
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parsing Chart.yaml: %w", err)
	}
	if meta.Name == "" || meta.Version == "" {
		return meta, &shipway.ConfigError{Var: "chart", Reason: "Chart.yaml is missing name or version"}
	}
	return meta, nil
}
