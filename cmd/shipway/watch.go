package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sampleops/shipway/internal/config"
	"github.com/sampleops/shipway/internal/stage"
	"github.com/sampleops/shipway/internal/target"
	"github.com/sampleops/shipway/internal/toolrun"
)

// newWatchCmd creates the "watch" subcommand for re-running the static stages
// on file changes.
func newWatchCmd() *cobra.Command {
	var (
		chartOnly bool
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run lint and chart-lint on file changes",
		Long: `Watch monitors the application source, the chart, and the environment
overlays, and re-runs the static stages on each change:

- chart-lint on every change
- lint (containerized eslint) unless --chart-only
- Debounces rapid changes to avoid redundant runs

Examples:
    shipway watch
    shipway watch --chart-only
    shipway watch --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), watchOptions{
				chartOnly: chartOnly,
				debounce:  debounce,
			})
		},
	}

	cmd.Flags().BoolVar(&chartOnly, "chart-only", false, "Only run chart-lint, skip the containerized lint")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")

	return cmd
}

type watchOptions struct {
	chartOnly bool
	debounce  time.Duration
}

// runWatch monitors the pipeline inputs and re-runs the static stages.
func runWatch(ctx context.Context, opts watchOptions) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	tgt, err := target.Resolve(cfg)
	if err != nil {
		return err
	}
	log := newLogger()
	stages := stage.New(cfg, tgt, &toolrun.ExecRunner{Stream: true, Log: log}, log)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	for _, dir := range []string{cfg.AppDir, cfg.ChartDir, cfg.EnvironmentsDir} {
		if err := addDirRecursive(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		fmt.Printf("Watching: %s\n", dir)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Running initial checks...")
	runChecks(ctx, stages, opts)

	var debounceTimer *time.Timer
	recheckChan := make(chan struct{}, 1)

	fmt.Println("\nWatching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !relevantChange(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}

			// Debounce: reset timer on each change.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case recheckChan <- struct{}{}:
				default:
				}
			})

		case <-recheckChan:
			fmt.Printf("\n[%s] Change detected, re-running checks...\n", time.Now().Format("15:04:05"))
			runChecks(ctx, stages, opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-sigChan:
			fmt.Println("\nStopping watch...")
			return nil
		}
	}
}

// relevantChange filters events down to pipeline inputs: source, chart
// templates, and values overlays.
func relevantChange(path string) bool {
	switch filepath.Ext(path) {
	case ".js", ".mjs", ".json", ".yaml", ".yml", ".tpl":
		return !strings.Contains(path, "node_modules")
	}
	return false
}

// addDirRecursive adds a directory and all subdirectories to the watcher.
func addDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			if filepath.Base(path) == "node_modules" {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// runChecks runs chart-lint and optionally lint, reporting but not exiting on
// failure so the watch loop keeps going.
func runChecks(ctx context.Context, stages *stage.Stages, opts watchOptions) {
	if err := stages.ChartLint(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chart-lint failed: %v\n", err)
		return
	}
	fmt.Println("chart-lint passed")

	if opts.chartOnly {
		return
	}

	if err := stages.Lint(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lint failed: %v\n", err)
		return
	}
	fmt.Println("lint passed")
}
