package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/conneroisu/glit/internal/logging"
	"github.com/conneroisu/glit/internal/scenario"
)

// ResultFunc receives the outcome of every scenario run. result is nil when
// the scenario could not be loaded or set up.
type ResultFunc func(result *scenario.Result, err error)

// ScenarioHandler returns a handler that reloads the scenario at path and
// runs it with runner whenever a batch touches the file.
func ScenarioHandler(path string, runner *scenario.Runner, onResult ResultFunc) ChangeHandler {
	watched := path
	if abs, err := filepath.Abs(path); err == nil {
		watched = abs
	}
	match := PathFilter(watched)
	return func(ctx context.Context, events []ChangeEvent) error {
		for _, e := range events {
			if match(e.Path) {
				return runScenario(ctx, path, runner, onResult)
			}
		}
		return nil
	}
}

func runScenario(ctx context.Context, path string, runner *scenario.Runner, onResult ResultFunc) error {
	s, err := scenario.Load(path)
	if err != nil {
		onResult(nil, err)
		return err
	}
	result, err := runner.Run(ctx, s)
	onResult(result, err)
	return err
}

// Watch runs the scenario at path once, then again after every change,
// until ctx is done. Load and run errors of reruns are reported to onResult
// and logged; only the watcher setup can make Watch fail.
func Watch(
	ctx context.Context,
	path string,
	debounce time.Duration,
	runner *scenario.Runner,
	logger logging.Logger,
	onResult ResultFunc,
) error {
	fw, err := NewFileWatcher(debounce, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	if err := fw.AddFile(path); err != nil {
		return err
	}
	fw.AddFilter(NoEditorTempFilter)
	fw.AddHandler(ScenarioHandler(path, runner, onResult))

	if err := fw.Start(ctx); err != nil {
		return err
	}
	_ = runScenario(ctx, path, runner, onResult)

	<-ctx.Done()
	return nil
}
