package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
	"github.com/momentics/scratchspace/facade"
	"github.com/momentics/scratchspace/internal/printer"
)

var inspectFlags inspectOptions

type inspectOptions struct {
	Probes   int           // evaluations run before dumping
	Watch    bool          // keep running and follow --config changes
	Debounce time.Duration // quiet period before a reload under --watch
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Build an engine and dump its pool and control state",
	Long: `Builds the engine described by --config, runs --probes short
evaluations through the pool and prints the debug probes.

With --watch the engine keeps running and reloads --config whenever the
file changes; a new pool.capacity is applied to the live pool and the
state is printed again. Stop with Ctrl-C.`,
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.IntVar(&inspectFlags.Probes, "probes", 3, "evaluations to run before dumping state")
	f.BoolVar(&inspectFlags.Watch, "watch", false, "follow changes to --config")
	f.DurationVar(&inspectFlags.Debounce, "debounce", 200*time.Millisecond, "quiet period after a config change before reloading")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), nil)
	}
	if inspectFlags.Watch && configPath == "" {
		return printer.Error("Nothing to watch", "--watch needs a config file", []string{
			"Pass the file with --config",
		})
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = inspect(ctx, cfg, logger, configPath, inspectFlags, func(state map[string]any) {
		printer.Table("state", state)
	})
	if err != nil {
		return printer.Error("Inspect failed", err.Error(), nil)
	}
	return nil
}

// inspect runs the probe evaluations and reports the engine state through
// report, once up front and again after every accepted reload when watching.
// A watch ends cleanly when ctx is cancelled.
func inspect(ctx context.Context, cfg *control.FileConfig, logger api.Logger, path string, opts inspectOptions, report func(map[string]any)) error {
	engine, err := facade.New(&facade.Config{File: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer engine.Shutdown()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	for i := 0; i < opts.Probes; i++ {
		err := engine.Evaluate(ctx, func(ctx context.Context, w api.Workspace) error {
			st, ok := w.(api.Store)
			if !ok {
				return nil
			}
			return st.Put(ctx, fmt.Sprintf("probe/%d", i), []byte("ok"))
		})
		if err != nil {
			return fmt.Errorf("probe %d: %w", i, err)
		}
	}

	snapshot := func() map[string]any {
		engine.PublishMetrics()
		return engine.Control().Stats()
	}
	report(snapshot())
	if !opts.Watch {
		return nil
	}

	w := control.NewWatcher(path, opts.Debounce,
		func(next *control.FileConfig) {
			if err := engine.ApplyFile(next); err != nil {
				logger.Warn("config reload rejected", "path", path, "error", err)
				return
			}
			logger.Info("config reloaded", "path", path, "capacity", engine.Pool().Capacity())
			report(snapshot())
		},
		func(err error) {
			logger.Warn("config reload failed", "path", path, "error", err)
		})
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
