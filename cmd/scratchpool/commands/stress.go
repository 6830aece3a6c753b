package commands

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
	"github.com/momentics/scratchspace/facade"
	"github.com/momentics/scratchspace/internal/printer"
	"github.com/momentics/scratchspace/pool"
)

var stressFlags stressOptions

// stressOptions shapes one workload run.
type stressOptions struct {
	Workers       int
	Ops           int           // leases per worker
	Writes        int           // keys written into each workspace
	Hold          time.Duration // time a lease is held
	Rate          float64       // leases per second across all workers, 0 = unlimited
	LeakEvery     int           // skip the release of every Nth lease, 0 = never
	Capacity      int           // overrides pool.capacity when > 0
	TolerateLeaks bool          // record leak signals instead of aborting
	Redis         string        // "" = config store, "mini" = embedded, else address
	Dump          bool          // print debug probes after the run
}

// stressReport is what a workload run observed.
type stressReport struct {
	Leases      int64
	Leaked      int64
	LeakSignals int64
	Elapsed     time.Duration
	Stats       api.PoolStats
	Debug       map[string]any
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run a concurrent acquire/release workload against the pool",
	Long: `Runs --workers goroutines that each lease --ops workspaces, write
--writes scratch keys into them and release them again.

With --leak-every N every Nth lease is never returned, which eventually
trips the leak detector. By default that aborts the run the same way it
would abort an engine; --tolerate-leaks records the signals instead.

--redis mini starts an embedded Redis as the permanent store.`,
	RunE: runStress,
}

func init() {
	f := stressCmd.Flags()
	f.IntVarP(&stressFlags.Workers, "workers", "w", 8, "concurrent workers")
	f.IntVarP(&stressFlags.Ops, "ops", "n", 1000, "leases per worker")
	f.IntVar(&stressFlags.Writes, "writes", 4, "scratch keys written per lease")
	f.DurationVar(&stressFlags.Hold, "hold", 0, "how long each lease is held")
	f.Float64Var(&stressFlags.Rate, "rate", 0, "global lease rate per second (0 = unlimited)")
	f.IntVar(&stressFlags.LeakEvery, "leak-every", 0, "never release every Nth lease (0 = never)")
	f.IntVar(&stressFlags.Capacity, "capacity", 0, "override pool capacity")
	f.BoolVar(&stressFlags.TolerateLeaks, "tolerate-leaks", false, "record leak signals instead of aborting")
	f.StringVar(&stressFlags.Redis, "redis", "", `Redis address for the permanent store, or "mini" for an embedded one`)
	f.BoolVar(&stressFlags.Dump, "dump", false, "print debug probes after the run")
	rootCmd.AddCommand(stressCmd)
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), nil)
	}

	switch stressFlags.Redis {
	case "":
	case "mini":
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start embedded redis: %w", err)
		}
		defer mr.Close()
		cfg.Store = control.StoreConfig{Kind: "redis", RedisAddr: mr.Addr(), Namespace: "stress"}
	default:
		cfg.Store = control.StoreConfig{Kind: "redis", RedisAddr: stressFlags.Redis, Namespace: "stress"}
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	printer.Step("running %d workers x %d leases (capacity %d)\n",
		stressFlags.Workers, stressFlags.Ops, effectiveCapacity(cfg, stressFlags))
	report, err := stress(cmd.Context(), cfg, logger, stressFlags)
	if err != nil {
		return printer.Error("Stress run failed", err.Error(), []string{
			"Lower --leak-every or raise --capacity",
			"Use --tolerate-leaks to keep running past leak signals",
		})
	}

	printer.Table("pool", report.Stats.AsMap())
	printer.Table("run", map[string]any{
		"leases":       report.Leases,
		"leaked":       report.Leaked,
		"leak_signals": report.LeakSignals,
		"elapsed":      report.Elapsed.Round(time.Millisecond),
		"leases_per_s": fmt.Sprintf("%.0f", float64(report.Leases)/report.Elapsed.Seconds()),
	})
	if stressFlags.Dump {
		printer.Table("debug", report.Debug)
	}
	if report.LeakSignals > 0 {
		printer.Warning("%d leak signals recorded\n", report.LeakSignals)
	} else {
		printer.Success("no leaks\n")
	}
	return nil
}

func effectiveCapacity(cfg *control.FileConfig, opts stressOptions) int {
	if opts.Capacity > 0 {
		return opts.Capacity
	}
	return cfg.Pool.Capacity
}

// stress runs the workload and always stops the engine before returning.
// A fatal leak signal surfaces as an error carrying the leak report.
func stress(ctx context.Context, cfg *control.FileConfig, logger api.Logger, opts stressOptions) (rep stressReport, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg.Pool.Capacity = effectiveCapacity(cfg, opts)

	var leakSignals atomic.Int64
	var firstLeak atomic.Pointer[api.Error]
	handler := func(e *api.Error) {
		leakSignals.Add(1)
		firstLeak.CompareAndSwap(nil, e)
		if !opts.TolerateLeaks {
			pool.PanicOnLeak(e)
		}
	}

	engine, err := facade.New(&facade.Config{File: cfg, Logger: logger, LeakHandler: handler})
	if err != nil {
		return rep, err
	}
	defer engine.Stop()
	if err := engine.Start(ctx); err != nil {
		return rep, err
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	var leases, leaked atomic.Int64

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		worker := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(*api.Error); ok {
						err = e
						return
					}
					panic(r)
				}
			}()
			for i := 0; i < opts.Ops; i++ {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				} else if gctx.Err() != nil {
					return gctx.Err()
				}

				n := leases.Add(1)
				l := engine.Acquire()
				if err := scribble(gctx, l.Workspace(), worker, i, opts.Writes); err != nil {
					l.Release()
					return err
				}
				if opts.Hold > 0 {
					time.Sleep(opts.Hold)
				}
				if opts.LeakEvery > 0 && n%int64(opts.LeakEvery) == 0 {
					leaked.Add(1)
					continue
				}
				l.Release()
			}
			return nil
		})
	}
	runErr := g.Wait()

	rep = stressReport{
		Leases:      leases.Load(),
		Leaked:      leaked.Load(),
		LeakSignals: leakSignals.Load(),
		Elapsed:     time.Since(start),
		Stats:       engine.PublishMetrics(),
		Debug:       engine.Control().Stats(),
	}
	if runErr != nil {
		if e := firstLeak.Load(); e != nil {
			return rep, e
		}
		return rep, runErr
	}
	return rep, nil
}

// scribble writes n scratch keys, standing in for an expression evaluation.
func scribble(ctx context.Context, w api.Workspace, worker, op, n int) error {
	st, ok := w.(api.Store)
	if !ok {
		return nil
	}
	for k := 0; k < n; k++ {
		key := fmt.Sprintf("w%d/op%d/k%d", worker, op, k)
		if err := st.Put(ctx, key, []byte(key)); err != nil {
			return err
		}
	}
	return nil
}
