package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scratchpool",
	Short: "Inspect and exercise the transient workspace pool",
	Long: `scratchpool drives the bounded scratch-workspace pool used by the
evaluation engine. It can load and validate pool configuration and run
concurrent acquire/release workloads against an in-memory or Redis-backed
permanent store, reporting pool statistics and leak diagnostics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "pool config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")
}

// loadConfig returns the file config, or the defaults when no file is given.
func loadConfig() (*control.FileConfig, error) {
	cfg := control.DefaultFileConfig()
	if configPath != "" {
		loaded, err := control.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// newLogger builds the slog-backed api.Logger described by cfg.
func newLogger(cfg control.LogConfig, w io.Writer) (api.Logger, error) {
	level, err := control.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return api.NewSlogAdapter(slog.New(handler)), nil
}
