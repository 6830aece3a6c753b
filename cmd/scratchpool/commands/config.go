package commands

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/momentics/scratchspace/internal/printer"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective pool configuration",
	Long: `Loads the file given with --config on top of the built-in defaults,
validates it and prints the effective configuration as YAML.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), []string{
			"Check the file against the pool, store and log sections",
			"Run without --config to see the defaults",
		})
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	printer.Printf("%s", out)
	printer.Success("configuration is valid\n")
	return nil
}
