package cmd

import (
	"fmt"

	"github.com/harrison/thingamajig/internal/config"
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for thingamajig
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thingamajig",
		Short: "Emulator for the thingamajig 8-bit register machine",
		Long: `thingamajig runs programs for a tiny 8-bit machine with four registers,
a return pointer and a 64 KiB address space.

Programs can be raw images, assembly source, Markdown listings with asm
code blocks, or YAML manifests. Every executed instruction can be traced
and every run is recorded in a local history database.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main prints the error once
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .thingamajig/config.yaml)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewAsmCommand())
	cmd.AddCommand(NewDisasmCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewCICommand())

	return cmd
}

// loadConfig reads the file named by --config, or .thingamajig/config.yaml
// in the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
