package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexlane/cortex/internal/config"
)

// newConfigCmd implements `cortex config show`, a diagnostic command
// dumping the fully-resolved configuration (defaults + file + env) as
// YAML, so an operator can see what the runtime actually picked up.
func newConfigCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved runtime configuration",
	}
	root.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out, err := cfg.Dump()
			if err != nil {
				return fmt.Errorf("dump config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return root
}
