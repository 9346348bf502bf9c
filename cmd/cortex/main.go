// Command cortex is the CLI entry point for the agent orchestration
// runtime: `run`, `run --resume`, `run "<task>"`, and `serve`, per spec §6
// "CLI surface". Grounded on the teacher's cobra command tree
// (cmd/cobra_cli.go).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "cortex",
		Short: "Autonomous coding-assistant agent orchestration runtime",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to cortex.yaml/cortex.toml")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newConfigCmd(&configPath))
	return root
}
