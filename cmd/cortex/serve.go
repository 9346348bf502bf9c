package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/config"
	"github.com/cortexlane/cortex/internal/httpserver"
	"github.com/cortexlane/cortex/internal/session"
	"github.com/cortexlane/cortex/internal/taskstore"
	"github.com/cortexlane/cortex/internal/worktree"
)

// newServeCmd implements `cortex serve`, the read-only HTTP introspection
// surface of SPEC_FULL.md's DOMAIN STACK table.
func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	var resumeKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose a read-only HTTP introspection surface over a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sess, err := openSession(cfg, true, resumeKey)
			if err != nil {
				return err
			}

			tasksDir, err := sess.TasksDir()
			if err != nil {
				return err
			}
			boardDir, err := sess.BoardDir()
			if err != nil {
				return err
			}
			workspaceDir, err := sess.WorkspaceDir()
			if err != nil {
				return err
			}

			store := taskstore.New(tasksDir, nil, nil)
			b := board.New(boardDir, store)
			store.SetMirror(b)

			mgr, err := worktree.New(workspaceDir, store, nil)
			if err != nil {
				return fmt.Errorf("open worktree manager: %w", err)
			}

			metrics := httpserver.NewMetrics()
			events := worktree.NewEventLog(workspaceDir + "/.worktrees")
			srv := httpserver.New(store, b, events, mgr, metrics)

			maint := httpserver.NewMaintenance(store)
			if err := maint.Start(); err != nil {
				return fmt.Errorf("start maintenance scheduler: %w", err)
			}
			defer maint.Stop()

			return srv.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8787", "address to listen on")
	cmd.Flags().StringVar(&resumeKey, "session", "", "session key to expose; missing key picks the newest")
	return cmd
}
