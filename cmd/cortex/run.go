package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexlane/cortex/internal/agenttypes"
	"github.com/cortexlane/cortex/internal/background"
	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/bus"
	"github.com/cortexlane/cortex/internal/clog"
	"github.com/cortexlane/cortex/internal/config"
	"github.com/cortexlane/cortex/internal/llmclient/anthropic"
	"github.com/cortexlane/cortex/internal/mainloop"
	"github.com/cortexlane/cortex/internal/session"
	"github.com/cortexlane/cortex/internal/subagent"
	"github.com/cortexlane/cortex/internal/taskstore"
	"github.com/cortexlane/cortex/internal/tokens"
	"github.com/cortexlane/cortex/internal/toolregistry"
	"github.com/cortexlane/cortex/internal/tracer"
	"github.com/cortexlane/cortex/internal/trackers"
	"github.com/cortexlane/cortex/internal/worktree"
)

func newRunCmd(configPath *string) *cobra.Command {
	var resume bool
	var resumeKey string

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Start or resume a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			sess, err := openSession(cfg, resume, resumeKey)
			if err != nil {
				return err
			}

			loop, roster, err := buildMainLoop(cfg, sess)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return runOneShot(cmd.Context(), loop, args[0])
			}
			return runREPL(cmd.Context(), loop, sess, roster)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "reuse an existing session")
	cmd.Flags().StringVar(&resumeKey, "resume-key", "", "session key to resume; missing key picks the newest")
	return cmd
}

// openSession implements spec §6 CLI surface's run/--resume semantics:
// a fresh session by default, or reuse of an existing one (newest when no
// key is given). A fatal resume-key mismatch exits with code 1.
func openSession(cfg *config.Config, resume bool, key string) (*session.Session, error) {
	if !resume {
		return session.Open(cfg.SessionsRoot, session.NewKey()), nil
	}
	keys, err := session.List(cfg.SessionsRoot)
	if err != nil {
		return nil, fmt.Errorf("no existing session to resume: %w", err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no existing session to resume")
	}
	if key == "" {
		return session.Open(cfg.SessionsRoot, keys[0]), nil
	}
	for _, k := range keys {
		if k == key {
			return session.Open(cfg.SessionsRoot, key), nil
		}
	}
	return nil, fmt.Errorf("no session %q to resume", key)
}

func buildMainLoop(cfg *config.Config, sess *session.Session) (*mainloop.Loop, *teamRoster, error) {
	tracePath, err := sess.TracePath()
	if err != nil {
		return nil, nil, err
	}
	tr := tracer.New(tracePath).WithOTLP(cfg.OTLPEndpoint)

	tasksDir, err := sess.TasksDir()
	if err != nil {
		return nil, nil, err
	}
	boardDir, err := sess.BoardDir()
	if err != nil {
		return nil, nil, err
	}
	inboxDir, err := sess.InboxDir()
	if err != nil {
		return nil, nil, err
	}
	workspaceDir, err := sess.WorkspaceDir()
	if err != nil {
		return nil, nil, err
	}

	store := taskstore.New(tasksDir, nil, tr)
	b := board.New(boardDir, store)
	store.SetMirror(b)

	leadBus := bus.New(inboxDir)
	tk := trackers.New()

	bg := background.New(workspaceDir, tr)

	wtMgr, err := worktree.New(workspaceDir, store, tr)
	if err != nil {
		return nil, nil, fmt.Errorf("open worktree manager: %w", err)
	}

	llm := anthropic.New(cfg.AnthropicToken, cfg.AnthropicBaseURL, cfg.DeepseekModel)
	tools := toolregistry.New(0)
	registerCoreTools(tools, store, b, bg, tk)
	registerWorktreeTools(tools, wtMgr)

	compactRef := &loopRef{}
	registerCompactTool(tools, compactRef)

	roster := newTeamRoster(llm, tools, leadBus, b, tr)
	registerTeamTools(tools, roster, b, leadBus)

	agentTypes := agenttypes.Default()
	driver := subagent.New(llm, tools, agentTypes, tr, tracer.NewRunID)
	registerTaskTool(tools, driver) // last, per spec §4.8

	loop := mainloop.New(llm, tools, sess, tr, leadBus, roster.IsLive, bg, tokens.NewCounter(), llm)
	compactRef.loop = loop
	return loop, roster, nil
}

func runOneShot(ctx context.Context, loop *mainloop.Loop, task string) error {
	answer, err := loop.Run(ctx, task)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func runREPL(ctx context.Context, loop *mainloop.Loop, sess *session.Session, roster *teamRoster) error {
	log := clog.New("repl")
	log.Info("session ready: key=%s", sess.Key)
	return runInteractive(ctx, loop, sess, roster)
}
