package main

import (
	"context"
	"fmt"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/manifoldco/promptui"

	"github.com/cortexlane/cortex/internal/mainloop"
	"github.com/cortexlane/cortex/internal/session"
)

// dispatchSlashCommand handles the interactive slash-commands of spec §6:
// /compact, /tasks, /team, /inbox, /sessions, /board, /worktrees, /events.
// Most are thin views over state this CLI doesn't yet own a live handle to
// (the Main Loop owns the task store/board/bus); /sessions and /compact are
// handled fully here since they're CLI-level concerns.
func dispatchSlashCommand(ctx context.Context, line string, sess *session.Session, loop *mainloop.Loop, roster *teamRoster) error {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/help":
		printMarkdown(helpText())
		return nil
	case "/sessions":
		return runSessionPicker(sess)
	case "/compact":
		return runManualCompact(loop)
	case "/team":
		return runTeamCommand(ctx, strings.TrimSpace(rest), roster)
	default:
		fmt.Printf("%s is not yet wired to a live Main Loop handle in this CLI session.\n", cmd)
		return nil
	}
}

// runTeamCommand implements spec §6's "/team (show the teammate roster)",
// extended with "/team spawn <name> <role>" so an operator can bootstrap
// the Teammate Loop roster from the CLI, same as the `team_spawn` tool the
// LLM can call.
func runTeamCommand(ctx context.Context, rest string, roster *teamRoster) error {
	fields := strings.Fields(rest)
	if len(fields) >= 1 && fields[0] == "spawn" && len(fields) >= 3 {
		name, role := fields[1], strings.Join(fields[2:], " ")
		msg, err := roster.spawn(ctx, name, role)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	}

	roster.mu.Lock()
	defer roster.mu.Unlock()
	if len(roster.members) == 0 {
		fmt.Println("No teammates spawned. Use /team spawn <name> <role>.")
		return nil
	}
	for name, loop := range roster.members {
		fmt.Printf("%s (%s): %s\n", name, loop.Role, loop.Status())
	}
	return nil
}

// runManualCompact confirms before requesting a manual compaction pass,
// per spec §6 "/compact (manual compaction trigger)" — collapsing the
// conversation history is irreversible within the session, so it asks
// first rather than firing immediately on a stray keystroke.
func runManualCompact(loop *mainloop.Loop) error {
	prompt := promptui.Prompt{
		Label:     "Compact the current conversation now",
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		fmt.Println("Compaction cancelled.")
		return nil
	}
	loop.RequestManualCompact()
	fmt.Println("Compaction requested; it will run at the end of the next turn, after its reply.")
	return nil
}

func printMarkdown(src string) {
	rendered := markdown.Render(src, terminalWidth(), 0)
	fmt.Println(string(rendered))
}

func helpText() string {
	return strings.TrimSpace(`
# cortex

| Command | Effect |
|---|---|
| /compact | request a manual compaction pass (runs at the end of the next turn) |
| /tasks | not wired in this CLI; prints a notice |
| /team | show the teammate roster, or /team spawn <name> <role> |
| /inbox | not wired in this CLI; prints a notice |
| /sessions | pick a session and print the flags that resume it |
| /board | not wired in this CLI; prints a notice |
| /worktrees | not wired in this CLI; prints a notice |
| /events | not wired in this CLI; prints a notice |
`)
}

// runSessionPicker lists existing sessions via bubbletea and prints the
// flags that resume the chosen one on the next start, for spec §6's
// "/sessions" command. The running CLI stays on its current session.
func runSessionPicker(sess *session.Session) error {
	keys, err := session.List(sess.Root)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	chosen, err := pickSession(keys)
	if err != nil {
		return err
	}
	if chosen != "" {
		fmt.Printf("Selected session %s. Restart with --resume --resume-key=%s to resume it.\n", chosen, chosen)
	}
	return nil
}
