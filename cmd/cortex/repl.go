package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/cortexlane/cortex/internal/mainloop"
	"github.com/cortexlane/cortex/internal/session"
)

// runInteractive drives the REPL loop: read a line, dispatch slash-commands
// or hand the line to the Main Loop, render the final answer as markdown,
// and repeat. Exit on Ctrl-C, Ctrl-D, "exit", "quit", "q", per spec §6
// "CLI surface".
func runInteractive(ctx context.Context, loop *mainloop.Loop, sess *session.Session, roster *teamRoster) error {
	rl, err := readline.New("cortex> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(terminalWidth()))

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on Ctrl-D, readline.ErrInterrupt on Ctrl-C
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}

		if strings.HasPrefix(line, "/") {
			if err := dispatchSlashCommand(ctx, line, sess, loop, roster); err != nil {
				fmt.Println("Error:", err)
			}
			continue
		}

		answer, err := loop.Run(ctx, line)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}
		if renderer != nil {
			if out, err := renderer.Render(answer); err == nil {
				fmt.Print(out)
				continue
			}
		}
		fmt.Println(answer)
	}
}

// terminalWidth reports the attached terminal's column count, falling back
// to 100 when stdout isn't a terminal (piped output, CI logs).
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "q":
		return true
	}
	return false
}
