package clog

import (
	"github.com/fatih/color"
)

// status is the dim/grey style spec §7 mandates for tool-call and
// tool-result preview lines, replacing the teacher's raw "\033[90m...\033[0m"
// escape sequences with fatih/color so it degrades on non-TTY output.
var status = color.New(color.FgHiBlack)

// PrintToolCall renders one "-> name(args-preview)" status line.
func PrintToolCall(name, argsPreview string) {
	status.Printf("-> %s(%s)\n", name, argsPreview)
}

// PrintToolResult renders one short preview line for a tool result, dimmed
// regardless of success, matching the teacher's toolExecutorDisplay.
func PrintToolResult(name, preview string, ok bool) {
	mark := "ok"
	if !ok {
		mark = "err"
	}
	status.Printf("   [%s] %s: %s\n", mark, name, preview)
}
