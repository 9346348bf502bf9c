package compaction

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cortexlane/cortex/internal/domain/message"
)

// Preview renders a unified-style textual diff between the pre-compaction
// and post-compaction transcripts. The CLI's `/compact` confirmation prompt
// does not show it; nothing in this module calls Preview.
func Preview(before, after []message.Message) string {
	dmp := diffmatchpatch.New()
	beforeText := renderAll(before)
	afterText := renderAll(after)
	diffs := dmp.DiffMain(beforeText, afterText, false)
	return dmp.DiffPrettyText(diffs)
}

func renderAll(history []message.Message) string {
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s\n", m.Kind, renderContent(m))
	}
	return b.String()
}
