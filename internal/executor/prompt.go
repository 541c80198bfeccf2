package executor

import (
	"fmt"
	"strings"

	"github.com/coppice-labs/switchboard/internal/request"
)

// BuildPrompt assembles the text handed to the agent CLI: the user's intent,
// a description of the captured screen context, the DOM state, then the
// instruction itself. The image payloads are not inlined; their metadata is.
func BuildPrompt(req *request.ExecutionRequest) string {
	var b strings.Builder

	if intent := strings.TrimSpace(req.Context.UserIntent); intent != "" {
		fmt.Fprintf(&b, "The user is trying to: %s\n\n", intent)
	}

	if n := len(req.Context.Screenshots); n > 0 {
		fmt.Fprintf(&b, "Screen context (%d screenshot(s), most recent last):\n", n)
		for i, shot := range req.Context.Screenshots {
			meta := shot.Metadata
			fmt.Fprintf(&b, "  %d. %q", i+1, meta.WindowTitle)
			if meta.URL != "" {
				fmt.Fprintf(&b, " at %s", meta.URL)
			}
			fmt.Fprintf(&b, " (%dx%d, captured %s)\n", meta.ViewportWidth, meta.ViewportHeight, shot.Timestamp)
		}
		b.WriteString("\n")
	}

	writeDomState(&b, &req.Context.DomState)

	b.WriteString("Instruction:\n")
	b.WriteString(req.Prompt)

	return b.String()
}

func writeDomState(b *strings.Builder, dom *request.DomState) {
	if tree := strings.TrimSpace(dom.AccessibilityTree); tree != "" {
		b.WriteString("Accessibility tree:\n")
		b.WriteString(tree)
		b.WriteString("\n\n")
	}

	if len(dom.InteractiveElements) > 0 {
		fmt.Fprintf(b, "Interactive elements (%d):\n", len(dom.InteractiveElements))
		for _, el := range dom.InteractiveElements {
			fmt.Fprintf(b, "  - %s", el.Role)
			if el.Label != "" {
				fmt.Fprintf(b, " %q", el.Label)
			}
			if el.Selector != "" {
				fmt.Fprintf(b, " [%s]", el.Selector)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}
