package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// renderer prints a protocol event stream as readable terminal output.
// Chunk events carry full snapshots, so the renderer prints only the suffix
// beyond what it already wrote for each (node, branch) slot.
type renderer struct {
	w       io.Writer
	printed map[core.DedupKey]string
	current core.DedupKey
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, printed: make(map[core.DedupKey]string)}
}

func (r *renderer) render(ev core.ProtocolEvent) {
	switch ev.Type {
	case core.EventRunStart:
		r.header(ev, "run started")

	case core.EventChunk:
		key := core.DedupKey{Node: ev.Node, BranchID: ev.BranchID}
		prev := r.printed[key]
		if key != r.current {
			r.header(ev, "")
			r.current = key
			// A new slot restarts from whatever of the snapshot is new.
		}
		if strings.HasPrefix(ev.Text, prev) {
			fmt.Fprint(r.w, ev.Text[len(prev):])
		} else {
			fmt.Fprint(r.w, ev.Text)
		}
		r.printed[key] = ev.Text

	case core.EventToolCallChunk:
		// Fragments stream as they arrive: a name opens the call line,
		// argument text continues it.
		if ev.ToolName != "" {
			r.breakLine()
			fmt.Fprintf(r.w, "%s -> %s ", r.label(ev), ev.ToolName)
		}
		if ev.ArgumentText != "" {
			fmt.Fprint(r.w, ev.ArgumentText)
		}

	case core.EventToolResult:
		fmt.Fprintln(r.w)
		status := "ok"
		if ev.IsError {
			status = "error"
		}
		fmt.Fprintf(r.w, "%s <- %s [%s]: %s\n", r.label(ev), ev.ToolName, status, ev.Content)
		r.current = core.DedupKey{}

	case core.EventError:
		r.breakLine()
		fmt.Fprintf(r.w, "%s error: %s\n", r.label(ev), ev.ErrorMessage)
		r.current = core.DedupKey{}

	case core.EventEnd:
		r.breakLine()
		if ev.CheckpointID != "" {
			fmt.Fprintf(r.w, "%s done (checkpoint %s)\n", r.label(ev), ev.CheckpointID)
		} else {
			fmt.Fprintf(r.w, "%s done\n", r.label(ev))
		}
		r.current = core.DedupKey{}
	}
}

func (r *renderer) header(ev core.ProtocolEvent, suffix string) {
	r.breakLine()
	if suffix != "" {
		fmt.Fprintf(r.w, "%s %s\n", r.label(ev), suffix)
		return
	}
	fmt.Fprintf(r.w, "%s ", r.label(ev))
}

// breakLine ends a streaming text line before structural output.
func (r *renderer) breakLine() {
	if r.current != (core.DedupKey{}) {
		fmt.Fprintln(r.w)
		r.current = core.DedupKey{}
	}
}

func (r *renderer) label(ev core.ProtocolEvent) string {
	node := ev.Node
	if node == "" {
		node = "run"
	}
	if ev.BranchID != "" {
		return fmt.Sprintf("[%s/%s]", ev.BranchID, node)
	}
	return fmt.Sprintf("[%s]", node)
}
