// Package translate converts one branch's raw execution events into the
// client-visible protocol event stream: run_start/end markers, deduplicated
// text snapshots, unreassembled tool call fragments and formatted tool
// results. Each branch owns its own Translator; the dedup namespace is keyed
// by (node, branch) so branches never interfere.
package translate

import (
	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// Translator maps a single branch's RawEvent sequence to ProtocolEvents. It
// is a pure state machine over its own fields and is not safe for concurrent
// use; the branch runner drives it from one goroutine.
type Translator struct {
	branchID string
	node     string
	last     map[core.DedupKey]string
	started  bool
	ended    bool
}

// New creates a translator for one branch. branchID is empty for a plain
// single run.
func New(branchID string) *Translator {
	return &Translator{
		branchID: branchID,
		last:     make(map[core.DedupKey]string),
	}
}

// Node returns the last known node, or empty before the first stage.
func (t *Translator) Node() string { return t.node }

// Start emits the branch's run_start event carrying the initial message list
// and run configuration. It must be called before any Translate call; a
// second call returns nil so at most one run_start exists per branch.
func (t *Translator) Start(initial []core.Message, cfg core.RunConfig) *core.ProtocolEvent {
	if t.started {
		return nil
	}
	t.started = true
	cfgCopy := cfg
	return &core.ProtocolEvent{
		Type:     core.EventRunStart,
		BranchID: t.branchID,
		Messages: initial,
		Config:   &cfgCopy,
	}
}

// Translate maps one raw event to zero or one protocol events and updates
// the translator's node and dedup state.
func (t *Translator) Translate(ev core.RawEvent) *core.ProtocolEvent {
	if ev.Stage != "" {
		t.node = ev.Stage
	}

	switch ev.Kind {
	case core.RawStageBoundary:
		// Node bookkeeping only; boundaries are invisible to clients.
		return nil

	case core.RawTextIncrement:
		return t.translateText(ev)

	case core.RawToolCallFragment:
		if ev.Fragment == nil {
			return nil
		}
		return &core.ProtocolEvent{
			Type:         core.EventToolCallChunk,
			Node:         t.node,
			BranchID:     t.branchID,
			ToolCallID:   ev.Fragment.ID,
			ToolName:     ev.Fragment.Name,
			ArgumentText: ev.Fragment.Arguments,
		}

	case core.RawToolResult:
		if ev.Result == nil {
			return nil
		}
		return &core.ProtocolEvent{
			Type:       core.EventToolResult,
			Node:       t.node,
			BranchID:   t.branchID,
			ToolCallID: ev.Result.CallID,
			ToolName:   ev.Result.Name,
			Content:    ev.Result.Content,
			IsError:    ev.Result.IsError,
		}
	}

	return nil
}

// translateText applies the snapshot dedup rule: for a given (node, branch)
// key, consecutive identical snapshots collapse to one chunk event, and each
// emitted chunk carries the entire current text, never a delta. Clients
// replace displayed text per key.
func (t *Translator) translateText(ev core.RawEvent) *core.ProtocolEvent {
	if ev.Text == "" {
		return nil
	}
	key := core.DedupKey{Node: t.node, BranchID: t.branchID}
	if prev, ok := t.last[key]; ok && prev == ev.Text {
		return nil
	}
	t.last[key] = ev.Text
	return &core.ProtocolEvent{
		Type:     core.EventChunk,
		Node:     t.node,
		BranchID: t.branchID,
		Text:     ev.Text,
	}
}

// End emits the branch's terminal end event carrying the last known node and
// the completion checkpoint id when one exists. Repeated calls return nil so
// exactly one terminal event sequence exists per branch.
func (t *Translator) End(checkpointID string) *core.ProtocolEvent {
	if t.ended {
		return nil
	}
	t.ended = true
	return &core.ProtocolEvent{
		Type:         core.EventEnd,
		Node:         t.node,
		BranchID:     t.branchID,
		CheckpointID: checkpointID,
	}
}

// Fail converts a recovered failure into the protocol's terminal sequence:
// one error event at the last known node ("setup" when no stage ever ran)
// followed by one end event at the "error" node. The failure itself never
// propagates past this boundary.
func (t *Translator) Fail(err error) []core.ProtocolEvent {
	if t.ended {
		return nil
	}
	t.ended = true

	node := t.node
	if node == "" {
		node = core.NodeSetup
	}
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}

	return []core.ProtocolEvent{
		{Type: core.EventError, Node: node, BranchID: t.branchID, ErrorMessage: msg},
		{Type: core.EventEnd, Node: core.NodeError, BranchID: t.branchID},
	}
}
