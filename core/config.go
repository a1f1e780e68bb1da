package core

// Node and stage identifiers shared across the pipeline. Stage names double
// as the node labels visible on protocol events.
const (
	// StageGate is the policy gate (superego) stage.
	StageGate = "superego"
	// StageRespond is the responder (inner agent) stage.
	StageRespond = "inner_agent"
	// StageTools executes pending tool calls from the preceding ai message.
	StageTools = "tools"

	// NodeSetup labels failures that occur before any stage has run.
	NodeSetup = "setup"
	// NodeError labels the terminal end event after a failure.
	NodeError = "error"
	// NodeMultiplexer labels comparison-level error events that belong to no
	// single branch.
	NodeMultiplexer = "compare_multiplexer"
)

// DecisionToolName is the gate's designated decision tool. Only tool results
// answering this tool participate in allow/block routing.
const DecisionToolName = "superego_decision"

// RunConfig is the immutable per-branch configuration. It is created once at
// branch start, owned by the branch runner it was given to, and never
// mutated. Comparison mode hands each branch its own RunConfig; nothing here
// is shared across branches.
type RunConfig struct {
	// BranchID identifies the branch within a comparison. Empty for a plain
	// single run.
	BranchID string `json:"branch_id,omitempty"`
	// Constitution is the fully resolved policy text for the gate stage. The
	// pipeline never resolves constitution identifiers itself.
	Constitution string `json:"constitution,omitempty"`
	// Provider selects the model backend ("anthropic", "openai", "mock").
	Provider string `json:"provider,omitempty"`
	// ModelName overrides the provider's default model when non-empty.
	ModelName string `json:"model_name,omitempty"`
	// AdherenceLevel is opaque adherence metadata carried through run_start
	// for clients; the pipeline does not interpret it.
	AdherenceLevel string `json:"adherence_level,omitempty"`
	// SkipGate starts the branch directly at the responder stage. Used for
	// the ungated baseline branch in comparisons.
	SkipGate bool `json:"skip_gate,omitempty"`
}
