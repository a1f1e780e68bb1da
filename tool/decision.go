package tool

import (
	"context"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

// Decision output phrasing. The router matches the allow outcome by
// substring, so these strings are an external interface: changing them
// changes routing behavior. Do not "fix" this to structured parsing.
const (
	DecisionAllowOutput = "✅ Superego allowed the prompt."
	DecisionBlockOutput = "❌ Superego blocked the prompt."
)

// FormatDecision renders the decision tool's user-facing output text.
func FormatDecision(allow bool) string {
	if allow {
		return DecisionAllowOutput
	}
	return DecisionBlockOutput
}

// NewDecisionTool returns the gate's designated decision tool. The gate is
// instructed to call it exactly once with its allow/block verdict; the
// formatted output text, not the raw boolean argument, is what routing
// inspects downstream.
func NewDecisionTool() Tool {
	return NewFunctionTool(
		core.DecisionToolName,
		"Record whether the user's prompt should be allowed to proceed to the assistant. Call with allow=true to permit, allow=false to block.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"allow": map[string]any{
					"type":        "boolean",
					"description": "Whether the prompt is allowed to proceed",
				},
			},
			"required": []any{"allow"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			allow, _ := args["allow"].(bool)
			return FormatDecision(allow), nil
		},
	)
}
