package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
)

func TestFunctionTool_Validation(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo a string", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []any{"text"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})

	out, err := echo.Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = echo.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)

	_, err = echo.Call(context.Background(), map[string]any{"text": 42})
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ErrorNormalization(t *testing.T) {
	boom := NewFunctionTool("boom", "Always fails", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("kaput")
		})

	_, err := boom.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "kaput", toolErr.Message)

	custom := NewFunctionTool("custom", "Custom code", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, NewToolError("custom", "nope", "RATE_LIMITED")
		})
	_, err = custom.Call(context.Background(), map[string]any{})
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "RATE_LIMITED", toolErr.Code, "custom codes are preserved")
}

func TestDecisionTool(t *testing.T) {
	d := NewDecisionTool()
	assert.Equal(t, core.DecisionToolName, d.Name())

	out, err := d.Call(context.Background(), map[string]any{"allow": true})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllowOutput, out)

	out, err = d.Call(context.Background(), map[string]any{"allow": false})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlockOutput, out)
}

func TestCalculatorTool(t *testing.T) {
	c := NewCalculatorTool()

	cases := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"-3 + 1", "-2"},
		{"2 * -3", "-6"},
		{"1.5 * 2", "3"},
	}
	for _, tc := range cases {
		out, err := c.Call(context.Background(), map[string]any{"expression": tc.expr})
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, out, tc.expr)
	}
}

func TestCalculatorTool_Errors(t *testing.T) {
	c := NewCalculatorTool()

	for _, expr := range []string{"1/0", "2 +", "(1+2", "abc", ""} {
		_, err := c.Call(context.Background(), map[string]any{"expression": expr})
		var toolErr *ToolError
		require.True(t, errors.As(err, &toolErr), expr)
		assert.Equal(t, "EXECUTION_ERROR", toolErr.Code, expr)
	}
}

func TestRegistry(t *testing.T) {
	calc := NewCalculatorTool()
	dec := NewDecisionTool()
	r := NewRegistry(dec, calc)

	got, ok := r.Get("calculator")
	require.True(t, ok)
	assert.Same(t, calc, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, core.DecisionToolName, list[0].Name())
	assert.Equal(t, "calculator", list[1].Name())
}
