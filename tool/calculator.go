package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NewCalculatorTool returns an arithmetic tool for the responder stage. It
// evaluates infix expressions with +, -, *, /, parentheses and unary minus.
// Evaluation failures (malformed input, division by zero) surface as tool
// errors, which the pipeline reports as erroring tool results without
// ending the run.
func NewCalculatorTool() Tool {
	return NewFunctionTool(
		"calculator",
		"Evaluate a basic arithmetic expression, e.g. \"(2 + 3) * 4\".",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Arithmetic expression to evaluate",
				},
			},
			"required": []any{"expression"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			expr, _ := args["expression"].(string)
			v, err := evalExpression(expr)
			if err != nil {
				return nil, err
			}
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		},
	)
}

// evalExpression parses and evaluates an infix arithmetic expression with a
// small recursive-descent parser.
func evalExpression(input string) (float64, error) {
	p := &exprParser{src: strings.TrimSpace(input)}
	if p.src == "" {
		return 0, fmt.Errorf("empty expression")
	}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.src[p.pos], p.pos)
	}
	return v, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if op, ok := p.peek(); ok && op == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if c == '(' {
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.src) && (unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.src[start:p.pos])
	}
	return v, nil
}
