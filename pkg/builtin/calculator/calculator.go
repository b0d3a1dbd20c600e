// Package calculator provides a tool that evaluates one binary arithmetic
// expression of the form "a op b".
package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/germanamz/llamagent/pkg/reply"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
)

// ToolName is the registered name of the calculator tool.
const ToolName = "calculator"

// ErrDivisionByZero is returned for "x / 0".
var ErrDivisionByZero = errors.New("calculator: division by zero")

// Tools returns a ToolBox containing the calculator tool.
func Tools() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(Tool())

	return tb
}

// Tool returns the calculator declaration.
func Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        ToolName,
		Description: "Perform basic arithmetic operations. Supports one operation between two numbers: +, -, * or /.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string","description":"Arithmetic expression, e.g. 2 + 2"}},"required":["expression"]}`),
		Handler:     handle,
	}
}

type input struct {
	Expression *string `json:"expression"`
}

func handle(_ context.Context, raw json.RawMessage) (string, error) {
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", toolbox.Errorf(toolbox.KindInvalidArguments, "%s: invalid input: %v", ToolName, err)
	}
	if in.Expression == nil {
		return "", toolbox.Errorf(toolbox.KindInvalidArguments, "%s: missing 'expression' parameter", ToolName)
	}

	expr := reply.Clean(*in.Expression)
	if expr == "" {
		return "", toolbox.Errorf(toolbox.KindInvalidArguments, "%s: empty expression", ToolName)
	}

	v, err := Evaluate(expr)
	if err != nil {
		return "", toolbox.Wrap(toolbox.KindExecution, err)
	}

	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Evaluate computes "a op b" where op is one of + - * /.
func Evaluate(expr string) (float64, error) {
	a, rest, err := leadingNumber(strings.TrimSpace(expr))
	if err != nil {
		return 0, err
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return 0, fmt.Errorf("calculator: missing operator in %q", expr)
	}
	op := rest[0]

	b, tail, err := leadingNumber(strings.TrimSpace(rest[1:]))
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(tail) != "" {
		return 0, fmt.Errorf("calculator: unexpected %q after expression", strings.TrimSpace(tail))
	}

	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("calculator: invalid operator %q", op)
	}
}

// leadingNumber parses the longest number prefix of s, including a sign.
func leadingNumber(s string) (float64, string, error) {
	end := 0
	for end < len(s) {
		c := s[end]
		isSign := (c == '-' || c == '+') && (end == 0 || s[end-1] == 'e' || s[end-1] == 'E')
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || isSign {
			end++
			continue
		}
		break
	}

	// Back off trailing exponent markers like "2e".
	for end > 0 {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v, s[end:], nil
		}
		end--
	}

	return 0, s, fmt.Errorf("calculator: expected a number at %q", s)
}
