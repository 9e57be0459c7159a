// Package parsetree implements the recipe manager's format-preserving
// parse tree (C3): a line-oriented IR for v0/v1 recipe text that
// supports reversible parse/render round trips, per spec.md Sec. 3 and
// 4.3. Nodes live in an arena (Tree.Nodes) addressed by NodeID rather
// than holding parent/child pointers, per spec.md Sec. 9's redesign
// note on cyclic references during parse.
package parsetree

import (
	"fmt"
	"strconv"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// Kind discriminates the scalar types a Node's Value may hold.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMultilineString
	// KindSentinel marks structural-only nodes: the tree root and
	// key-only (non-leaf) mapping/list nodes. Reading a sentinel's
	// scalar value is a bug and raises SentinelTypeEvaluationException.
	KindSentinel
)

// Value is the sum-typed scalar a Node may carry (spec.md Sec. 9).
type Value struct {
	Kind  Kind
	Str   string
	Bool  bool
	Int   int64
	Float float64
	Lines []string // populated only when Kind == KindMultilineString
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Sentinel returns the structural-only sentinel value.
func Sentinel() Value { return Value{Kind: KindSentinel} }

// StringValue wraps a plain scalar string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// MultilineValue wraps an ordered sequence of lines.
func MultilineValue(lines []string) Value {
	return Value{Kind: KindMultilineString, Lines: lines}
}

// ParseScalar infers the narrowest type for a bare YAML-subset scalar
// token: bool, int, float, null, or string, falling back to string.
func ParseScalar(tok string) Value {
	switch tok {
	case "":
		return Value{Kind: KindNull}
	case "null", "~", "None":
		return Value{Kind: KindNull}
	case "true", "True", "TRUE":
		return Value{Kind: KindBool, Bool: true}
	case "false", "False", "FALSE":
		return Value{Kind: KindBool, Bool: false}
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return Value{Kind: KindInt, Int: i}
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Value{Kind: KindFloat, Float: f}
	}
	return Value{Kind: KindString, Str: unquote(tok)}
}

func unquote(tok string) string {
	if len(tok) >= 2 {
		if (tok[0] == '"' && tok[len(tok)-1] == '"') || (tok[0] == '\'' && tok[len(tok)-1] == '\'') {
			if s, err := strconv.Unquote(normalizeQuotes(tok)); err == nil {
				return s
			}
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

func normalizeQuotes(tok string) string {
	if tok[0] == '\'' {
		inner := tok[1 : len(tok)-1]
		return `"` + inner + `"`
	}
	return tok
}

// Primitive returns the Go-native value for Kind in
// {Null,Bool,Int,Float,String}. Calling it on a multiline or sentinel
// value is an error.
func (v Value) Primitive() (any, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return v.Float, nil
	case KindString:
		return v.Str, nil
	case KindSentinel:
		return nil, &crmerrors.SentinelTypeEvaluationException{}
	default:
		return nil, fmt.Errorf("value of kind %d has no primitive form", v.Kind)
	}
}

// AsString renders the value as its string representation for search
// and templating purposes.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindMultilineString:
		out := ""
		for i, l := range v.Lines {
			if i > 0 {
				out += "\n"
			}
			out += l
		}
		return out
	default:
		return ""
	}
}
