package selector

import "fmt"

// SyntaxError reports a selector expression that cannot be parsed or
// safely evaluated (spec.md Sec. 4.2, Sec. 7).
type SyntaxError struct {
	Expr   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("selector syntax error in %q: %s", e.Expr, e.Reason)
}

func syntaxErrorf(expr, format string, args ...any) error {
	return &SyntaxError{Expr: expr, Reason: fmt.Sprintf(format, args...)}
}
