package selector

import "strings"

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokIdent
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

// lex tokenizes a selector expression. Comparison operators adjacent to
// an identifier (e.g. "py >= 3.10") are glued into a single ident token
// with internal whitespace stripped, per spec.md Sec. 4.2.
func lex(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	n := len(runes)

	isSpace := func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
	isIdentStart := func(r rune) bool {
		return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}
	isIdentChar := func(r rune) bool {
		return isIdentStart(r) || (r >= '0' && r <= '9') || r == '.'
	}

	for i < n {
		r := runes[i]
		switch {
		case isSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case isIdentStart(r):
			start := i
			for i < n && isIdentChar(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			switch word {
			case "and":
				toks = append(toks, token{tokAnd, word})
				continue
			case "or":
				toks = append(toks, token{tokOr, word})
				continue
			case "not":
				toks = append(toks, token{tokNot, word})
				continue
			}

			// Look ahead for a glued comparison operator: optional
			// whitespace, an operator, optional whitespace, then a
			// version-shaped operand.
			j := i
			for j < n && isSpace(runes[j]) {
				j++
			}
			op, opLen := matchOperator(runes, j)
			if opLen > 0 {
				j += opLen
				for j < n && isSpace(runes[j]) {
					j++
				}
				opStart := j
				for j < n && isIdentChar(runes[j]) {
					j++
				}
				if j > opStart {
					word = word + op + string(runes[opStart:j])
					i = j
				}
			}
			toks = append(toks, token{tokIdent, word})
		default:
			return nil, syntaxErrorf(expr, "unexpected character %q at position %d", r, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func matchOperator(runes []rune, at int) (string, int) {
	rest := string(runes[at:])
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(rest, op) {
			return op, len(op)
		}
	}
	return "", 0
}
