package tables

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/selector"
)

// EvaluateExpr evaluates a narrow, non-Turing-complete subset of Jinja
// expression syntax (spec.md Sec. 4.4): literals, variable lookups,
// "env.get(KEY, default)", an allow-list of string methods,
// len/str/int/float/match(), comparisons, "and"/"or"/"not", string
// concatenation via "+", and the ternary "A if C else B". Anything
// outside this grammar returns an error so the caller can fall back to
// leaving the expression unevaluated with a warning.
func EvaluateExpr(expr string, vars VariableTable, v1 bool) (any, error) {
	p := &exprParser{src: expr, vars: vars, v1: v1}
	p.skipSpace()
	val, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unevaluable expression: unexpected trailing input at %d in %q", p.pos, expr)
	}
	return val, nil
}

type exprParser struct {
	src  string
	pos  int
	vars VariableTable
	v1   bool
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) rest() string { return p.src[p.pos:] }

func (p *exprParser) consumeKeyword(kw string) bool {
	p.skipSpace()
	r := p.rest()
	if !strings.HasPrefix(r, kw) {
		return false
	}
	after := p.pos + len(kw)
	if after < len(p.src) && isIdentByte(p.src[after]) {
		return false
	}
	p.pos = after
	return true
}

// parseTernary: or_expr ["if" or_expr "else" ternary]
func (p *exprParser) parseTernary() (any, error) {
	val, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	save := p.pos
	if p.consumeKeyword("if") {
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consumeKeyword("else") {
			return nil, fmt.Errorf("unevaluable expression: expected 'else' in ternary")
		}
		elseVal, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return val, nil
		}
		return elseVal, nil
	}
	p.pos = save
	return val, nil
}

func (p *exprParser) parseOr() (any, error) {
	val, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		if !p.consumeKeyword("or") {
			p.pos = save
			break
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		val = truthy(val) || truthy(rhs)
	}
	return val, nil
}

func (p *exprParser) parseAnd() (any, error) {
	val, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		if !p.consumeKeyword("and") {
			p.pos = save
			break
		}
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		val = truthy(val) && truthy(rhs)
	}
	return val, nil
}

func (p *exprParser) parseNot() (any, error) {
	if p.consumeKeyword("not") {
		val, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !truthy(val), nil
	}
	return p.parseComparison()
}

var compareOps = []string{"==", "!=", ">=", "<=", ">", "<"}

func (p *exprParser) parseComparison() (any, error) {
	lhs, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	for _, op := range compareOps {
		if strings.HasPrefix(p.rest(), op) {
			p.pos += len(op)
			rhs, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			return compare(lhs, rhs, op)
		}
	}
	return lhs, nil
}

// parseConcat: additive_term ("+" additive_term)*
func (p *exprParser) parseConcat() (any, error) {
	val, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '+' {
			break
		}
		p.pos++
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		val, err = add(val, rhs)
		if err != nil {
			return nil, err
		}
	}
	return val, nil
}

func (p *exprParser) parseUnary() (any, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
		val, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch t := val.(type) {
		case int64:
			return -t, nil
		case float64:
			return -t, nil
		default:
			return nil, fmt.Errorf("unevaluable expression: unary minus on non-numeric value")
		}
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unevaluable expression: unexpected end of input")
	}

	switch p.src[p.pos] {
	case '(':
		p.pos++
		val, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return nil, fmt.Errorf("unevaluable expression: missing closing paren")
		}
		p.pos++
		return p.parseTrailer(val)
	case '"', '\'':
		s, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		return p.parseTrailer(s)
	}

	if isDigitByte(p.src[p.pos]) {
		return p.parseNumber()
	}

	if p.consumeKeyword("true") {
		return true, nil
	}
	if p.consumeKeyword("false") {
		return false, nil
	}
	if p.consumeKeyword("none") || p.consumeKeyword("None") {
		return nil, nil
	}

	ident, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return p.parseIdentExpr(ident)
}

func (p *exprParser) parseStringLiteral() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	start := p.pos
	var b strings.Builder
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		if p.src[p.pos] == '\\' && p.pos+1 < len(p.src) {
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		b.WriteByte(p.src[p.pos])
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("unevaluable expression: unterminated string literal starting at %d", start)
	}
	p.pos++
	return b.String(), nil
}

func (p *exprParser) parseNumber() (any, error) {
	start := p.pos
	isFloat := false
	for p.pos < len(p.src) && (isDigitByte(p.src[p.pos]) || p.src[p.pos] == '.') {
		if p.src[p.pos] == '.' {
			isFloat = true
		}
		p.pos++
	}
	text := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("unevaluable expression: bad float literal %q", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unevaluable expression: bad int literal %q", text)
	}
	return n, nil
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }
func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || isDigitByte(b)
}

func (p *exprParser) parseIdent() (string, error) {
	start := p.pos
	if p.pos >= len(p.src) || !(isIdentByte(p.src[p.pos]) && !isDigitByte(p.src[p.pos])) {
		return "", fmt.Errorf("unevaluable expression: expected identifier at %d", p.pos)
	}
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// parseIdentExpr resolves a bare identifier: a variable lookup, or the
// start of an "env.get(...)" or a recognized builtin function call.
func (p *exprParser) parseIdentExpr(ident string) (any, error) {
	p.skipSpace()
	if strings.HasPrefix(p.rest(), ".") {
		p.pos++
		attr, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if ident == "env" && attr == "get" {
			return p.callEnvGet()
		}
		base, ok := p.vars.Resolve(ident)
		if !ok {
			return nil, fmt.Errorf("unevaluable expression: unknown variable %q", ident)
		}
		prim, err := base.Primitive()
		if err != nil {
			return nil, fmt.Errorf("unevaluable expression: %w", err)
		}
		return p.callMethod(prim, attr)
	}

	if strings.HasPrefix(p.rest(), "(") {
		return p.parseFuncCall(ident)
	}

	val, ok := p.vars.Resolve(ident)
	if !ok {
		return nil, fmt.Errorf("unevaluable expression: unknown variable %q", ident)
	}
	prim, err := val.Primitive()
	if err != nil {
		return nil, fmt.Errorf("unevaluable expression: %w", err)
	}
	return p.parseTrailer(prim)
}

// parseTrailer allows chaining ".method(...)" after any primary
// expression (string literal, parenthesized expr).
func (p *exprParser) parseTrailer(val any) (any, error) {
	for {
		p.skipSpace()
		if !strings.HasPrefix(p.rest(), ".") {
			return val, nil
		}
		p.pos++
		attr, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		val, err = p.callMethod(val, attr)
		if err != nil {
			return nil, err
		}
	}
}

func (p *exprParser) parseArgs() ([]any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return nil, fmt.Errorf("unevaluable expression: expected '('")
	}
	p.pos++
	var args []any
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return args, nil
	}
	for {
		val, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		args = append(args, val)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return nil, fmt.Errorf("unevaluable expression: missing closing paren in call")
	}
	p.pos++
	return args, nil
}

func (p *exprParser) callEnvGet() (any, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("unevaluable expression: env.get requires a key")
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("unevaluable expression: env.get key must be a string")
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	if len(args) > 1 {
		return args[1], nil
	}
	return nil, nil
}

// allow-listed builtins: len, str, int, float, match
func (p *exprParser) parseFuncCall(name string) (any, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	switch name {
	case "len":
		if len(args) != 1 {
			return nil, fmt.Errorf("unevaluable expression: len() takes exactly one argument")
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("unevaluable expression: len() only supports strings")
		}
		return int64(len(s)), nil
	case "str":
		if len(args) != 1 {
			return nil, fmt.Errorf("unevaluable expression: str() takes exactly one argument")
		}
		return stringify(args[0]), nil
	case "int":
		if len(args) != 1 {
			return nil, fmt.Errorf("unevaluable expression: int() takes exactly one argument")
		}
		return toInt(args[0])
	case "float":
		if len(args) != 1 {
			return nil, fmt.Errorf("unevaluable expression: float() takes exactly one argument")
		}
		return toFloat(args[0])
	case "match":
		if len(args) != 2 {
			return nil, fmt.Errorf("unevaluable expression: match() takes exactly two arguments")
		}
		val, ok1 := args[0].(string)
		spec, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unevaluable expression: match() requires string arguments")
		}
		return selector.Match(val, spec)
	default:
		return nil, fmt.Errorf("unevaluable expression: unknown function %q", name)
	}
}

// callMethod implements the narrow string method allow-list
// (spec.md Sec. 4.4): lower, upper, strip, replace, startswith,
// endswith, split.
func (p *exprParser) callMethod(base any, method string) (any, error) {
	s, ok := base.(string)
	if !ok {
		return nil, fmt.Errorf("unevaluable expression: method %q on non-string value", method)
	}
	switch method {
	case "lower":
		if _, err := p.parseArgs(); err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	case "upper":
		if _, err := p.parseArgs(); err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	case "strip":
		if _, err := p.parseArgs(); err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	case "replace":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("unevaluable expression: replace() takes exactly two arguments")
		}
		old, ok1 := args[0].(string)
		repl, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unevaluable expression: replace() requires string arguments")
		}
		return strings.ReplaceAll(s, old, repl), nil
	case "startswith":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("unevaluable expression: startswith() takes exactly one argument")
		}
		prefix, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("unevaluable expression: startswith() requires a string argument")
		}
		return strings.HasPrefix(s, prefix), nil
	case "endswith":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("unevaluable expression: endswith() takes exactly one argument")
		}
		suffix, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("unevaluable expression: endswith() requires a string argument")
		}
		return strings.HasSuffix(s, suffix), nil
	case "split":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		sep := " "
		if len(args) == 1 {
			sepStr, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("unevaluable expression: split() requires a string argument")
			}
			sep = sepStr
		}
		return strings.Split(s, sep), nil
	default:
		return nil, fmt.Errorf("unevaluable expression: unknown method %q", method)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, fmt.Errorf("unevaluable expression: cannot convert to int")
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("unevaluable expression: cannot convert to float")
	}
}

func add(lhs, rhs any) (any, error) {
	ls, lok := lhs.(string)
	rs, rok := rhs.(string)
	if lok && rok {
		return ls + rs, nil
	}
	lf, lerr := toFloat(lhs)
	rf, rerr := toFloat(rhs)
	if lerr == nil && rerr == nil {
		li, liok := lhs.(int64)
		ri, riok := rhs.(int64)
		if liok && riok {
			return li + ri, nil
		}
		return lf + rf, nil
	}
	return nil, fmt.Errorf("unevaluable expression: '+' requires matching string or numeric operands")
}

func compare(lhs, rhs any, op string) (any, error) {
	if op == "==" {
		return valuesEqual(lhs, rhs), nil
	}
	if op == "!=" {
		return !valuesEqual(lhs, rhs), nil
	}

	lf, lerr := toFloat(lhs)
	rf, rerr := toFloat(rhs)
	if lerr == nil && rerr == nil {
		switch op {
		case ">":
			return lf > rf, nil
		case "<":
			return lf < rf, nil
		case ">=":
			return lf >= rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}
	ls, lok := lhs.(string)
	rs, rok := rhs.(string)
	if lok && rok {
		switch op {
		case ">":
			return ls > rs, nil
		case "<":
			return ls < rs, nil
		case ">=":
			return ls >= rs, nil
		case "<=":
			return ls <= rs, nil
		}
	}
	return nil, fmt.Errorf("unevaluable expression: cannot compare operands with %q", op)
}

func valuesEqual(lhs, rhs any) bool {
	lf, lerr := toFloat(lhs)
	rf, rerr := toFloat(rhs)
	if lerr == nil && rerr == nil {
		return lf == rf
	}
	return fmt.Sprintf("%v", lhs) == fmt.Sprintf("%v", rhs)
}
