package parser

import (
	"regexp"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/tables"
)

// SearchAndPatchReplace regex-matches every string leaf's stringified
// value; on a match, replace calls replacement with the match and
// returns the new scalar value. Comments (and therefore selectors) are
// left untouched unless preserveCommentsAndSelectors is false, in
// which case a matching node's comment is cleared along with its
// replaced value.
func (p *Parser) SearchAndPatchReplace(re *regexp.Regexp, replacement func(match string) any, preserveCommentsAndSelectors bool) (bool, error) {
	changed := false
	var ids []parsetree.NodeID
	p.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if !p.Tree.IsLeaf(id) {
			return
		}
		n := p.Tree.Node(id)
		if n.Value.Kind == parsetree.KindSentinel {
			return
		}
		if re.MatchString(n.Value.AsString()) {
			ids = append(ids, id)
		}
	})
	for _, id := range ids {
		n := p.Tree.Node(id)
		match := re.FindString(n.Value.AsString())
		n.Value = ScalarValue(replacement(match))
		if !preserveCommentsAndSelectors {
			n.Comment = ""
		}
		changed = true
	}
	if changed {
		p.markModified()
		p.Selectors = tables.BuildSelectorTable(p.Tree)
	}
	return changed, nil
}

// contextPath is where v1 recipes hold their variable definitions.
var contextPath = parsetree.ParsePath("/context")

// SetVariable overwrites an existing variable's value, or returns an
// error if it is not defined. v0 recipes define variables via "{% set
// %}" statements scanned from raw text (spec.md Sec. 4.4) rather than
// as tree nodes, so mutating them through the patch layer is not
// supported.
func (p *Parser) SetVariable(name string, value any) error {
	if !p.SchemaV1() {
		return &crmerrors.JSONPatchValidationException{Op: "set_variable", Message: "v0 jinja-set variables are not tree-backed and cannot be patched"}
	}
	if !p.ContainsVariable(name) {
		return &crmerrors.JSONPatchValidationException{Op: "set_variable", Message: "variable not defined: " + name}
	}
	if err := p.addOrSet(contextPath.Append(name), value); err != nil {
		return err
	}
	return p.rebuildV1Variables()
}

// AddVariable defines a new variable. It is an error if one already
// exists with this name.
func (p *Parser) AddVariable(name string, value any) error {
	if !p.SchemaV1() {
		return &crmerrors.JSONPatchValidationException{Op: "add_variable", Message: "v0 jinja-set variables are not tree-backed and cannot be patched"}
	}
	if p.ContainsVariable(name) {
		return &crmerrors.JSONPatchValidationException{Op: "add_variable", Message: "variable already defined: " + name}
	}
	if err := p.addOrSet(contextPath.Append(name), value); err != nil {
		return err
	}
	return p.rebuildV1Variables()
}

// RemoveVariable deletes a variable definition from /context.
func (p *Parser) RemoveVariable(name string) error {
	if !p.SchemaV1() {
		return &crmerrors.JSONPatchValidationException{Op: "remove_variable", Message: "v0 jinja-set variables are not tree-backed and cannot be patched"}
	}
	if err := p.remove(contextPath.Append(name)); err != nil {
		return err
	}
	return p.rebuildV1Variables()
}

func (p *Parser) rebuildV1Variables() error {
	vars, err := tables.BuildVariableTableV1(p.Tree)
	if err != nil {
		return err
	}
	p.Variables = vars
	p.markModified()
	return nil
}

// ConflictMode governs how AddSelector combines a new selector
// expression with one already present on a node's comment.
type ConflictMode int

const (
	ConflictReplace ConflictMode = iota
	ConflictAnd
	ConflictOr
	ConflictIgnore
)

// AddSelector attaches selector to the node at path, honoring mode
// when the node already carries a selector.
func (p *Parser) AddSelector(path parsetree.Path, selector string, mode ConflictMode) error {
	id, ok := p.Tree.Find(path)
	if !ok {
		return &crmerrors.JSONPatchValidationException{Op: "add_selector", Message: "path does not exist: " + path.String()}
	}
	n := p.Tree.Node(id)
	existing, has := tables.ExtractSelector(n.Comment)
	bare := strings.TrimSuffix(strings.TrimPrefix(selector, "["), "]")

	var newSel string
	switch {
	case !has:
		newSel = "[" + bare + "]"
	case mode == ConflictIgnore:
		return nil
	case mode == ConflictReplace:
		newSel = "[" + bare + "]"
	case mode == ConflictAnd:
		newSel = "[" + trimBrackets(existing) + " and " + bare + "]"
	case mode == ConflictOr:
		newSel = "[" + trimBrackets(existing) + " or " + bare + "]"
	default:
		newSel = "[" + bare + "]"
	}

	rest := tables.StripSelector(n.Comment)
	n.Comment = composeComment(rest, newSel)
	p.Selectors = tables.BuildSelectorTable(p.Tree)
	p.markModified()
	return nil
}

// RemoveSelector strips any selector expression from the node at
// path's comment.
func (p *Parser) RemoveSelector(path parsetree.Path) error {
	id, ok := p.Tree.Find(path)
	if !ok {
		return &crmerrors.JSONPatchValidationException{Op: "remove_selector", Message: "path does not exist: " + path.String()}
	}
	n := p.Tree.Node(id)
	n.Comment = tables.StripSelector(n.Comment)
	p.Selectors = tables.BuildSelectorTable(p.Tree)
	p.markModified()
	return nil
}

func trimBrackets(sel string) string {
	return strings.TrimSuffix(strings.TrimPrefix(sel, "["), "]")
}

func composeComment(rest, selector string) string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "# " + selector
	}
	return rest + " " + selector
}

// DepMode governs how AddDependency handles a list that already
// contains an entry for the same package.
type DepMode int

const (
	DepReplace DepMode = iota
	DepExactPosition
	DepSkipIfPresent
)

// packageName extracts the leading token of a dependency spec, e.g.
// "numpy >=1.20" -> "numpy".
func packageName(dep string) string {
	fields := strings.Fields(dep)
	if len(fields) == 0 {
		return dep
	}
	return fields[0]
}

// AddDependency inserts dep into the dependency list at listPath
// (one of Reader.GetDependencyPaths' section paths), applying depMode
// when an entry for the same package name is already present, and
// selMode to reconcile the new entry's selector with one already on a
// replaced entry.
func (p *Parser) AddDependency(listPath parsetree.Path, dep string, depMode DepMode, selMode ConflictMode) error {
	id, ok := p.Tree.Find(listPath)
	if !ok {
		if err := p.addOrSet(listPath, []any{}); err != nil {
			return err
		}
		id, _ = p.Tree.Find(listPath)
	}

	name := packageName(dep)
	children := append([]parsetree.NodeID(nil), p.Tree.Node(id).Children...)
	for i, c := range children {
		if packageName(p.Tree.Node(c).Value.AsString()) != name {
			continue
		}
		switch depMode {
		case DepSkipIfPresent:
			return nil
		case DepExactPosition:
			continue
		default: // DepReplace
			existingComment := p.Tree.Node(c).Comment
			newNode := p.Tree.AddNode(parsetree.Node{Value: parsetree.StringValue(dep), ListMemberFlag: true, Comment: existingComment})
			p.Tree.Node(id).Children[i] = newNode
			if sel, has := tables.ExtractSelector(existingComment); has && selMode != ConflictIgnore {
				return p.AddSelector(listPath.Append(itoa(i)), sel, selMode)
			}
			p.markModified()
			p.Selectors = tables.BuildSelectorTable(p.Tree)
			return nil
		}
	}

	newNode := p.Tree.AddNode(parsetree.Node{Value: parsetree.StringValue(dep), ListMemberFlag: true})
	p.Tree.Node(id).Children = append(p.Tree.Node(id).Children, newNode)
	p.markModified()
	return nil
}

// RemoveDependency removes the first entry of listPath whose package
// name matches dep's.
func (p *Parser) RemoveDependency(listPath parsetree.Path, dep string) error {
	id, ok := p.Tree.Find(listPath)
	if !ok {
		return &crmerrors.JSONPatchValidationException{Op: "remove_dependency", Message: "path does not exist: " + listPath.String()}
	}
	list := p.Tree.Node(id)
	name := packageName(dep)
	for i, c := range list.Children {
		if packageName(p.Tree.Node(c).Value.AsString()) == name {
			list.Children = append(list.Children[:i], list.Children[i+1:]...)
			p.markModified()
			p.Selectors = tables.BuildSelectorTable(p.Tree)
			return nil
		}
	}
	return &crmerrors.JSONPatchValidationException{Op: "remove_dependency", Message: "dependency not found: " + dep}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
