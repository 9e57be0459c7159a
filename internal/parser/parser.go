package parser

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/reader"
)

// Parser embeds Reader's read-only contract and adds the mutation
// operations of C6 (spec.md Sec. 4.5): a recipe parser is a reader
// that also knows how to patch itself and report what changed.
type Parser struct {
	*reader.Reader

	initialText string
	modified    bool
}

// New parses text into a Parser, capturing its rendered form as the
// baseline Diff()/IsModified() compare against.
func New(text string, forceRemoveJinja bool) (*Parser, error) {
	r, err := reader.New(text, forceRemoveJinja)
	if err != nil {
		return nil, err
	}
	return FromReader(r), nil
}

// FromReader wraps an already-built Reader, taking its current
// rendering as the unmodified baseline.
func FromReader(r *reader.Reader) *Parser {
	return &Parser{Reader: r, initialText: r.Render(false)}
}

func (p *Parser) markModified() { p.modified = true }

// IsModified reports whether any patch operation has succeeded since
// construction.
func (p *Parser) IsModified() bool { return p.modified }

// Diff returns a unified diff between the tree's initial rendered text
// and its current rendered text (spec.md Sec. 4.5).
func (p *Parser) Diff() (string, error) {
	current := p.Render(false)
	if current == p.initialText {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(p.initialText),
		B:        difflib.SplitLines(current),
		FromFile: "a",
		ToFile:   "b",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// valueAtID converts the subtree at id to a Go-native value the same
// way Reader.GetValue does for a resolved path.
func (p *Parser) valueAtID(id parsetree.NodeID) (any, error) {
	val, err := reader.NodeToObject(p.Tree, id)
	if err != nil {
		return nil, err
	}
	return val, nil
}

// remove deletes the node at path from its parent's Children. Removing
// the root, or a path that does not resolve, is an error.
func (p *Parser) remove(path parsetree.Path) error {
	parentPath, last, ok := path.Parent()
	if !ok {
		return &crmerrors.JSONPatchValidationException{Op: "remove", Message: "cannot remove root"}
	}
	parentID, ok := p.Tree.Find(parentPath)
	if !ok {
		return &crmerrors.JSONPatchValidationException{Op: "remove", Message: "parent path does not exist: " + parentPath.String()}
	}
	parent := p.Tree.Node(parentID)

	if idx, isIdx := parsetree.IsIndex(last); isIdx && !hasKeyedChildren(p.Tree, parent) {
		if idx < 0 || idx >= len(parent.Children) {
			return &crmerrors.JSONPatchValidationException{Op: "remove", Message: "index out of range: " + last}
		}
		parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
		return nil
	}

	for i, c := range parent.Children {
		if p.Tree.Node(c).Key == last {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return nil
		}
	}
	return &crmerrors.JSONPatchValidationException{Op: "remove", Message: "path does not exist: " + path.String()}
}

func hasKeyedChildren(tree *parsetree.Tree, n *parsetree.Node) bool {
	for _, c := range n.Children {
		if tree.Node(c).Key != "" {
			return true
		}
	}
	return false
}

// addOrSet is addOrSetWithComment with no comment to preserve.
func (p *Parser) addOrSet(path parsetree.Path, value any) error {
	return p.addOrSetWithComment(path, value, "")
}

// addOrSetWithComment inserts or overwrites the node at path with
// value, attaching comment to the new/overwritten node. It enforces
// the "at most one new level of path depth" rule from spec.md Sec. 4.5:
// path's parent must already exist, or path's grandparent must exist
// and the parent is the single new mapping level being created.
func (p *Parser) addOrSetWithComment(path parsetree.Path, value any, comment string) error {
	parentPath, last, ok := path.Parent()
	if !ok {
		return &crmerrors.JSONPatchValidationException{Op: "add", Message: "cannot replace root"}
	}

	parentID, ok := p.Tree.Find(parentPath)
	if !ok {
		grandParentPath, parentKey, ok2 := parentPath.Parent()
		if !ok2 {
			return &crmerrors.JSONPatchValidationException{Op: "add", Message: "path creates more than one new level of depth: " + path.String()}
		}
		grandID, ok3 := p.Tree.Find(grandParentPath)
		if !ok3 {
			return &crmerrors.JSONPatchValidationException{Op: "add", Message: "path creates more than one new level of depth: " + path.String()}
		}
		parentID = p.addMappingChild(grandID, parentKey)
	}

	return p.setChild(parentID, last, value, comment)
}

// addMappingChild creates a new empty keyed mapping node under parent,
// keyed by key, and returns its id.
func (p *Parser) addMappingChild(parentID parsetree.NodeID, key string) parsetree.NodeID {
	newID := p.Tree.AddNode(parsetree.Node{Key: key, KeyFlag: true, Value: parsetree.Sentinel()})
	parent := p.Tree.Node(parentID)
	parent.Children = append(parent.Children, newID)
	return newID
}

// setChild inserts or overwrites the child named/indexed last under
// parentID with value.
// setChild inserts or overwrites the child named/indexed last under
// parentID with value. It deliberately does not hold a *Node across
// the buildSubtree/buildKeyedSubtree calls below: those grow the
// tree's node arena and can reallocate its backing array, which would
// leave an earlier-obtained parent pointer writing into stale memory.
func (p *Parser) setChild(parentID parsetree.NodeID, last string, value any, comment string) error {
	parent := p.Tree.Node(parentID)
	idx, isIdx := parsetree.IsIndex(last)
	listInsert := isIdx && !hasKeyedChildren(p.Tree, parent)

	if listInsert {
		if idx < 0 || idx > len(parent.Children) {
			return &crmerrors.JSONPatchValidationException{Op: "add", Message: "index out of range: " + last}
		}
		newNode := p.buildSubtree(value)
		p.Tree.Node(newNode).Comment = comment
		p.Tree.Node(newNode).ListMemberFlag = true

		parent = p.Tree.Node(parentID)
		children := append(parent.Children, 0)
		copy(children[idx+1:], children[idx:])
		children[idx] = newNode
		parent.Children = children
		return nil
	}

	existingIdx := -1
	existingComment := ""
	for i, c := range parent.Children {
		if p.Tree.Node(c).Key == last {
			existingIdx = i
			existingComment = p.Tree.Node(c).Comment
			break
		}
	}
	preserved := comment
	if preserved == "" {
		preserved = existingComment
	}

	keyedNode := p.buildKeyedSubtree(last, value)
	p.Tree.Node(keyedNode).Comment = preserved

	parent = p.Tree.Node(parentID)
	if existingIdx >= 0 {
		parent.Children[existingIdx] = keyedNode
	} else {
		parent.Children = append(parent.Children, keyedNode)
	}
	return nil
}

// buildSubtree constructs a standalone (unkeyed) node holding value,
// for use as a list item or as the anonymous scalar child of a keyed
// node.
func (p *Parser) buildSubtree(value any) parsetree.NodeID {
	switch v := value.(type) {
	case map[string]any:
		id := p.Tree.AddNode(parsetree.Node{Value: parsetree.Sentinel()})
		for k, cv := range v {
			child := p.buildKeyedSubtree(k, cv)
			p.Tree.Node(id).Children = append(p.Tree.Node(id).Children, child)
		}
		return id
	case []any:
		id := p.Tree.AddNode(parsetree.Node{Value: parsetree.Sentinel()})
		for _, cv := range v {
			child := p.buildSubtree(cv)
			p.Tree.Node(child).ListMemberFlag = true
			p.Tree.Node(id).Children = append(p.Tree.Node(id).Children, child)
		}
		return id
	default:
		return p.Tree.AddNode(parsetree.Node{Value: ScalarValue(v)})
	}
}

// buildKeyedSubtree constructs a KeyFlag node named key holding value,
// wiring it the way the parser (C3) wires a mapping entry: a scalar
// value lives as the node's sole anonymous child, while a nested
// mapping/list's children are pushed up to be this node's own
// Children (the same shape Tree.descendToValue/childValueNode expect).
func (p *Parser) buildKeyedSubtree(key string, value any) parsetree.NodeID {
	switch v := value.(type) {
	case map[string]any, []any:
		inner := p.buildSubtree(v)
		id := p.Tree.AddNode(parsetree.Node{Key: key, KeyFlag: true, Value: parsetree.Sentinel(), Children: p.Tree.Node(inner).Children})
		return id
	default:
		scalar := p.Tree.AddNode(parsetree.Node{Value: ScalarValue(v)})
		id := p.Tree.AddNode(parsetree.Node{Key: key, KeyFlag: true, Value: parsetree.Sentinel(), Children: []parsetree.NodeID{scalar}})
		return id
	}
}

func ScalarValue(v any) parsetree.Value {
	switch t := v.(type) {
	case nil:
		return parsetree.Null()
	case bool:
		return parsetree.BoolValue(t)
	case string:
		return parsetree.StringValue(t)
	case int:
		return parsetree.IntValue(int64(t))
	case int64:
		return parsetree.IntValue(t)
	case float64:
		return parsetree.FloatValue(t)
	default:
		return parsetree.Null()
	}
}
