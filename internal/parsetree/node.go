package parsetree

import (
	"strconv"
	"strings"
)

// NodeID indexes into a Tree's arena. The zero value is the root.
type NodeID int

// CommentPosition tags where a node's comment renders.
type CommentPosition int

const (
	CommentDefault CommentPosition = iota
	CommentTopOfFile
)

// MultilineVariant identifies the YAML block-scalar style a node's
// value was written with, retained for byte-faithful round-tripping
// (spec.md Sec. 3, Sec. 4.3).
type MultilineVariant int

const (
	MultilineNone MultilineVariant = iota
	MultilinePipe
	MultilinePipePlus
	MultilinePipeMinus
	MultilineFold
	MultilineFoldPlus
	MultilineFoldMinus
	MultilineAngle
	MultilineAnglePlus
	MultilineAngleMinus
	MultilineBackslashQuote
)

// Marker returns the textual marker this variant renders with.
func (m MultilineVariant) Marker() string {
	switch m {
	case MultilinePipe:
		return "|"
	case MultilinePipePlus:
		return "|+"
	case MultilinePipeMinus:
		return "|-"
	case MultilineFold:
		return ">"
	case MultilineFoldPlus:
		return ">+"
	case MultilineFoldMinus:
		return ">-"
	case MultilineAngle:
		return "<"
	case MultilineAnglePlus:
		return "<+"
	case MultilineAngleMinus:
		return "<-"
	case MultilineBackslashQuote:
		return `"\`
	default:
		return ""
	}
}

// Node is the atomic unit of the parse tree (spec.md Sec. 3).
type Node struct {
	// Key is the mapping key text for a key node. Empty for the root,
	// for scalar children of a key node, and for plain list members.
	Key string

	Value Value

	// Children holds, in document order, this node's child NodeIDs.
	Children []NodeID

	Comment    string
	CommentPos CommentPosition

	KeyFlag        bool // this node represents a mapping key
	ListMemberFlag bool // this node is preceded by "-"

	MultilineVariant MultilineVariant

	// commentOnly marks a standalone top-of-file comment line modeled
	// as a structural child of root with no key/value of its own.
	commentOnly bool
}

// Tree is the arena-indexed parse tree for one recipe document.
type Tree struct {
	Nodes       []Node
	SchemaV1    bool
	sourceModel bool // not set or read anywhere in this module
}

// NewTree creates an empty tree with a sentinel root at NodeID 0.
func NewTree() *Tree {
	t := &Tree{}
	t.Nodes = append(t.Nodes, Node{Value: Sentinel()})
	return t
}

// Root is always NodeID 0.
func (t *Tree) Root() NodeID { return 0 }

// Node returns a pointer to the node with the given id for in-place
// mutation. Callers must not retain pointers across structural
// mutations that may grow t.Nodes and invalidate backing storage
// (reload via Node(id) after any AddNode/RemoveNode call).
func (t *Tree) Node(id NodeID) *Node { return &t.Nodes[id] }

// AddNode appends a new node to the arena and returns its id.
func (t *Tree) AddNode(n Node) NodeID {
	t.Nodes = append(t.Nodes, n)
	return NodeID(len(t.Nodes) - 1)
}

// Path is a JSON-Pointer-style sequence of components: mapping keys or
// decimal list indices (spec.md Sec. 3).
type Path []string

// ParsePath parses a string like "/a/b/0/c" into its components. "/"
// alone denotes the root and parses to an empty Path.
func ParsePath(s string) Path {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Path{}
	}
	return strings.Split(s, "/")
}

// String renders the path back to its JSON-Pointer form.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	return "/" + strings.Join(p, "/")
}

// Append returns a new path with ext's components appended, handling
// leading/trailing slash normalization the way
// Reader.append_to_path does (spec.md Sec. 4.5).
func (p Path) Append(ext string) Path {
	extPath := ParsePath(ext)
	out := make(Path, 0, len(p)+len(extPath))
	out = append(out, p...)
	out = append(out, extPath...)
	return out
}

// Parent returns all but the last component, and the last component.
func (p Path) Parent() (Path, string, bool) {
	if len(p) == 0 {
		return nil, "", false
	}
	return p[:len(p)-1], p[len(p)-1], true
}

// IsIndex reports whether component c parses as a non-negative decimal
// list index, returning it if so.
func IsIndex(c string) (int, bool) {
	if c == "" {
		return 0, false
	}
	for _, r := range c {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(c)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Find navigates from root following path's components, matching
// mapping keys by Key and list components by decimal index into
// Children. Returns false if any component cannot be resolved.
func (t *Tree) Find(path Path) (NodeID, bool) {
	cur := t.Root()
	for _, comp := range path {
		node := t.Node(cur)
		if idx, ok := IsIndex(comp); ok && !hasKeyedChildren(t, node) {
			if idx < 0 || idx >= len(node.Children) {
				return 0, false
			}
			cur = node.Children[idx]
			continue
		}
		found := false
		for _, childID := range node.Children {
			child := t.Node(childID)
			if child.Key == comp {
				cur = childID
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
		cur = t.descendToValue(cur)
	}
	return cur, true
}

// descendToValue unwraps a KeyFlag node down to the anonymous scalar
// or multiline child that holds its actual value. Keys whose value is
// a nested mapping or list have their children assigned directly
// (parseMappingEntry's "push" path) and are returned unchanged.
func (t *Tree) descendToValue(id NodeID) NodeID {
	n := t.Node(id)
	if !n.KeyFlag || n.Value.Kind != KindSentinel || len(n.Children) != 1 {
		return id
	}
	child := t.Node(n.Children[0])
	if child.Key == "" && !child.KeyFlag && !child.ListMemberFlag {
		return n.Children[0]
	}
	return id
}

func hasKeyedChildren(t *Tree, n *Node) bool {
	for _, c := range n.Children {
		if t.Node(c).Key != "" {
			return true
		}
	}
	return false
}

// ChildByKey returns the direct child of n with the given key.
func (t *Tree) ChildByKey(id NodeID, key string) (NodeID, bool) {
	for _, c := range t.Node(id).Children {
		if t.Node(c).Key == key {
			return c, true
		}
	}
	return 0, false
}
