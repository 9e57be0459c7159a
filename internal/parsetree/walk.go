package parsetree

// Walk visits every non-comment-only node in document order, calling
// fn with the node's id and the path at which it resolves via Find.
// Root itself is visited with an empty path.
func (t *Tree) Walk(fn func(id NodeID, path Path)) {
	t.walk(t.Root(), Path{}, fn)
}

func (t *Tree) walk(id NodeID, path Path, fn func(id NodeID, path Path)) {
	node := t.Node(id)
	if node.commentOnly {
		return
	}
	fn(id, path)

	listIndex := 0
	for _, c := range node.Children {
		child := t.Node(c)
		if child.commentOnly {
			continue
		}
		var childPath Path
		switch {
		case child.KeyFlag:
			childPath = path.Append(child.Key)
		case child.Key == "" && node.KeyFlag && node.Value.Kind == KindSentinel && len(node.Children) == 1 && !child.ListMemberFlag:
			// anonymous value holder of a key node: inherits the key's path
			childPath = path
		case child.ListMemberFlag:
			childPath = path.Append(itoaIndex(listIndex))
			listIndex++
		default:
			childPath = path.Append(itoaIndex(listIndex))
			listIndex++
		}
		t.walk(c, childPath, fn)
	}
}

// IsCommentOnly reports whether id is a standalone top-of-file comment
// node with no key/value of its own.
func (t *Tree) IsCommentOnly(id NodeID) bool {
	return t.Node(id).commentOnly
}

// IsLeaf reports whether id holds a real scalar/multiline value rather
// than structural (sentinel) content.
func (t *Tree) IsLeaf(id NodeID) bool {
	n := t.Node(id)
	return len(n.Children) == 0 && n.Value.Kind != KindSentinel
}

func itoaIndex(i int) string {
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
