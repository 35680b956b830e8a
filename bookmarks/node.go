package bookmarks

// Node is one bookmark or folder. Optional fields use their zero value for
// absence: ParentID is empty for roots, URL is empty for folders, and
// Children is nil for leaves. A folder with no entries has a non-nil empty
// Children slice.
type Node struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parentId,omitempty"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// IsFolder reports whether n can hold children.
func (n *Node) IsFolder() bool {
	return n.Children != nil
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// CloneTree deep-copies a forest. A nil forest stays nil.
func CloneTree(roots []*Node) []*Node {
	if roots == nil {
		return nil
	}
	out := make([]*Node, len(roots))
	for i, r := range roots {
		out[i] = r.Clone()
	}
	return out
}

// Count returns the number of nodes in the forest.
func Count(roots []*Node) int {
	n := 0
	for _, r := range roots {
		n += 1 + Count(r.Children)
	}
	return n
}
