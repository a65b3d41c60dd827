package render

// Kind is the type of a host node.
type Kind uint8

const (
	ElementNode Kind = iota
	TextNode
	CommentNode
	FragmentNode
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case FragmentNode:
		return "fragment"
	default:
		return "unknown"
	}
}

// Attr is a single element attribute.
type Attr struct {
	Key   string
	Value string
}

// Node is a host tree node. Children are kept in an intrusive doubly-linked
// list so insertion, removal and moves are O(1).
type Node struct {
	ID    int
	Kind  Kind
	Tag   string
	Text  string
	Attrs []Attr

	// Inert is set while the owning effect is paused.
	Inert bool

	doc    *Document
	parent *Node
	first  *Node
	last   *Node
	next   *Node
	prev   *Node
}

// Document returns the document that created this node.
func (n *Node) Document() *Document { return n.doc }

// Parent returns the parent node, or nil.
func (n *Node) Parent() *Node { return n.parent }

// FirstChild returns the first child, or nil.
func (n *Node) FirstChild() *Node { return n.first }

// LastChild returns the last child, or nil.
func (n *Node) LastChild() *Node { return n.last }

// NextSibling returns the next sibling, or nil.
func (n *Node) NextSibling() *Node { return n.next }

// PrevSibling returns the previous sibling, or nil.
func (n *Node) PrevSibling() *Node { return n.prev }

// Children returns the child nodes in order.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.first; c != nil; c = c.next {
		out = append(out, c)
	}
	return out
}

// Connected reports whether the node is attached to its document's root.
func (n *Node) Connected() bool {
	for p := n; p != nil; p = p.parent {
		if n.doc != nil && p == n.doc.root {
			return true
		}
	}
	return false
}

// AppendChild appends child to n. A fragment child is unpacked: its children
// are moved over and the fragment is left empty.
func (n *Node) AppendChild(child *Node) {
	n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref (or at the end when ref is nil).
// If child is already in a tree it is moved.
func (n *Node) InsertBefore(child, ref *Node) {
	if child == nil || child == ref {
		return
	}
	if ref != nil && ref.parent != n {
		panic("render: reference node is not a child of this node")
	}

	if child.Kind == FragmentNode {
		for c := child.first; c != nil; {
			next := c.next
			n.InsertBefore(c, ref)
			c = next
		}
		return
	}

	if child.parent == n && child.next == ref {
		return
	}

	wasConnected := child.parent != nil && child.Connected()
	if child.parent != nil {
		child.parent.unlink(child)
	}
	n.link(child, ref)

	if n.doc == nil {
		return
	}
	connected := n.Connected()
	switch {
	case wasConnected && connected:
		n.doc.record(Patch{Op: PatchMoveNode, Node: child, Parent: n, Before: ref})
	case connected:
		n.doc.record(Patch{Op: PatchInsertNode, Node: child, Parent: n, Before: ref})
	case wasConnected:
		n.doc.record(Patch{Op: PatchRemoveNode, Node: child})
	}
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	if n.parent == nil {
		return
	}
	wasConnected := n.Connected()
	n.parent.unlink(n)
	if wasConnected && n.doc != nil {
		n.doc.record(Patch{Op: PatchRemoveNode, Node: n})
	}
}

// SetText updates the content of a text or comment node.
func (n *Node) SetText(s string) {
	if n.Text == s {
		return
	}
	n.Text = s
	if n.doc != nil && n.Connected() {
		n.doc.record(Patch{Op: PatchSetText, Node: n, Value: s})
	}
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(key, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			if n.Attrs[i].Value == value {
				return
			}
			n.Attrs[i].Value = value
			n.recordAttr(key, value)
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: value})
	n.recordAttr(key, value)
}

// Attr returns an attribute value.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func (n *Node) recordAttr(key, value string) {
	if n.doc != nil && n.Connected() {
		n.doc.record(Patch{Op: PatchSetAttr, Node: n, Key: key, Value: value})
	}
}

func (n *Node) link(child, ref *Node) {
	child.parent = n
	if ref == nil {
		child.prev = n.last
		child.next = nil
		if n.last != nil {
			n.last.next = child
		} else {
			n.first = child
		}
		n.last = child
		return
	}
	child.next = ref
	child.prev = ref.prev
	if ref.prev != nil {
		ref.prev.next = child
	} else {
		n.first = child
	}
	ref.prev = child
}

func (n *Node) unlink(child *Node) {
	if child.prev != nil {
		child.prev.next = child.next
	} else {
		n.first = child.next
	}
	if child.next != nil {
		child.next.prev = child.prev
	} else {
		n.last = child.prev
	}
	child.parent = nil
	child.next = nil
	child.prev = nil
}

// Range calls fn for every sibling from start to end inclusive. fn may detach
// the node it is given.
func Range(start, end *Node, fn func(*Node)) {
	for n := start; n != nil; {
		next := n.next
		fn(n)
		if n == end {
			return
		}
		n = next
	}
}
