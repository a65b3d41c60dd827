package render

// MoveRange moves the sibling range [start, end] into parent before ref (or
// to the end when ref is nil). The move is recorded as a single patch.
func MoveRange(start, end, parent, ref *Node) {
	if start == nil || parent == nil {
		return
	}
	if ref != nil && ref.parent != parent {
		panic("render: reference node is not a child of the target")
	}
	if start.parent == parent && end.next == ref {
		return
	}

	wasConnected := start.parent != nil && start.Connected()
	for n := start; n != nil; {
		next := n.next
		if n.parent != nil {
			n.parent.unlink(n)
		}
		parent.link(n, ref)
		if n == end {
			break
		}
		n = next
	}

	doc := parent.doc
	if doc == nil {
		return
	}
	connected := parent.Connected()
	switch {
	case wasConnected && connected:
		doc.record(Patch{Op: PatchMoveNode, Node: start, End: end, Parent: parent, Before: ref})
	case connected:
		doc.record(Patch{Op: PatchInsertNode, Node: start, End: end, Parent: parent, Before: ref})
	case wasConnected:
		doc.record(Patch{Op: PatchRemoveNode, Node: start, End: end})
	}
}

// RemoveRange detaches the sibling range [start, end], recording one patch.
func RemoveRange(start, end *Node) {
	if start == nil || start.parent == nil {
		return
	}
	parent := start.parent
	wasConnected := start.Connected()
	Range(start, end, func(n *Node) {
		if n.parent == parent {
			parent.unlink(n)
		}
	})
	if wasConnected && parent.doc != nil {
		parent.doc.record(Patch{Op: PatchRemoveNode, Node: start, End: end})
	}
}

// SetInert marks the elements of [start, end]. Descendants inherit inertness
// from them.
func SetInert(start, end *Node, inert bool) {
	Range(start, end, func(n *Node) { setInert(n, inert) })
}

func setInert(n *Node, inert bool) {
	if n.Kind == ElementNode {
		n.Inert = inert
	}
}
