package render

import "fmt"

// PatchOp is the type of host tree mutation.
type PatchOp uint8

const (
	PatchSetText    PatchOp = 0x01 // Update text content
	PatchSetAttr    PatchOp = 0x02 // Set/update attribute
	PatchInsertNode PatchOp = 0x04 // Insert node into the live tree
	PatchRemoveNode PatchOp = 0x05 // Remove node from the live tree
	PatchMoveNode   PatchOp = 0x06 // Move node to new position
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	default:
		return "Unknown"
	}
}

// Patch records a single mutation of the live tree.
type Patch struct {
	Op     PatchOp
	Node   *Node
	End    *Node  // Last node of a sibling range, nil for a single node
	Parent *Node  // For InsertNode/MoveNode
	Before *Node  // Insert position, nil for append
	Key    string // Attribute key (for SetAttr)
	Value  string
}

// String returns a compact description of the patch.
func (p Patch) String() string {
	switch p.Op {
	case PatchSetText:
		return fmt.Sprintf("%s #%d %q", p.Op, p.Node.ID, p.Value)
	case PatchSetAttr:
		return fmt.Sprintf("%s #%d %s=%q", p.Op, p.Node.ID, p.Key, p.Value)
	case PatchInsertNode, PatchMoveNode:
		before := 0
		if p.Before != nil {
			before = p.Before.ID
		}
		return fmt.Sprintf("%s %s into #%d before #%d", p.Op, p.target(), p.Parent.ID, before)
	default:
		return fmt.Sprintf("%s %s", p.Op, p.target())
	}
}

func (p Patch) target() string {
	if p.End != nil && p.End != p.Node {
		return fmt.Sprintf("#%d..#%d", p.Node.ID, p.End.ID)
	}
	return fmt.Sprintf("#%d", p.Node.ID)
}

// Count returns how many patches have the given op.
func Count(patches []Patch, op PatchOp) int {
	n := 0
	for _, p := range patches {
		if p.Op == op {
			n++
		}
	}
	return n
}
