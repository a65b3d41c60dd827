package render

import "strings"

// Document owns a live host tree and records every mutation applied to it.
type Document struct {
	root    *Node
	nextID  int
	patches []Patch
}

// NewDocument creates an empty document with a root element.
func NewDocument() *Document {
	d := &Document{}
	d.root = d.newNode(ElementNode)
	d.root.Tag = "root"
	return d
}

// Root returns the root element. Nodes under it are "live".
func (d *Document) Root() *Node { return d.root }

func (d *Document) newNode(kind Kind) *Node {
	d.nextID++
	return &Node{ID: d.nextID, Kind: kind, doc: d}
}

// CreateElement creates a detached element.
func (d *Document) CreateElement(tag string, attrs ...Attr) *Node {
	n := d.newNode(ElementNode)
	n.Tag = tag
	n.Attrs = append(n.Attrs, attrs...)
	return n
}

// CreateText creates a detached text node.
func (d *Document) CreateText(s string) *Node {
	n := d.newNode(TextNode)
	n.Text = s
	return n
}

// CreateComment creates a detached comment node. Comments are used as
// anchors for blocks and are invisible in Text output.
func (d *Document) CreateComment(s string) *Node {
	n := d.newNode(CommentNode)
	n.Text = s
	return n
}

// CreateFragment creates an offscreen container. Inserting a fragment moves
// its children.
func (d *Document) CreateFragment() *Node {
	return d.newNode(FragmentNode)
}

// Anchor creates a comment anchor appended to parent.
func (d *Document) Anchor(parent *Node) *Node {
	a := d.CreateComment("")
	parent.AppendChild(a)
	return a
}

// AnchorBefore creates a comment anchor inserted before ref.
func (d *Document) AnchorBefore(ref *Node) *Node {
	a := d.CreateComment("")
	ref.parent.InsertBefore(a, ref)
	return a
}

// Patches returns a copy of the recorded patches.
func (d *Document) Patches() []Patch {
	out := make([]Patch, len(d.patches))
	copy(out, d.patches)
	return out
}

// TakePatches returns the recorded patches and clears the log.
func (d *Document) TakePatches() []Patch {
	out := d.patches
	d.patches = nil
	return out
}

func (d *Document) record(p Patch) {
	d.patches = append(d.patches, p)
}

// HTML serializes the live tree.
func (d *Document) HTML() string {
	var b strings.Builder
	for c := d.root.first; c != nil; c = c.next {
		writeHTML(&b, c)
	}
	return b.String()
}

// Text returns the concatenated text content of the live tree.
func (d *Document) Text() string {
	return TextContent(d.root)
}

// TextContent returns the concatenated text of n's subtree, ignoring comments.
func TextContent(n *Node) string {
	var b strings.Builder
	writeText(&b, n)
	return b.String()
}

func writeText(b *strings.Builder, n *Node) {
	switch n.Kind {
	case TextNode:
		b.WriteString(n.Text)
	case ElementNode, FragmentNode:
		for c := n.first; c != nil; c = c.next {
			writeText(b, c)
		}
	}
}

// HTML serializes a single subtree.
func HTML(n *Node) string {
	var b strings.Builder
	writeHTML(&b, n)
	return b.String()
}

func writeHTML(b *strings.Builder, n *Node) {
	switch n.Kind {
	case TextNode:
		b.WriteString(escape(n.Text, false))
	case CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Text)
		b.WriteString("-->")
	case FragmentNode:
		for c := n.first; c != nil; c = c.next {
			writeHTML(b, c)
		}
	case ElementNode:
		b.WriteByte('<')
		b.WriteString(n.Tag)
		for _, a := range n.Attrs {
			writeAttr(b, a)
		}
		if n.Inert {
			b.WriteString(" inert")
		}
		b.WriteByte('>')
		if isVoidElement(n.Tag) {
			return
		}
		for c := n.first; c != nil; c = c.next {
			writeHTML(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteByte('>')
	}
}

func writeAttr(b *strings.Builder, a Attr) {
	if isBooleanAttr(a.Key) {
		switch a.Value {
		case "false":
			return
		case "", "true":
			b.WriteByte(' ')
			b.WriteString(a.Key)
			return
		}
	}
	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteString(`="`)
	b.WriteString(escape(a.Value, true))
	b.WriteByte('"')
}
