// Package render provides the host tree that reactive effects write to.
//
// A Document owns a live tree rooted at Root(). Nodes created by the document
// start detached; inserting them under the root makes them live. Every
// mutation of the live tree (insert, remove, move, text and attribute
// updates) is recorded as a Patch, so callers can observe exactly what a
// commit changed:
//
//	doc := render.NewDocument()
//	list := doc.CreateElement("ul")
//	doc.Root().AppendChild(list)
//	doc.TakePatches() // [InsertNode #2 into #1 before #0]
//
// Fragments are offscreen containers. Content moved into a fragment leaves
// the live tree without being destroyed, and inserting the fragment later
// moves its children back.
//
// HTML and Text serialize the live tree. Text and attribute values are
// escaped.
package render
