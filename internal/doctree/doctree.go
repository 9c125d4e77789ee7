package doctree

import (
	"iter"
	"strings"
)

// NodeID is a handle into a Tree's node arena.
type NodeID int

// NoParent is the parent handle of the root node.
const NoParent NodeID = -1

// Root is the handle of every tree's root node.
const Root NodeID = 0

// RootStyle is the style of the synthetic root node.
const RootStyle = "root"

// Node is one element of a parsed document outline.
type Node struct {
	Text     string   // Paragraph or line text (empty for the root)
	Style    string   // Paragraph style name or synthetic tag such as "Table_0_Row_1"
	Level    int      // Heading depth, or parent level + 1 for body content
	Parent   NodeID   // Non-owning back reference; NoParent for the root
	Children []NodeID // In insertion order
}

// Tree is an outline of a document. Nodes live in a flat arena and refer to
// each other by NodeID, so parent links never own anything.
type Tree struct {
	Title string
	nodes []Node
}

// New returns a tree holding only the root node.
func New(title string) *Tree {
	return &Tree{
		Title: title,
		nodes: []Node{{Style: RootStyle, Level: 0, Parent: NoParent}},
	}
}

// Append adds a child under parent and returns its handle.
func (t *Tree) Append(parent NodeID, text, style string, level int) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{Text: text, Style: style, Level: level, Parent: parent})
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Node returns the node for id. The pointer is only valid until the next Append.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Walk yields (node, depth) pairs in depth-first pre-order starting at from,
// which is reported at depth 0. Stopping early is allowed.
func (t *Tree) Walk(from NodeID) iter.Seq2[NodeID, int] {
	return func(yield func(NodeID, int) bool) {
		t.walk(from, 0, yield)
	}
}

func (t *Tree) walk(id NodeID, depth int, yield func(NodeID, int) bool) bool {
	if !yield(id, depth) {
		return false
	}
	for _, c := range t.nodes[id].Children {
		if !t.walk(c, depth+1, yield) {
			return false
		}
	}
	return true
}

// Subnodes returns every descendant of id in depth-first order, excluding id.
func (t *Tree) Subnodes(id NodeID) []NodeID {
	var out []NodeID
	for n, depth := range t.Walk(id) {
		if depth > 0 {
			out = append(out, n)
		}
	}
	return out
}

// FindText returns nodes whose text contains query, ignoring case.
func (t *Tree) FindText(query string) []NodeID {
	q := strings.ToLower(query)
	var out []NodeID
	for n := range t.Walk(Root) {
		if strings.Contains(strings.ToLower(t.nodes[n].Text), q) {
			out = append(out, n)
		}
	}
	return out
}

// FindTextWithSubnodes returns, for every node whose text contains query
// (ignoring case), that node followed by its whole subtree. A match nested
// inside an earlier match is emitted a second time.
func (t *Tree) FindTextWithSubnodes(query string) []NodeID {
	var out []NodeID
	for _, n := range t.FindText(query) {
		out = append(out, n)
		out = append(out, t.Subnodes(n)...)
	}
	return out
}

// FindByStyle returns nodes with exactly the given style.
func (t *Tree) FindByStyle(style string) []NodeID {
	var out []NodeID
	for n := range t.Walk(Root) {
		if t.nodes[n].Style == style {
			out = append(out, n)
		}
	}
	return out
}

// Render draws the tree as an indented bullet list: one "- text" line per
// non-empty node, indented two spaces per depth.
func (t *Tree) Render() string {
	var sb strings.Builder
	for n, depth := range t.Walk(Root) {
		text := t.nodes[n].Text
		if text == "" {
			continue
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("- ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// JoinText concatenates the text of ids, each followed by a newline.
func (t *Tree) JoinText(ids []NodeID) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(t.nodes[id].Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
