package loader

import (
	"testing"

	"github.com/dgallion1/docassess/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocParser_HeadingHierarchy(t *testing.T) {
	p := NewDocParser("doc")
	p.AddParagraph("Introduction", "Heading1")
	p.AddParagraph("Intro text.", "")
	p.AddParagraph("Background", "Heading2")
	p.AddParagraph("Background text.", "BodyText")
	p.AddParagraph("Contacts", "heading 1")
	p.AddParagraph("Call us.", "")
	tree := p.Tree()

	var texts []string
	for id := range tree.Walk(doctree.Root) {
		texts = append(texts, tree.Node(id).Text)
	}
	// Depth-first order equals document order.
	assert.Equal(t, []string{"", "Introduction", "Intro text.", "Background", "Background text.", "Contacts", "Call us."}, texts)

	root := tree.Node(doctree.Root)
	require.Len(t, root.Children, 2)

	intro := tree.Node(root.Children[0])
	assert.Equal(t, "Heading 1", intro.Style)
	assert.Equal(t, 1, intro.Level)
	require.Len(t, intro.Children, 2)

	body := tree.Node(intro.Children[0])
	assert.Equal(t, NormalStyle, body.Style)
	assert.Equal(t, 2, body.Level)

	bg := tree.Node(intro.Children[1])
	assert.Equal(t, "Heading 2", bg.Style)
	assert.Equal(t, 2, bg.Level)
	require.Len(t, bg.Children, 1)
	assert.Equal(t, "BodyText", tree.Node(bg.Children[0]).Style)
	assert.Equal(t, 3, tree.Node(bg.Children[0]).Level)
}

func TestDocParser_LevelInvariant(t *testing.T) {
	p := NewDocParser("doc")
	p.AddParagraph("A", "Heading 1")
	p.AddParagraph("a1", "")
	p.AddParagraph("B", "Heading 2")
	p.AddParagraph("b1", "")
	p.AddParagraph("C", "Heading 2")
	p.AddParagraph("D", "Heading 1")
	p.AddParagraph("d1", "")
	tree := p.Tree()

	for id := range tree.Walk(doctree.Root) {
		if id == doctree.Root {
			continue
		}
		n := tree.Node(id)
		if lvl, ok := HeadingLevel(n.Style); ok {
			assert.Equal(t, lvl, n.Level, "heading %q", n.Text)
		} else {
			assert.Equal(t, tree.Node(n.Parent).Level+1, n.Level, "body %q", n.Text)
		}
	}
}

func TestDocParser_BodyBeforeFirstHeadingAttachesToRoot(t *testing.T) {
	p := NewDocParser("doc")
	p.AddParagraph("Preamble", "")
	p.AddParagraph("Title", "Heading 1")
	tree := p.Tree()

	root := tree.Node(doctree.Root)
	require.Len(t, root.Children, 2)
	assert.Equal(t, 1, tree.Node(root.Children[0]).Level)
	assert.Equal(t, "Title", tree.Node(root.Children[1]).Text)
}

func TestDocParser_SkippedHeadingLevels(t *testing.T) {
	p := NewDocParser("doc")
	p.AddParagraph("H1", "Heading 1")
	p.AddParagraph("H3", "Heading 3")
	p.AddParagraph("H3 body", "")
	tree := p.Tree()

	h1 := tree.Node(tree.Node(doctree.Root).Children[0])
	require.Len(t, h1.Children, 1)
	h3 := tree.Node(h1.Children[0])
	assert.Equal(t, 3, h3.Level)
	require.Len(t, h3.Children, 1)
	assert.Equal(t, 4, tree.Node(h3.Children[0]).Level)

	// Popping lowers the running level by one per ancestor, so an H2 after
	// an H1 > H3 chain climbs past the H1.
	p.AddParagraph("H2", "Heading 2")
	root := tree.Node(doctree.Root)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "H2", tree.Node(root.Children[1]).Text)
}

func TestDocParser_Tables(t *testing.T) {
	p := NewDocParser("doc")
	p.AddParagraph("Contacts", "Heading 1")
	p.AddTable([][]string{
		{" Name ", "Phone"},
		{"Ann", "555"},
	})
	p.AddTable([][]string{{"it's", "x"}})
	tree := p.Tree()

	rows := tree.Node(tree.Node(doctree.Root).Children[0]).Children
	require.Len(t, rows, 3)

	first := tree.Node(rows[0])
	assert.Equal(t, "['Name', 'Phone']", first.Text)
	assert.Equal(t, "Table_0_Row_1", first.Style)
	assert.Equal(t, 2, first.Level)

	assert.Equal(t, "Table_0_Row_2", tree.Node(rows[1]).Style)

	third := tree.Node(rows[2])
	assert.Equal(t, "Table_1_Row_1", third.Style)
	assert.Equal(t, `["it's", 'x']`, third.Text)
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		level int
		ok    bool
	}{
		{"Heading 1", 1, true},
		{"Heading2", 2, true},
		{"heading 10", 10, true},
		{"Normal", 0, false},
		{"Title", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		level, ok := HeadingLevel(tt.style)
		assert.Equal(t, tt.ok, ok, "style %q", tt.style)
		assert.Equal(t, tt.level, level, "style %q", tt.style)
	}
}

func TestPyList(t *testing.T) {
	assert.Equal(t, "[]", pyList(nil))
	assert.Equal(t, "['']", pyList([]string{""}))
	assert.Equal(t, `['a\\b']`, pyList([]string{`a\b`}))
	assert.Equal(t, `['say "hi"', "don't"]`, pyList([]string{`say "hi"`, "don't"}))
	assert.Equal(t, `['both \' and "']`, pyList([]string{`both ' and "`}))
}
