package loader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docassess/internal/doctree"
)

// NormalStyle is assigned to paragraphs without an explicit style.
const NormalStyle = "Normal"

var headingStyleRe = regexp.MustCompile(`(?i)^heading\s*(\d+)`)

// DocParser builds a heading outline from Word body elements fed in
// document order. Headings nest by level; body paragraphs and table rows
// become leaves of the current heading.
type DocParser struct {
	tree    *doctree.Tree
	current doctree.NodeID
	level   int
	tables  int
}

// NewDocParser returns a parser holding an empty tree.
func NewDocParser(title string) *DocParser {
	return &DocParser{
		tree:    doctree.New(title),
		current: doctree.Root,
	}
}

// Tree returns the outline built so far.
func (p *DocParser) Tree() *doctree.Tree {
	return p.tree
}

// AddParagraph appends one paragraph with the given style name.
func (p *DocParser) AddParagraph(text, style string) {
	style = normalizeStyle(style)
	level, ok := HeadingLevel(style)
	if !ok {
		p.tree.Append(p.current, text, style, p.level+1)
		return
	}

	// Skipped levels are not validated; each pop lowers the level by one.
	for p.level >= level && p.tree.Node(p.current).Parent != doctree.NoParent {
		p.current = p.tree.Node(p.current).Parent
		p.level--
	}
	p.current = p.tree.Append(p.current, text, style, level)
	p.level = level
}

// AddTable appends one leaf per row under the current heading.
func (p *DocParser) AddTable(rows [][]string) {
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.TrimSpace(c)
		}
		style := fmt.Sprintf("Table_%d_Row_%d", p.tables, i+1)
		p.tree.Append(p.current, pyList(cells), style, p.level+1)
	}
	p.tables++
}

// HeadingLevel reports the level N of a "Heading N" style.
func HeadingLevel(style string) (int, bool) {
	m := headingStyleRe.FindStringSubmatch(style)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// normalizeStyle maps Word style ids ("Heading1") and lower-case names
// ("heading 1") to "Heading N".
func normalizeStyle(style string) string {
	if style == "" {
		return NormalStyle
	}
	if m := headingStyleRe.FindStringSubmatch(style); m != nil {
		return "Heading " + m[1]
	}
	return style
}

// pyList renders cells the way the rubric authors see table rows quoted in
// prompts: ['a', 'b'].
func pyList(items []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, s := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteItem(s))
	}
	sb.WriteByte(']')
	return sb.String()
}

func quoteItem(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == rune(q):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
