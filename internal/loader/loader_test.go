package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docassess/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestForFile_MissingFile(t *testing.T) {
	_, err := ForFile(filepath.Join(t.TempDir(), "nope.docx"), Options{})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestForFile_UnsupportedExtension(t *testing.T) {
	for _, name := range []string{"notes.txt", "sheet.xlsx", "noext"} {
		_, err := ForFile(touch(t, name), Options{})
		assert.ErrorIs(t, err, ErrUnsupportedDocumentType, name)
	}
}

func TestForFile_Dispatch(t *testing.T) {
	l, err := ForFile(touch(t, "report.PDF"), Options{PDFFallbackPdftotext: true})
	require.NoError(t, err)
	pl, ok := l.(*PDFLoader)
	require.True(t, ok)
	assert.True(t, pl.FallbackPdftotext)

	l, err = ForFile(touch(t, "report.docx"), Options{})
	require.NoError(t, err)
	assert.IsType(t, &WordLoader{}, l)
}

func TestForFile_EverySupportedExtensionDispatches(t *testing.T) {
	for ext := range SupportedExtensions {
		l, err := ForFile(touch(t, "doc"+strings.ToUpper(ext)), Options{})
		require.NoError(t, err, ext)
		assert.NotNil(t, l, ext)
	}
}

func TestLoaders_ValidateRejectsWrongExtension(t *testing.T) {
	err := (&WordLoader{Path: "a.pdf"}).Validate()
	assert.ErrorIs(t, err, ErrUnsupportedDocumentType)

	err = (&PDFLoader{Path: "a.docx"}).Validate()
	assert.ErrorIs(t, err, ErrUnsupportedDocumentType)
}

func TestWordLoader_CorruptFile(t *testing.T) {
	_, err := Load(touch(t, "broken.docx"), Options{})
	assert.Error(t, err)
}

func TestIsSupportedExtension(t *testing.T) {
	assert.True(t, IsSupportedExtension("a.docx"))
	assert.True(t, IsSupportedExtension("A.PDF"))
	assert.False(t, IsSupportedExtension("a.doc"))
	assert.False(t, IsSupportedExtension("a.md"))
}

func TestBuildIndentTree(t *testing.T) {
	text := "Emergency Plan\n" +
		"  Scope\n" +
		"    Applies to all sites\n" +
		"\n" +
		"  Contacts\n" +
		"    Ops: 555\n" +
		"Appendix\n"

	tree := BuildIndentTree("plan", text)

	var lines []string
	var depths []int
	for id, depth := range tree.Walk(doctree.Root) {
		if id == doctree.Root {
			continue
		}
		lines = append(lines, tree.Node(id).Text)
		depths = append(depths, depth)
	}
	assert.Equal(t, []string{"Emergency Plan", "Scope", "Applies to all sites", "Contacts", "Ops: 555", "Appendix"}, lines)
	assert.Equal(t, []int{1, 2, 3, 2, 3, 1}, depths)

	scope := tree.FindText("scope")
	require.Len(t, scope, 1)
	n := tree.Node(scope[0])
	assert.Equal(t, 2, n.Level)
	assert.Equal(t, LineStyle, n.Style)
	assert.Equal(t, "Applies to all sites\n", tree.JoinText(tree.Subnodes(scope[0])))
}

func TestBuildIndentTree_SameIndentIsSibling(t *testing.T) {
	tree := BuildIndentTree("x", "a\nb\n\tc\n\td\n")
	root := tree.Node(doctree.Root)
	require.Len(t, root.Children, 2)
	b := tree.Node(root.Children[1])
	assert.Len(t, b.Children, 2)
	assert.Equal(t, 1, tree.Node(b.Children[0]).Level)
}

func TestBuildIndentTree_Empty(t *testing.T) {
	tree := BuildIndentTree("x", "\n  \n")
	assert.Equal(t, 1, tree.Len())
}
