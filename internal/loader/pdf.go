package loader

import (
	"cmp"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docassess/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// LineStyle tags nodes built from PDF text lines.
const LineStyle = "Line"

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	model.ConfigPath = "disable"
}

// PDFLoader handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled.
type PDFLoader struct {
	Path              string
	FallbackPdftotext bool
}

// Validate checks the extension and the PDF structure.
func (l *PDFLoader) Validate() error {
	if !strings.EqualFold(filepath.Ext(l.Path), ".pdf") {
		return fmt.Errorf("%w: file must be a PDF", ErrUnsupportedDocumentType)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(l.Path, conf); err != nil {
		return fmt.Errorf("validate pdf: %w", err)
	}
	return nil
}

func (l *PDFLoader) Load() (*doctree.Tree, error) {
	text, err := extractPDFText(l.Path)
	if (err != nil || strings.TrimSpace(text) == "") && l.FallbackPdftotext {
		// An empty extraction usually means fonts the Go reader cannot map.
		if alt, altErr := extractPdftotext(l.Path); altErr == nil {
			text, err = alt, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return BuildIndentTree(titleFromPath(l.Path), text), nil
}

// BuildIndentTree nests non-blank lines by their leading whitespace: a line
// becomes a child of the nearest preceding line that is less indented.
func BuildIndentTree(title, text string) *doctree.Tree {
	tree := doctree.New(title)
	current := doctree.Root

	for _, line := range strings.Split(text, "\n") {
		content := strings.TrimSpace(line)
		if content == "" {
			continue
		}
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		level := utf8.RuneCountInString(line) - utf8.RuneCountInString(trimmed)

		for {
			n := tree.Node(current)
			if n.Parent == doctree.NoParent || n.Level < level {
				break
			}
			current = n.Parent
		}
		current = tree.Append(current, content, LineStyle, level)
	}
	return tree
}

type pdfLine struct {
	x    float64
	text string
}

// extractPDFText rebuilds text lines from glyph positions. Glyphs sharing a
// baseline form a line; each distinct left edge across the document becomes
// one level of leading-space indentation.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var lines []pdfLine
	var firstErr error
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pl, err := pageLines(page)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			continue
		}
		lines = append(lines, pl...)
	}
	if len(lines) == 0 && firstErr != nil {
		return "", firstErr
	}

	margins := leftMargins(lines)
	var buf strings.Builder
	for _, l := range lines {
		buf.WriteString(strings.Repeat(" ", marginRank(margins, l.x)))
		buf.WriteString(l.text)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func pageLines(page pdflib.Page) (lines []pdfLine, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("read page content: %v", r)
		}
	}()

	rows := map[int][]pdflib.Text{}
	var ys []int
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}
		y := int(math.Round(t.Y))
		if _, ok := rows[y]; !ok {
			ys = append(ys, y)
		}
		rows[y] = append(rows[y], t)
	}
	// Top of the page first.
	slices.Sort(ys)
	slices.Reverse(ys)

	for _, y := range ys {
		glyphs := rows[y]
		slices.SortStableFunc(glyphs, func(a, b pdflib.Text) int {
			return cmp.Compare(a.X, b.X)
		})
		var buf strings.Builder
		for i, g := range glyphs {
			if i > 0 {
				prev := glyphs[i-1]
				if gap := g.X - (prev.X + prev.W); prev.W > 0 && gap > g.FontSize*0.25 && prev.S != " " && g.S != " " {
					buf.WriteByte(' ')
				}
			}
			buf.WriteString(g.S)
		}
		text := strings.TrimSpace(buf.String())
		if text == "" {
			continue
		}
		lines = append(lines, pdfLine{x: firstInkX(glyphs), text: text})
	}
	return lines, nil
}

func firstInkX(glyphs []pdflib.Text) float64 {
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) != "" {
			return g.X
		}
	}
	return glyphs[0].X
}

// leftMargins returns the distinct line start offsets, ascending, with
// offsets closer than marginTolerance merged.
func leftMargins(lines []pdfLine) []float64 {
	xs := make([]float64, 0, len(lines))
	for _, l := range lines {
		xs = append(xs, l.x)
	}
	slices.Sort(xs)
	var out []float64
	for _, x := range xs {
		if len(out) == 0 || x-out[len(out)-1] > marginTolerance {
			out = append(out, x)
		}
	}
	return out
}

const marginTolerance = 2.0

func marginRank(margins []float64, x float64) int {
	rank := 0
	for i, m := range margins {
		if x+marginTolerance >= m {
			rank = i
		}
	}
	return rank
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
