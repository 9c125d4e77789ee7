package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docassess/internal/doctree"
	"github.com/fumiama/go-docx"
)

// WordLoader handles .docx files.
type WordLoader struct {
	Path string
}

func (l *WordLoader) Validate() error {
	if !strings.EqualFold(filepath.Ext(l.Path), ".docx") {
		return fmt.Errorf("%w: file must be a Word document", ErrUnsupportedDocumentType)
	}
	return nil
}

func (l *WordLoader) Load() (*doctree.Tree, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	p := NewDocParser(titleFromPath(l.Path))
	for _, item := range doc.Document.Body.Items {
		switch el := item.(type) {
		case *docx.Paragraph:
			p.AddParagraph(docxParagraphText(el), docxStyle(el))
		case *docx.Table:
			p.AddTable(docxTableRows(el))
		}
	}
	return p.Tree(), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return buf.String()
}

func docxTableRows(tbl *docx.Table) [][]string {
	rows := make([][]string, 0, len(tbl.TableRows))
	for _, row := range tbl.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			paras := make([]string, 0, len(cell.Paragraphs))
			for _, para := range cell.Paragraphs {
				paras = append(paras, docxParagraphText(para))
			}
			cells = append(cells, strings.Join(paras, "\n"))
		}
		rows = append(rows, cells)
	}
	return rows
}
