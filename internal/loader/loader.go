package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docassess/internal/doctree"
)

var (
	// ErrFileNotFound is returned when the input document does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedDocumentType is returned for anything but .pdf and .docx.
	ErrUnsupportedDocumentType = errors.New("unsupported document type: must be a PDF or Word document")
)

// Loader turns a document on disk into an outline tree.
type Loader interface {
	// Validate checks that the file is of the type this loader handles.
	Validate() error
	// Load parses the document.
	Load() (*doctree.Tree, error)
}

// Options tune loader behavior.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists the document extensions that can be evaluated.
// Matching ignores case.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

// ForFile returns the loader for path, chosen by extension.
func ForFile(path string, opts Options) (Loader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !IsSupportedExtension(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDocumentType, filepath.Ext(path))
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return &PDFLoader{Path: path, FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	}
	return &WordLoader{Path: path}, nil
}

// Load validates and parses path in one step.
func Load(path string, opts Options) (*doctree.Tree, error) {
	l, err := ForFile(path, opts)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l.Load()
}

// IsSupportedExtension reports whether filename has an extension ForFile
// can load.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
