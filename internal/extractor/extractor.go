// Package extractor turns evidence files into plain text.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for file types no parser recognises.
var ErrUnsupported = errors.New("unsupported file type")

// Parser converts one family of file types to text.
type Parser interface {
	Extensions() []string
	Parse(reader io.Reader) (string, error)
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	byExt map[string]Parser
}

// New returns a registry with the PDF, plain-text and HTML parsers.
func New() *Registry {
	return NewRegistry(&PDFParser{}, &TextParser{}, &HTMLParser{})
}

// NewRegistry builds a registry from the given parsers. Later parsers win on
// extension conflicts.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	for _, p := range parsers {
		for _, ext := range p.Extensions() {
			r.byExt[strings.ToLower(ext)] = p
		}
	}
	return r
}

// Supports reports whether the file name has a recognised extension.
func (r *Registry) Supports(name string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extensions lists the recognised extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text. Unknown extensions
// yield ErrUnsupported without touching the file.
func (r *Registry) Extract(path string) (string, error) {
	parser, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", ErrUnsupported
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	text, err := parser.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return text, nil
}
