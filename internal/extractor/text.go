package extractor

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TextParser reads plain text and Markdown. Invalid UTF-8 is replaced with U+FFFD.
type TextParser struct{}

func (p *TextParser) Extensions() []string { return []string{".txt", ".md", ".markdown"} }

func (p *TextParser) Parse(reader io.Reader) (string, error) {
	return readText(reader)
}

// HTMLParser reads HTML and MHTML as raw text. Markup is kept.
type HTMLParser struct{}

func (p *HTMLParser) Extensions() []string { return []string{".html", ".htm", ".mhtml", ".mht"} }

func (p *HTMLParser) Parse(reader io.Reader) (string, error) {
	return readText(reader)
}

func readText(reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if utf8.Valid(content) {
		return string(content), nil
	}
	return strings.ToValidUTF8(string(content), string(utf8.RuneError)), nil
}
