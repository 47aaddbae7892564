package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// SetLicenseKey installs a unidoc metered license key. An empty key is a no-op.
func SetLicenseKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return license.SetMeteredKey(key)
}

// PDFParser concatenates the text of every page in page order.
type PDFParser struct{}

func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

func (p *PDFParser) Parse(reader io.Reader) (string, error) {
	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("count pages: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
