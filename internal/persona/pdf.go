package persona

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// extractPDFText pulls plain text out of a PDF resume. Returns empty string
// and nil error when the PDF has no extractable text.
func extractPDFText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
