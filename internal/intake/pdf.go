package intake

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF pulls the plain text out of an onboarding PDF and maps its
// labelled lines to intake fields.
func ExtractPDF(r io.ReaderAt, size int64) (map[string]string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	text, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return nil, fmt.Errorf("reading pdf text: %w", err)
	}

	fields := ParseFields(buf.String())
	if len(fields) == 0 {
		return nil, fmt.Errorf("no recognizable intake fields in pdf")
	}
	return fields, nil
}
