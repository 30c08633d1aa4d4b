// Package document reads the referral FAQ document and reduces it to plain text
// suitable for prompt context.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotFound is returned when the document does not exist at its source.
	ErrNotFound = errors.New("document: not found")
	// ErrEmpty is returned when a document parses but yields no text.
	ErrEmpty = errors.New("document: no text content")
)

// ExtractText concatenates the text of every page of a PDF and collapses all
// runs of whitespace into single spaces.
func ExtractText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("document: malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("document: open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("document: read page %d: %w", i, err)
		}
		pages = append(pages, content)
	}

	text = NormalizeWhitespace(strings.Join(pages, " "))
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// NormalizeWhitespace replaces newlines and repeated spaces with single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
