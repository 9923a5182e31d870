package scanning

import (
	"context"
	"fmt"
	"strings"
)

// PlainText is a Scanner for uploads that already hold OCR output as text.
type PlainText struct{}

// NewPlainText creates a PlainText scanner.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// ReadText returns text/plain data unchanged apart from line endings.
func (p *PlainText) ReadText(_ context.Context, data []byte, contentType string) (string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(mimeType, "text/plain") {
		return "", fmt.Errorf("%w: plain text scanner cannot read %q", ErrUnsupportedContent, contentType)
	}
	return cleanTranscript(string(data))
}

// Close is a no-op.
func (p *PlainText) Close() error {
	return nil
}
