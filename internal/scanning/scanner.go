// Package scanning reads the printed text off a receipt image.
package scanning

import (
	"context"
	"errors"
)

// ErrUnsupportedContent is returned for uploads a scanner cannot read.
var ErrUnsupportedContent = errors.New("unsupported receipt file")

// Scanner is an OCR text provider.
type Scanner interface {
	// ReadText returns the receipt text, one printed line per output line,
	// in reading order.
	ReadText(ctx context.Context, data []byte, contentType string) (string, error)
	// Close releases the provider's resources.
	Close() error
}
