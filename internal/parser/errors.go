package parser

import "errors"

var (
	// ErrUnsupportedMerchant is returned when no registered merchant signature
	// appears in the receipt text.
	ErrUnsupportedMerchant = errors.New("receipt parser for this merchant is not implemented")

	// ErrMalformedReceipt is returned when the line stream never reaches the
	// itemised section, usually because OCR garbled the header.
	ErrMalformedReceipt = errors.New("malformed receipt")
)
