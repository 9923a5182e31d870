package scanning

import (
	"errors"
	"strings"
)

// ErrEmptyTranscript is returned when a provider answers without any text.
var ErrEmptyTranscript = errors.New("no text found on receipt")

// transcriptPrompt asks a vision model for a verbatim line-by-line reading.
const transcriptPrompt = `You are reading a photo of a shop till receipt. Transcribe every piece of printed text exactly as it appears.

Rules:
- Output one printed line per line of output, top to bottom.
- When a row has text on the left and an amount on the right, put them on separate lines, left part first.
- Keep the original spelling, capitalisation, punctuation, currency codes and decimal separators.
- Keep masked card numbers exactly, including every asterisk.
- Do not translate, summarise, total or explain anything.
- Do not use markdown or code blocks.`

// cleanTranscript strips the wrapping some models add around a transcript
// and normalises line endings.
func cleanTranscript(text string) (string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		// Drop the opening fence line, which may carry a language tag.
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	text = strings.Trim(text, "\n")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
