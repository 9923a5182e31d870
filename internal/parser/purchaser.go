package parser

import "strings"

// cardSuffixLength is the number of visible card digits used as the
// purchaser key.
const cardSuffixLength = 4

// Directory maps a card suffix to the name of the person who owns the card.
type Directory interface {
	Lookup(cardSuffix string) (name string, ok bool)
}

// DirectoryFunc adapts a plain function to Directory.
type DirectoryFunc func(cardSuffix string) (string, bool)

// Lookup calls f.
func (f DirectoryFunc) Lookup(cardSuffix string) (string, bool) {
	return f(cardSuffix)
}

// resolvePurchaser finds the first masked card line and looks its suffix up in
// dir. Anything it cannot resolve comes back as Unknown.
func resolvePurchaser(lines []string, dir Directory) string {
	if dir == nil {
		return Unknown
	}
	for _, line := range lines {
		if !isCardSuffixLine(line) {
			continue
		}
		suffix := cardSuffix(line)
		if name, ok := dir.Lookup(suffix); ok && name != "" {
			return name
		}
		return Unknown
	}
	return Unknown
}

// cardSuffix returns up to four characters after the last asterisk of line
// with whitespace removed. Fewer characters are returned as-is when the line
// ends early.
func cardSuffix(line string) string {
	compact := stripSpace(line)
	rest := []rune(compact[strings.LastIndex(compact, "*")+1:])
	if len(rest) > cardSuffixLength {
		rest = rest[:cardSuffixLength]
	}
	return string(rest)
}
