// Package purchaser maps the last digits of a payment card to the household
// member who owns it.
package purchaser

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxSuffixLength is the number of card digits printed on a receipt.
const maxSuffixLength = 4

// Entry is one household member as written in the directory file.
type Entry struct {
	Name  string   `toml:"name"`
	Cards []string `toml:"cards"`
}

// File is the on-disk layout of the directory:
//
//	[[purchaser]]
//	name  = "Alice"
//	cards = ["5678"]
type File struct {
	Purchasers []Entry `toml:"purchaser"`
}

// Directory resolves card suffixes to purchaser names. It is read-only after
// construction and safe for concurrent use.
type Directory struct {
	byCard  map[string]string
	members []string
}

// Load reads a directory from a TOML file.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading purchaser directory: %w", err)
	}
	dir, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return dir, nil
}

// Parse decodes a directory from TOML.
func Parse(data []byte) (*Directory, error) {
	var f File
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("decoding purchaser directory: %w", err)
	}
	return FromEntries(f.Purchasers)
}

// FromEntries builds a directory from entries, validating names and card
// suffixes.
func FromEntries(entries []Entry) (*Directory, error) {
	d := &Directory{byCard: make(map[string]string)}
	seen := make(map[string]bool)

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("purchaser with cards %v has no name", e.Cards)
		}
		if !seen[name] {
			seen[name] = true
			d.members = append(d.members, name)
		}
		for _, card := range e.Cards {
			card = strings.TrimSpace(card)
			if card == "" || len(card) > maxSuffixLength {
				return nil, fmt.Errorf("purchaser %s: card suffix %q must be 1 to %d characters", name, card, maxSuffixLength)
			}
			if owner, ok := d.byCard[card]; ok && owner != name {
				return nil, fmt.Errorf("card suffix %s belongs to both %s and %s", card, owner, name)
			}
			d.byCard[card] = name
		}
	}

	sort.Strings(d.members)
	return d, nil
}

// New builds a directory from a card suffix to name mapping.
func New(cards map[string]string) (*Directory, error) {
	byName := make(map[string][]string)
	for card, name := range cards {
		byName[name] = append(byName[name], card)
	}
	entries := make([]Entry, 0, len(byName))
	for name, cards := range byName {
		entries = append(entries, Entry{Name: name, Cards: cards})
	}
	return FromEntries(entries)
}

// Lookup returns the purchaser who owns the card ending in suffix.
func (d *Directory) Lookup(suffix string) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.byCard[suffix]
	return name, ok
}

// Members returns every purchaser name, sorted.
func (d *Directory) Members() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.members))
	copy(out, d.members)
	return out
}

// IsMember reports whether name is a known purchaser.
func (d *Directory) IsMember(name string) bool {
	for _, m := range d.Members() {
		if m == name {
			return true
		}
	}
	return false
}
