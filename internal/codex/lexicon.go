package codex

import (
	"encoding/json"
	"fmt"
	"os"

	"screenpilot/internal/resolve"
)

// LexiconEntry is one symbolic UI element known for a platform: what it
// is called and what action it affords.
type LexiconEntry struct {
	Name   string `json:"name"`
	Action string `json:"action"`

	match string
}

// Lexicon is the per-platform symbolic UI vocabulary used to filter raw
// OCR words down to elements the automation knows how to use.
type Lexicon []LexiconEntry

// lexiconRatio is the fuzzy acceptance threshold for OCR noise.
const lexiconRatio = 0.8

// LoadLexicon reads a platform lexicon file (JSON array of name/action)
// and precomputes normalized match keys.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var entries Lexicon
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	for i := range entries {
		entries[i].match = resolve.Normalize(entries[i].Name)
	}
	return entries, nil
}

// FilterWords matches OCR words against the lexicon, exactly or fuzzily,
// and returns the recognized entries in word order.
func (l Lexicon) FilterWords(words []string) []LexiconEntry {
	var matched []LexiconEntry
	for _, word := range words {
		clean := resolve.Normalize(word)
		if clean == "" {
			continue
		}
		for _, entry := range l {
			if entry.match == clean || resolve.Ratio(entry.match, clean) > lexiconRatio {
				matched = append(matched, entry)
			}
		}
	}
	return matched
}

// Names returns the deduplicated entry names in first-seen order.
func Names(entries []LexiconEntry) []string {
	seen := make(map[string]bool, len(entries))
	var names []string
	for _, e := range entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	return names
}
