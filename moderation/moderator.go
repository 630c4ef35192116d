// Package moderation masks blacklisted words in chat content before it is
// persisted or broadcast.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator holds an Aho-Corasick automaton built over a normalized word
// list, so one pass over a message finds every blacklisted pattern even
// when spelled with leet speak or punctuation noise.
type Moderator struct {
	matcher     *goahocorasick.Machine
	maskingChar rune
}

// textMapping pairs the normalized runes with the index each one had in
// the original string, so matches can be masked in place.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the automaton from the blacklist. Words are
// normalized the same way message content is at match time.
func NewModerator(words []string, maskingChar rune) (*Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize(word).normalized
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, maskingChar: maskingChar}, nil
}

// Mask replaces every character of every blacklisted match with the
// masking character, preserving the message's length and spacing.
func (m *Moderator) Mask(original string) string {
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		// Mask from the first to the last original rune of the match,
		// covering any noise characters in between.
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = m.maskingChar
		}
	}
	return string(origRunes)
}

// normalize lowercases, undoes common leet substitutions, and drops
// punctuation and spacing, tracking original rune positions.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

// simplifyRune maps common leet speak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
