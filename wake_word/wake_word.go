// Package wake_word decides whether a transcription contains the wake phrase.
package wake_word

import "strings"

const DefaultWakeWord = "canopus"

// Matches reports whether text contains any of the wake words, ignoring case
// and punctuation. Matching is plain substring containment.
func Matches(text string, wakeWords []string) bool {
	detected := strings.ToLower(alphanumeric(text))

	for _, word := range wakeWords {
		word = strings.ToLower(strings.TrimSpace(alphanumeric(word)))
		if word == "" {
			continue
		}

		if strings.Contains(detected, word) {
			return true
		}
	}

	return false
}

// alphanumeric keeps letters, digits and spaces so "Canopus," still matches.
func alphanumeric(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}

		return -1
	}, text)
}

// Gate holds the configured wake word and its aliases.
type Gate struct {
	words []string
}

func NewGate(wakeWord string, aliases ...string) *Gate {
	if wakeWord == "" {
		wakeWord = DefaultWakeWord
	}

	words := append([]string{wakeWord}, aliases...)

	return &Gate{words: words}
}

func (g *Gate) Matches(text string) bool {
	return Matches(text, g.words)
}
