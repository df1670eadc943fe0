package command

import (
	"strings"
	"time"
)

const ConfirmKeyword = "confirm"

var exitKeywords = map[string]bool{
	"exit":     true,
	"quit":     true,
	"shutdown": true,
}

// Recognized is a command captured after the wake word.
type Recognized struct {
	Text      string
	Timestamp time.Time
	Sensitive bool
	// Confirmed is set once the user has said the confirm keyword for it.
	Confirmed bool
}

func New(text string, at time.Time, sensitive bool) Recognized {
	return Recognized{
		Text:      Normalize(text),
		Timestamp: at,
		Sensitive: sensitive,
	}
}

// Normalize trims, lower-cases, collapses whitespace and strips trailing
// sentence punctuation added by the transcoder.
func Normalize(text string) string {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))

	return strings.TrimRight(text, ".!?,;: ")
}

func IsExit(text string) bool {
	return exitKeywords[Normalize(text)]
}

func IsConfirm(text string) bool {
	return Normalize(text) == ConfirmKeyword
}
