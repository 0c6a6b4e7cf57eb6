// Package safety screens inbound patient text for crisis language.
//
// The gate is a fixed phrase list matched case-insensitively as substrings.
// It has no state and no I/O, so it is safe to call from any goroutine.
package safety

import "strings"

// CrisisResourceMarker is the crisis line number carried by Message. The
// session finalizer scans assistant turns for it to flag a session.
const CrisisResourceMarker = "988"

// Message is returned verbatim, in place of a model reply, when Evaluate triggers.
const Message = "⚠️ If you are in crisis, please call or text 988 or go to your nearest emergency room immediately."

var crisisPhrases = []string{
	"suicide",
	"kill myself",
	"end my life",
	"hurt myself",
	"self-harm",
	"killing people",
	"plan to die",
	"suicidal ideation",
	"harm intent",
	"homicidal ideation",
	"want to die",
}

// Evaluate reports whether text contains any crisis phrase.
func Evaluate(text string) bool {
	_, found := Match(text)
	return found
}

// Match returns the first crisis phrase found in text.
func Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range crisisPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// Phrases returns a copy of the crisis phrase list.
func Phrases() []string {
	out := make([]string, len(crisisPhrases))
	copy(out, crisisPhrases)
	return out
}
