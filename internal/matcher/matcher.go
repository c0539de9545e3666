// Package matcher decides whether a recognition event contains the expected
// answer.
//
// Match is stateless: it looks only at the event it is given. The transcript
// is built by concatenating the top hypothesis of every pending result in
// order, and after each append it is tested for a whole-word occurrence of
// the target. Matching is case-insensitive and Unicode-normalized (NFC), and
// a word boundary is any position not adjacent to a letter, digit or
// underscore.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sayquiz/internal/recognition"
)

// Kind classifies a Verdict.
type Kind int

const (
	// NoMatch means the target was not heard and no final result was seen.
	NoMatch Kind = iota
	// Matched means the target occurs as a whole word in the transcript.
	Matched
	// IncorrectFinal means the target was not heard and at least one final
	// result was scanned. Listening continues.
	IncorrectFinal
)

func (k Kind) String() string {
	switch k {
	case NoMatch:
		return "no_match"
	case Matched:
		return "matched"
	case IncorrectFinal:
		return "incorrect_final"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of matching one event.
type Verdict struct {
	Kind Kind

	// Transcript is the normalized transcript up to the match point, or the
	// whole pending transcript when there was no match.
	Transcript string

	// IncorrectFinals counts final results scanned before the match point
	// (or in total when there was no match). Each one earns a negative cue.
	IncorrectFinals int
}

// Normalize lower-cases s and composes it to NFC so that equivalent spellings
// compare equal.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// Match tests ev against target. An empty target never matches.
func Match(target string, ev recognition.Event) Verdict {
	needle := Normalize(strings.TrimSpace(target))

	var (
		transcript strings.Builder
		finals     int
	)
	for _, res := range ev.Pending() {
		transcript.WriteString(Normalize(res.Top()))

		if needle != "" && ContainsWord(transcript.String(), needle) {
			return Verdict{Kind: Matched, Transcript: transcript.String(), IncorrectFinals: finals}
		}
		if res.IsFinal {
			finals++
		}
	}

	v := Verdict{Kind: NoMatch, Transcript: transcript.String(), IncorrectFinals: finals}
	if finals > 0 {
		v.Kind = IncorrectFinal
	}
	return v
}

// ContainsWord reports whether word occurs in s with no word character
// immediately before or after it. Both arguments are compared as given.
func ContainsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset <= len(s)-len(word); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
