// Package intent extracts a confirmed concept from streaming speech. A
// capture session listens for a "show me <concept>" utterance on final
// transcripts and latches the first match; everything after the lock is
// ignored until a new session starts.
package intent

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/stephenhungg/flow/internal/catalog"
)

// wakePattern matches the literal command form after normalization.
var wakePattern = regexp.MustCompile(`(?i)^show\s+me\s+(.+)$`)

// wakeWords are the canonical wake-phrase tokens for phonetic comparison.
var wakeWords = [2]string{"show", "me"}

const defaultPhoneticThreshold = 0.8

// Grammar recognizes the concept-request command in a transcript. STT often
// mangles the wake phrase ("show me" arriving as "showme", "sho me", "show
// mi"), so when the literal pattern misses, the leading bigram is compared
// phonetically: Double Metaphone code overlap plus a Jaro-Winkler score at
// or above the threshold accepts the word as part of the wake phrase.
type Grammar struct {
	threshold float64
}

// GrammarOption configures a [Grammar].
type GrammarOption func(*Grammar)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a mangled
// wake word to be accepted. Default: 0.8.
func WithPhoneticThreshold(t float64) GrammarOption {
	return func(g *Grammar) {
		if t > 0 && t <= 1 {
			g.threshold = t
		}
	}
}

// NewGrammar builds a Grammar.
func NewGrammar(opts ...GrammarOption) *Grammar {
	g := &Grammar{threshold: defaultPhoneticThreshold}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Extract returns the requested concept when text is a concept request.
// The concept is returned normalized (lowercased, whitespace collapsed).
func (g *Grammar) Extract(text string) (concept string, ok bool) {
	normalized := catalog.Normalize(text)
	if normalized == "" {
		return "", false
	}

	if m := wakePattern.FindStringSubmatch(normalized); m != nil {
		return strings.TrimSpace(m[1]), m[1] != ""
	}

	// Phonetic tolerance pass on the leading bigram.
	words := strings.Fields(normalized)
	if len(words) >= 3 && g.soundsLike(words[0], wakeWords[0]) && g.soundsLike(words[1], wakeWords[1]) {
		return strings.Join(words[2:], " "), true
	}
	// "showme rome" style merges: first token sounds like the whole phrase.
	if len(words) >= 2 && g.soundsLike(words[0], "showme") {
		return strings.Join(words[1:], " "), true
	}
	return "", false
}

// soundsLike reports whether heard plausibly is the expected wake word.
func (g *Grammar) soundsLike(heard, expected string) bool {
	if heard == expected {
		return true
	}
	hp, hs := matchr.DoubleMetaphone(heard)
	ep, es := matchr.DoubleMetaphone(expected)
	phonetic := hp != "" && (hp == ep || hp == es) || hs != "" && (hs == ep || hs == es)
	if !phonetic {
		return false
	}
	return matchr.JaroWinkler(heard, expected, false) >= g.threshold
}
