// Package fts provides tokenization for free-text matching and the
// word-cloud aggregation.
package fts

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Tokenizer splits text into tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Config controls analyzer behavior.
type Config struct {
	// CaseSensitive disables lowercasing. The analyzed token stream used
	// for default-field matching is case-insensitive; the exact stream is
	// produced with CaseSensitive set.
	CaseSensitive bool
	// StemLanguage enables snowball stemming of tokens ("english",
	// "spanish", ...). Empty disables stemming. Used by the word-cloud
	// aggregation only; the match streams stay unstemmed.
	StemLanguage string
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// NewTokenizer creates a word tokenizer for the given config.
func NewTokenizer(cfg *Config) Tokenizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &wordTokenizer{
		caseSensitive: cfg.CaseSensitive,
		stemLanguage:  cfg.StemLanguage,
	}
}

// wordTokenizer splits on any rune that is not a letter, digit, or
// underscore. Numbers stay intact and Unicode letters are preserved.
type wordTokenizer struct {
	caseSensitive bool
	stemLanguage  string
}

func (t *wordTokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	if !t.caseSensitive {
		text = strings.ToLower(text)
	}

	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tok := current.String()
		current.Reset()
		if t.stemLanguage != "" {
			if stemmed, err := snowball.Stem(tok, t.stemLanguage, false); err == nil && stemmed != "" {
				tok = stemmed
			}
		}
		tokens = append(tokens, tok)
	}

	for _, r := range text {
		if isWordChar(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// English stopwords, filtered out of the word-cloud aggregation.
var englishStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "he": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "that": true, "the": true,
	"to": true, "was": true, "were": true, "will": true, "with": true,
	"i": true, "me": true, "my": true, "we": true, "our": true,
	"you": true, "your": true, "they": true, "their": true, "this": true,
	"but": true, "or": true, "not": true, "no": true, "so": true,
	"if": true, "do": true, "does": true, "did": true, "have": true,
	"had": true, "been": true, "being": true, "which": true, "who": true,
	"what": true, "when": true, "where": true, "how": true, "why": true,
	"all": true, "each": true, "some": true, "any": true, "most": true,
	"other": true, "such": true, "only": true, "own": true, "same": true,
	"than": true, "too": true, "very": true, "can": true, "just": true,
	"should": true, "now": true, "also": true, "more": true,
}

// IsStopword returns true if the token is a common English stopword.
func IsStopword(token string) bool {
	return englishStopwords[strings.ToLower(token)]
}

// RemoveStopwords filters stopwords from a token list.
func RemoveStopwords(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !IsStopword(t) {
			result = append(result, t)
		}
	}
	return result
}
