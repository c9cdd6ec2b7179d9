package search

import (
	"regexp"
	"strings"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/fts"
)

var (
	analyzed = fts.NewTokenizer(nil)
	verbatim = fts.NewTokenizer(&fts.Config{CaseSensitive: true})

	// field: value and field.exact: value, with optional space after the
	// colon. The value runs to the next whitespace.
	scopedClause = regexp.MustCompile(`([A-Za-z0-9_]+)(\.exact)?:\s*(\S+)`)
)

// parseTextQuery splits a free-text query into match clauses.
//
// Three clause forms are recognized: bare terms match analyzed tokens in
// any input field, `field: value` scopes the match to one field, and
// `field.exact: value` requires a case-exact token in that field. A
// non-empty query that yields no clause at all, such as a lone operator
// character, is rejected.
func parseTextQuery(raw string) ([]backend.TextClause, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	var clauses []backend.TextClause

	rest := scopedClause.ReplaceAllStringFunc(trimmed, func(m string) string {
		sub := scopedClause.FindStringSubmatch(m)
		field, exact, value := sub[1], sub[2] != "", sub[3]
		if exact {
			for _, tok := range verbatim.Tokenize(value) {
				clauses = append(clauses, backend.TextClause{Field: field, Exact: true, Term: tok})
			}
		} else {
			for _, tok := range analyzed.Tokenize(value) {
				clauses = append(clauses, backend.TextClause{Field: field, Term: tok})
			}
		}
		return " "
	})

	for _, tok := range analyzed.Tokenize(rest) {
		clauses = append(clauses, backend.TextClause{Term: tok})
	}

	if len(clauses) == 0 {
		return nil, &InvalidTextSearchError{Query: raw}
	}
	return clauses, nil
}
