// Package watchlist implements text matching against configured
// watchlist entities.
package watchlist

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"prospector/internal/models"
)

// GlobalScope marks an entity as matchable regardless of article country.
const GlobalScope = "Global"

// Terms shorter than this are too noisy to match ("EQT" inside unrelated
// tokens, ticker fragments, etc.).
const minTermLength = 3

// Match scans text for mentions of active watchlist entities. An entity is
// considered when its country scope is unset, equals the article country, or
// is the Global sentinel. A term matches only as a whole word,
// case-insensitively, and only when longer than three characters.
func Match(text, country string, entities []models.WatchlistEntity) []models.WatchlistHit {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var hits []models.WatchlistHit
	for _, entity := range entities {
		if !entity.Active {
			continue
		}
		if !scopeAllows(entity.Country, country) {
			continue
		}
		for _, term := range candidateTerms(entity) {
			if containsWholeWord(text, term) {
				hits = append(hits, models.WatchlistHit{
					Entity:      entity.Name,
					MatchedTerm: term,
				})
				break
			}
		}
	}
	return hits
}

func scopeAllows(scope, country string) bool {
	scope = strings.TrimSpace(scope)
	if scope == "" || strings.EqualFold(scope, GlobalScope) {
		return true
	}
	return strings.EqualFold(scope, country)
}

// candidateTerms returns the entity name plus its search terms, lowercased
// and trimmed, with terms at or below the noise threshold dropped.
func candidateTerms(entity models.WatchlistEntity) []string {
	raw := make([]string, 0, len(entity.SearchTerms)+1)
	raw = append(raw, entity.Name)
	raw = append(raw, entity.SearchTerms...)

	terms := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, term := range raw {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) <= minTermLength {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// containsWholeWord reports whether term occurs in text delimited by
// non-word characters on both sides. Substrings of longer tokens do not
// count: "bestseller" matches in "Bestseller A/S" but not "TheBestsellerCo".
func containsWholeWord(text, term string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], term)
		if idx == -1 {
			return false
		}
		idx += start
		end := idx + len(term)

		before, _ := utf8.DecodeLastRuneInString(text[:idx])
		after, _ := utf8.DecodeRuneInString(text[end:])
		beforeOK := idx == 0 || !isWordRune(before)
		afterOK := end >= len(text) || !isWordRune(after)
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
