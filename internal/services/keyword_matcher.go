package services

import (
	"strings"
	"unicode"

	"answerhub/internal/models"
)

// keywordGroup ties related terms together so "who are you" can still
// reach an "about" entry. Group order is the priority order.
type keywordGroup struct {
	name  string
	terms []string
}

var keywordGroups = []keywordGroup{
	{"about", []string{"about", "who", "yourself", "introduce", "background"}},
	{"education", []string{"education", "degree", "study", "studied", "university", "school", "qualification"}},
	{"development", []string{"development", "develop", "programming", "coding", "software", "developer", "engineer", "api", "backend", "kotlin", "android"}},
	{"ai", []string{"ai", "artificial intelligence", "intelligence"}},
	{"ml", []string{"ml", "machine learning", "learning", "model", "training"}},
	{"design", []string{"design", "ui", "ux", "interface", "prototype", "photo", "image", "graphic"}},
}

// KeywordMatcher is the last-resort matcher used when neither the ranker
// nor the embedding backend can serve a query. It is purely lexical and
// binary: an entry either matches or it does not, no score.
type KeywordMatcher struct{}

func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{}
}

// Match finds an entry for the question. Pass one looks for an exact
// normalized match, then containment in either direction. Pass two walks
// the keyword groups in priority order and returns the first entry that
// shares a group with the question.
func (m *KeywordMatcher) Match(question string, entries []models.KnowledgeEntry) models.MatchResult {
	result := models.MatchResult{Index: models.SentinelIndex, Strategy: models.StrategyKeyword}
	if len(entries) == 0 {
		return result
	}

	query := normalize(question)
	if query == "" {
		return result
	}

	// pass 1: exact, then substring in both directions
	for i := range entries {
		if normalize(entries[i].Question) == query {
			return matched(entries, i)
		}
	}
	for i := range entries {
		candidate := normalize(entries[i].Question)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
			return matched(entries, i)
		}
	}

	// pass 2: shared keyword group, first group wins, then first entry
	queryTokens := tokenize(query)
	for _, group := range keywordGroups {
		if !groupHits(group, query, queryTokens) {
			continue
		}
		for i := range entries {
			candidate := normalize(entries[i].Question)
			if groupHits(group, candidate, tokenize(candidate)) {
				return matched(entries, i)
			}
		}
	}

	return result
}

func matched(entries []models.KnowledgeEntry, i int) models.MatchResult {
	entry := entries[i]
	return models.MatchResult{
		Entry:    &entry,
		Score:    1,
		Index:    i,
		Strategy: models.StrategyKeyword,
	}
}

// groupHits reports whether the text contains any of the group's terms.
// Single-word terms must match a whole token so "ai" does not hit
// "training"; multi-word terms use plain containment.
func groupHits(group keywordGroup, text string, tokens map[string]bool) bool {
	for _, term := range group.terms {
		if strings.ContainsRune(term, ' ') {
			if strings.Contains(text, term) {
				return true
			}
			continue
		}
		if tokens[term] {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenize(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[word] = true
	}
	return tokens
}
