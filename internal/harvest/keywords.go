package harvest

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	urlPattern  = regexp.MustCompile(`https?://\S+`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "on": {}, "of": {},
	"for": {}, "and": {}, "or": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"with": {}, "from": {}, "after": {}, "over": {}, "into": {}, "about": {},
	"says": {}, "said": {}, "will": {}, "could": {}, "would": {}, "this": {},
	"that": {}, "what": {}, "when": {}, "where": {}, "how": {}, "why": {},
	"new": {}, "news": {}, "report": {}, "update": {}, "amid": {}, "as": {},
	"its": {}, "his": {}, "her": {}, "their": {}, "more": {}, "than": {},
	"not": {}, "but": {}, "has": {}, "have": {}, "had": {}, "been": {},
	"at": {}, "by": {}, "it": {}, "be": {}, "up": {}, "out": {},
}

// cleanText strips URLs and punctuation and squeezes whitespace.
func cleanText(input string) string {
	if input == "" {
		return ""
	}
	out := urlPattern.ReplaceAllString(input, " ")
	out = punctuation.ReplaceAllString(out, " ")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// ExtractKeywords returns the most frequent non-stopword terms in the text,
// longest-first on ties so multi-word capture downstream stays stable.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(cleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	if limit > 0 && len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}
