// Package textnorm canonicalizes raw exam-question text into a comparable
// normalized form and an order-insensitive topic key.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

// Result is the pair produced by one normalization pass. NormalizedText keeps
// content-token order; TopicKey sorts the tokens so rephrasings that only
// reorder words collide on the same key.
type Result struct {
	NormalizedText string `json:"normalized_text"`
	TopicKey       string `json:"topic_key"`
}

const keySeparator = "|"

var (
	yearPattern     = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	marksPattern    = regexp.MustCompile(`\(\s*\d+\s*marks?\s*\)|\b\d+\s*marks?\b|\[\s*\d+\s*\]`)
	qNumberPattern  = regexp.MustCompile(`\bq(?:uestion)?\s*\d+[a-z]?\b`)
	nonWordPattern  = regexp.MustCompile(`[^a-z0-9\s-]+`)
	danglingHyphens = regexp.MustCompile(`(?:^|\s)-+|-+(?:\s|$)`)
)

// defaultStopwords carries no topical signal in exam questions: articles,
// auxiliaries, interrogatives, and generic instructional verbs.
var defaultStopwords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "can", "could", "will",
	"would", "should", "may", "might", "must", "shall",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
	"explain", "describe", "define", "discuss", "illustrate", "list",
	"mention", "state", "give", "write", "short", "note", "notes",
	"briefly", "detail", "details", "answer", "following", "any",
}

type Normalizer struct {
	stopwords map[string]struct{}
}

// New builds a normalizer with the default stopword list plus any extras.
func New(extra ...string) *Normalizer {
	stop := make(map[string]struct{}, len(defaultStopwords)+len(extra))
	for _, w := range defaultStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range extra {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Normalizer{stopwords: stop}
}

// Normalize is a pure function: identical input always yields an identical
// Result.
func (n *Normalizer) Normalize(raw string) Result {
	text := strings.ToLower(raw)
	text = yearPattern.ReplaceAllString(text, " ")
	text = marksPattern.ReplaceAllString(text, " ")
	text = qNumberPattern.ReplaceAllString(text, " ")
	text = nonWordPattern.ReplaceAllString(text, " ")
	text = danglingHyphens.ReplaceAllString(text, " ")

	tokens := make([]string, 0, 16)
	for _, w := range strings.Fields(text) {
		if len(w) < 3 {
			continue
		}
		if _, ok := n.stopwords[w]; ok {
			continue
		}
		tokens = append(tokens, w)
	}

	keyTokens := uniqueSorted(tokens)
	return Result{
		NormalizedText: strings.Join(tokens, " "),
		TopicKey:       strings.Join(keyTokens, keySeparator),
	}
}

// Tokens splits an already-normalized text into its content words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
