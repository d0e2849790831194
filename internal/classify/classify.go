// Package classify assigns extracted questions to syllabus modules through a
// ranked strategy chain: pattern lookup first, keyword overlap second,
// explicit unclassified last.
package classify

import (
	"sort"
	"strings"

	"pyqlens/internal/models"
	"pyqlens/internal/textnorm"
)

// Input is what one strategy gets to look at for a single question.
type Input struct {
	Part           string
	Number         int
	NormalizedText string
	Pattern        models.ExamPattern
	Keywords       map[int][]string
}

// Strategy attempts one classification rule. ok=false passes the question to
// the next strategy in the chain.
type Strategy interface {
	Name() string
	Classify(in Input) (module int, ok bool)
}

type Classifier struct {
	chain []Strategy
}

// New builds the default chain. Order matters: the pattern mapping is
// authoritative and must run before any heuristic.
func New() *Classifier {
	return &Classifier{chain: []Strategy{patternStrategy{}, keywordStrategy{}}}
}

// Classify runs the chain and returns the winning module number, or
// ModuleUnclassified when no strategy produces an assignment. Unclassified is
// a visible state, not an error.
func (c *Classifier) Classify(in Input) int {
	for _, s := range c.chain {
		if module, ok := s.Classify(in); ok {
			return module
		}
	}
	return models.ModuleUnclassified
}

// patternStrategy resolves the configured (part, number) mapping. A hit wins
// unconditionally regardless of keyword content.
type patternStrategy struct{}

func (patternStrategy) Name() string { return "pattern" }

func (patternStrategy) Classify(in Input) (int, bool) {
	return in.Pattern.ModuleFor(in.Part, in.Number)
}

// keywordStrategy scores token overlap between the normalized question text
// and each module's keyword set. Highest nonzero overlap wins; ties go to the
// lowest module number so repeated runs agree.
type keywordStrategy struct{}

func (keywordStrategy) Name() string { return "keyword" }

func (keywordStrategy) Classify(in Input) (int, bool) {
	tokens := textnorm.Tokens(in.NormalizedText)
	if len(tokens) == 0 || len(in.Keywords) == 0 {
		return 0, false
	}
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	modules := make([]int, 0, len(in.Keywords))
	for m := range in.Keywords {
		modules = append(modules, m)
	}
	sort.Ints(modules)

	best, bestScore := 0, 0
	for _, m := range modules {
		score := 0
		for _, kw := range in.Keywords[m] {
			// Keywords are operator input; tokens are always lowercase.
			kw = strings.ToLower(strings.TrimSpace(kw))
			if _, ok := tokenSet[kw]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	if bestScore == 0 {
		return 0, false
	}
	return best, true
}
