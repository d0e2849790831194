package classify

import "strings"

// Bloom taxonomy levels and coarse difficulty labels attached to questions as
// advisory metadata for the dashboard. Heuristic only; never feeds module
// assignment or clustering.
const (
	BloomRemember   = "remember"
	BloomUnderstand = "understand"
	BloomApply      = "apply"
	BloomAnalyze    = "analyze"
	BloomEvaluate   = "evaluate"
	BloomCreate     = "create"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var bloomVerbs = map[string]string{
	"define":    BloomRemember,
	"list":      BloomRemember,
	"state":     BloomRemember,
	"name":      BloomRemember,
	"mention":   BloomRemember,
	"what":      BloomRemember,
	"explain":   BloomUnderstand,
	"describe":  BloomUnderstand,
	"discuss":   BloomUnderstand,
	"summarize": BloomUnderstand,
	"outline":   BloomUnderstand,
	"apply":     BloomApply,
	"calculate": BloomApply,
	"solve":     BloomApply,
	"determine": BloomApply,
	"implement": BloomApply,
	"analyze":   BloomAnalyze,
	"analyse":   BloomAnalyze,
	"compare":   BloomAnalyze,
	"contrast":  BloomAnalyze,
	"examine":   BloomAnalyze,
	"evaluate":  BloomEvaluate,
	"justify":   BloomEvaluate,
	"assess":    BloomEvaluate,
	"critique":  BloomEvaluate,
	"design":    BloomCreate,
	"develop":   BloomCreate,
	"propose":   BloomCreate,
	"construct": BloomCreate,
}

// BloomLevel guesses the cognitive level from the question's opening verb.
// Defaults to understand when no verb matches.
func BloomLevel(rawText string) string {
	for _, word := range strings.Fields(strings.ToLower(rawText)) {
		word = strings.Trim(word, ".,;:?!()[]")
		if level, ok := bloomVerbs[word]; ok {
			return level
		}
	}
	return BloomUnderstand
}

// Difficulty derives a coarse label from marks weight and Bloom level.
// Short-answer recall is easy; long-answer synthesis is hard.
func Difficulty(marks int, bloomLevel string) string {
	switch bloomLevel {
	case BloomEvaluate, BloomCreate:
		return DifficultyHard
	case BloomAnalyze, BloomApply:
		if marks >= 10 {
			return DifficultyHard
		}
		return DifficultyMedium
	default:
		if marks >= 10 {
			return DifficultyMedium
		}
		return DifficultyEasy
	}
}
