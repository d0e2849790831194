package extract

import "fmt"

// ExtractionError reports bad or insufficient input text for one paper. It is
// surfaced to the caller per paper and never retried automatically.
type ExtractionError struct {
	Stage   string
	Reason  string
	Excerpt string
}

func (e *ExtractionError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("extraction failed at %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("extraction failed at %s: %s (input: %q)", e.Stage, e.Reason, e.Excerpt)
}

func newExtractionError(stage, reason, input string) *ExtractionError {
	excerpt := input
	if len(excerpt) > 80 {
		excerpt = excerpt[:80]
	}
	return &ExtractionError{Stage: stage, Reason: reason, Excerpt: excerpt}
}
