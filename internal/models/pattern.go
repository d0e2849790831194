package models

import "fmt"

// ConfigurationError reports a malformed ExamPattern or TierThresholds. It is
// a caller configuration bug: the whole job fails, nothing is retried or
// silently defaulted.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// PartPattern maps question numbers of one paper part to module numbers.
type PartPattern struct {
	MarksPerQuestion int         `json:"marks_per_question"`
	Questions        map[int]int `json:"questions"`
}

// ExamPattern is the per-subject mapping from (part, question number) to
// module number. Immutable once attached to an analysis run.
type ExamPattern struct {
	Name  string                 `json:"name"`
	Parts map[string]PartPattern `json:"parts"`
}

// ModuleFor looks up the authoritative module mapping for a question number.
func (p ExamPattern) ModuleFor(part string, number int) (int, bool) {
	pp, ok := p.Parts[part]
	if !ok {
		return 0, false
	}
	m, ok := pp.Questions[number]
	return m, ok
}

// DefaultMarks returns the configured marks for a part, 0 if the part is
// unknown.
func (p ExamPattern) DefaultMarks(part string) int {
	pp, ok := p.Parts[part]
	if !ok {
		return 0
	}
	return pp.MarksPerQuestion
}

func (p ExamPattern) Validate() error {
	if len(p.Parts) == 0 {
		return &ConfigurationError{Field: "exam_pattern.parts", Reason: "no parts configured"}
	}
	for part, pp := range p.Parts {
		if part != "A" && part != "B" {
			return &ConfigurationError{Field: "exam_pattern.parts", Reason: fmt.Sprintf("unknown part %q", part)}
		}
		if pp.MarksPerQuestion <= 0 {
			return &ConfigurationError{Field: "exam_pattern.marks_per_question", Reason: fmt.Sprintf("part %s: must be positive", part)}
		}
		for num, mod := range pp.Questions {
			if num <= 0 || mod <= 0 {
				return &ConfigurationError{Field: "exam_pattern.questions", Reason: fmt.Sprintf("part %s: bad mapping %d -> %d", part, num, mod)}
			}
		}
	}
	return nil
}

// KTUStandardPattern is the 5-module university scheme: Part A short answers
// Q1-Q10 at 3 marks, Part B long answers Q11-Q20 at 14 marks, two questions
// per module in each part.
func KTUStandardPattern() ExamPattern {
	partA := map[int]int{}
	for q := 1; q <= 10; q++ {
		partA[q] = (q-1)/2 + 1
	}
	partB := map[int]int{}
	for q := 11; q <= 20; q++ {
		partB[q] = (q-11)/2 + 1
	}
	return ExamPattern{
		Name: "ktu_standard",
		Parts: map[string]PartPattern{
			"A": {MarksPerQuestion: 3, Questions: partA},
			"B": {MarksPerQuestion: 14, Questions: partB},
		},
	}
}

// GenericModulePattern distributes questions evenly across numModules, with
// aCount Part A questions followed by bCount Part B questions.
func GenericModulePattern(numModules, aCount, bCount, aMarks, bMarks int) ExamPattern {
	partA := map[int]int{}
	perA := aCount / numModules
	if perA == 0 {
		perA = 1
	}
	for q := 1; q <= aCount; q++ {
		m := (q-1)/perA + 1
		if m > numModules {
			m = numModules
		}
		partA[q] = m
	}
	partB := map[int]int{}
	perB := bCount / numModules
	if perB == 0 {
		perB = 1
	}
	for i := 1; i <= bCount; i++ {
		m := (i-1)/perB + 1
		if m > numModules {
			m = numModules
		}
		partB[aCount+i] = m
	}
	return ExamPattern{
		Name: fmt.Sprintf("generic_%d_module", numModules),
		Parts: map[string]PartPattern{
			"A": {MarksPerQuestion: aMarks, Questions: partA},
			"B": {MarksPerQuestion: bMarks, Questions: partB},
		},
	}
}

// PatternByName resolves a stored pattern name; unknown names fall back to
// the KTU standard scheme.
func PatternByName(name string) ExamPattern {
	switch name {
	case "generic_5_module":
		return GenericModulePattern(5, 10, 10, 3, 14)
	case "generic_6_module":
		return GenericModulePattern(6, 12, 12, 2, 12)
	default:
		return KTUStandardPattern()
	}
}
