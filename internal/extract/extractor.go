// Package extract segments the raw text of one exam paper into structured
// question records using a configurable numbering pattern.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pyqlens/internal/models"
	"pyqlens/internal/textnorm"
)

// RawQuestion is the ephemeral extraction record: produced here, consumed
// immediately by the classifier and normalizer, never persisted on its own.
type RawQuestion struct {
	Part      string
	Number    int
	SubLetter string
	Text      string
	Marks     int
}

const (
	// Inputs shorter than this cannot be a scanned exam paper.
	minContentLength = 100
	// Below this count the primary pass is suspect and the looser fallback
	// pass gets a chance.
	minQuestionCount = 3
	// Captured blocks shorter than this are numbering artifacts, not
	// questions.
	minQuestionTextLen = 10
	// Trailing bare numbers above this are page numbers, not marks.
	maxPlausibleMarks = 20
)

var (
	partAMarker = regexp.MustCompile(`(?i)\bPART\s*[-:]?\s*A\b`)
	partBMarker = regexp.MustCompile(`(?i)\bPART\s*[-:]?\s*B\b`)

	// A question starts with a 1-2 digit number followed by a word opening
	// with a capital. The continuation class accepts any letter so all-caps
	// abbreviations ("NDMA") still open a question.
	numberedBoundary = regexp.MustCompile(`\b(\d{1,2})\s*[.)]?\s+([A-Z][A-Za-z])`)
	// Part B sub-questions: number, letter, closing paren, tolerant of
	// whitespace around each ("11a)", "11 b)", "12. a )").
	letteredBoundary = regexp.MustCompile(`\b(\d{1,2})\s*[.)]?\s*([a-z])\s*[.)]`)

	leadingNumbering = regexp.MustCompile(`^\d{1,2}\s*[.)]?\s*(?:[a-z]\s*[.)])?\s*`)

	marksAnnotation   = regexp.MustCompile(`(?i)\(?\s*(\d{1,2})\s*marks?\s*\)?\s*$`)
	bracketAnnotation = regexp.MustCompile(`\[\s*(\d{1,2})\s*\]\s*$`)
	trailingNumber    = regexp.MustCompile(`\s(\d{1,2})\s*$`)

	trailingNoise = regexp.MustCompile(`(?:\s[A-Za-z]|[.,;:|\-]{2,})\s*$`)

	skipLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{10,}$`),
		regexp.MustCompile(`(?i)^Page\s*\d+`),
		regexp.MustCompile(`(?i)^Name\s*:`),
		regexp.MustCompile(`(?i)^Reg(istration)?\.?\s*No`),
		regexp.MustCompile(`(?i)^Course\s*(Code|Name)\s*:`),
		regexp.MustCompile(`(?i)^Max\.?\s*Marks`),
		regexp.MustCompile(`(?i)^Duration\s*:`),
		regexp.MustCompile(`(?i)^\d+\s+of\s+\d+$`),
		regexp.MustCompile(`(?i)^Module\s*[-:]?\s*(\d+|[IVX]+)\b`),
		regexp.MustCompile(`(?i)^\(?Answer\b.*\)?$`),
		regexp.MustCompile(`(?i)^each\s+question\s+carries`),
		regexp.MustCompile(`^[.,;:\-\s]+$`),
	}
)

type Extractor struct {
	norm *textnorm.Normalizer
}

func New(norm *textnorm.Normalizer) *Extractor {
	return &Extractor{norm: norm}
}

// Extract parses one paper's text into question records. The primary pass
// segments Part A and Part B regions with numbering regexes; a looser
// line-based fallback runs when the primary yield is implausibly low, and is
// adopted only when it finds strictly more questions.
func (e *Extractor) Extract(text string, pattern models.ExamPattern) ([]RawQuestion, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minContentLength {
		return nil, newExtractionError("validate", "input text empty or too short", trimmed)
	}

	cleaned := cleanLines(trimmed)
	partA, partB := splitSections(cleaned)

	questions := e.extractNumbered(partA, "A", maxQuestionNumber(pattern, "A"))
	questions = append(questions, e.extractPartB(partB)...)

	if len(questions) < minQuestionCount {
		fallback := e.fallbackExtract(cleaned, maxQuestionNumber(pattern, "A"))
		if len(fallback) > len(questions) {
			questions = fallback
		}
	}
	if len(questions) == 0 {
		return nil, newExtractionError("segment", "no questions found after primary and fallback passes", trimmed)
	}

	questions = e.dedupe(questions)
	for i := range questions {
		if questions[i].Marks == 0 {
			questions[i].Marks = pattern.DefaultMarks(questions[i].Part)
		}
	}
	return questions, nil
}

// cleanLines drops header/footer lines that carry no question content.
func cleanLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		skip := false
		for _, p := range skipLinePatterns {
			if p.MatchString(line) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// splitSections divides the paper at PART A / PART B markers. Without
// markers, the whole text is treated as Part A.
func splitSections(text string) (string, string) {
	bLoc := partBMarker.FindStringIndex(text)
	aLoc := partAMarker.FindStringIndex(text)
	switch {
	case aLoc != nil && bLoc != nil && aLoc[0] < bLoc[0]:
		return text[aLoc[1]:bLoc[0]], text[bLoc[1]:]
	case bLoc != nil:
		return text[:bLoc[0]], text[bLoc[1]:]
	case aLoc != nil:
		return text[aLoc[1]:], ""
	default:
		return text, ""
	}
}

type boundary struct {
	start, end int
	number     int
	subLetter  string
}

// extractNumbered handles short-answer sections: one question per numbered
// boundary, captured until the next boundary or end of section.
func (e *Extractor) extractNumbered(section, part string, maxNumber int) []RawQuestion {
	section = joinWhitespace(section)
	if section == "" {
		return nil
	}
	bounds := numberedBoundaries(section, maxNumber)
	return e.capture(section, part, bounds)
}

// extractPartB handles long-answer sections where questions may carry
// lettered sub-parts. Lettered and plain numbered boundaries are merged in
// document order; a numbered block without sub-parts becomes one question.
func (e *Extractor) extractPartB(section string) []RawQuestion {
	section = joinWhitespace(section)
	if section == "" {
		return nil
	}
	bounds := numberedBoundaries(section, 0)
	for _, m := range letteredBoundary.FindAllStringSubmatchIndex(section, -1) {
		num, err := strconv.Atoi(section[m[2]:m[3]])
		if err != nil {
			continue
		}
		bounds = append(bounds, boundary{
			start:     m[0],
			end:       m[1],
			number:    num,
			subLetter: section[m[4]:m[5]],
		})
	}
	sort.SliceStable(bounds, func(i, j int) bool { return bounds[i].start < bounds[j].start })
	// A lettered boundary subsumes a plain one starting at the same number.
	merged := bounds[:0]
	for _, b := range bounds {
		if n := len(merged); n > 0 && b.start < merged[n-1].end {
			if b.subLetter != "" && merged[n-1].subLetter == "" {
				merged[n-1] = b
			}
			continue
		}
		merged = append(merged, b)
	}
	return e.capture(section, "B", merged)
}

func numberedBoundaries(section string, maxNumber int) []boundary {
	out := make([]boundary, 0, 16)
	for _, m := range numberedBoundary.FindAllStringSubmatchIndex(section, -1) {
		num, err := strconv.Atoi(section[m[2]:m[3]])
		if err != nil {
			continue
		}
		if maxNumber > 0 && num > maxNumber {
			continue
		}
		// "14 Marks" is an annotation, not a question start.
		if isMarksWord(section[m[4]:]) {
			continue
		}
		out = append(out, boundary{start: m[0], end: m[1], number: num})
	}
	return out
}

func (e *Extractor) capture(section, part string, bounds []boundary) []RawQuestion {
	out := make([]RawQuestion, 0, len(bounds))
	for i, b := range bounds {
		end := len(section)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		block := strings.TrimSpace(section[b.start:end])
		block = leadingNumbering.ReplaceAllString(block, "")
		block, marks := extractMarks(block)
		block = stripTailNoise(block)
		if len(block) < minQuestionTextLen || !startsWithLetter(block) {
			continue
		}
		out = append(out, RawQuestion{
			Part:      part,
			Number:    b.number,
			SubLetter: b.subLetter,
			Text:      block,
			Marks:     marks,
		})
	}
	return out
}

// fallbackExtract is the looser secondary pass: one question per numbered
// line, accumulating continuation lines until the next numbered line.
func (e *Extractor) fallbackExtract(text string, maxPartANumber int) []RawQuestion {
	if maxPartANumber <= 0 {
		maxPartANumber = 10
	}
	lineStart := regexp.MustCompile(`^(\d{1,2})\s*([a-z])?\s*[.)]*\s+(\S.*)$`)
	lines := strings.Split(text, "\n")
	out := make([]RawQuestion, 0, 16)
	var current *RawQuestion
	flush := func() {
		if current == nil {
			return
		}
		text, marks := extractMarks(joinWhitespace(current.Text))
		text = stripTailNoise(text)
		if len(text) >= minQuestionTextLen && startsWithLetter(text) {
			current.Text = text
			current.Marks = marks
			out = append(out, *current)
		}
		current = nil
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := lineStart.FindStringSubmatch(line); m != nil && startsWithLetter(m[3]) {
			flush()
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			part := "A"
			if num > maxPartANumber {
				part = "B"
			}
			current = &RawQuestion{Part: part, Number: num, SubLetter: m[2], Text: m[3]}
			continue
		}
		if current != nil {
			current.Text += " " + line
		}
	}
	flush()
	return out
}

// dedupe keeps the first of any two questions with identical normalized text
// in the same part, guarding against overlapping regex double-matches.
func (e *Extractor) dedupe(questions []RawQuestion) []RawQuestion {
	seen := make(map[string]struct{}, len(questions))
	out := make([]RawQuestion, 0, len(questions))
	for _, q := range questions {
		key := q.Part + "\x00" + e.norm.Normalize(q.Text).NormalizedText
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// extractMarks pulls a trailing or bracketed marks annotation off the block.
// Returns 0 when no plausible annotation is present.
func extractMarks(block string) (string, int) {
	if m := marksAnnotation.FindStringSubmatchIndex(block); m != nil {
		if v, err := strconv.Atoi(block[m[2]:m[3]]); err == nil {
			return strings.TrimSpace(block[:m[0]]), v
		}
	}
	if m := bracketAnnotation.FindStringSubmatchIndex(block); m != nil {
		if v, err := strconv.Atoi(block[m[2]:m[3]]); err == nil {
			return strings.TrimSpace(block[:m[0]]), v
		}
	}
	if m := trailingNumber.FindStringSubmatchIndex(block); m != nil {
		if v, err := strconv.Atoi(block[m[2]:m[3]]); err == nil && v <= maxPlausibleMarks {
			return strings.TrimSpace(block[:m[0]]), v
		}
	}
	return block, 0
}

// stripTailNoise removes only unambiguous OCR debris from the end of a
// block: stray single characters and runs of punctuation. Dictionary words
// are never touched.
func stripTailNoise(block string) string {
	for {
		next := trailingNoise.ReplaceAllString(block, "")
		next = strings.TrimRight(strings.TrimSpace(next), ".")
		if next == block {
			return block
		}
		block = next
	}
}

func joinWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func startsWithLetter(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isMarksWord(rest string) bool {
	lower := strings.ToLower(rest)
	return strings.HasPrefix(lower, "marks") || strings.HasPrefix(lower, "mark ")
}

func maxQuestionNumber(pattern models.ExamPattern, part string) int {
	pp, ok := pattern.Parts[part]
	if !ok {
		return 0
	}
	max := 0
	for num := range pp.Questions {
		if num > max {
			max = num
		}
	}
	return max
}
