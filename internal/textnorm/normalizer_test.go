package textnorm

import (
	"strings"
	"testing"
)

func TestNormalizeStripsYearsMarksAndStopwords(t *testing.T) {
	n := New()
	got := n.Normalize("Explain the types of disasters (3 marks) 2021 [14]")
	if got.NormalizedText != "types disasters" {
		t.Fatalf("unexpected normalized text: %q", got.NormalizedText)
	}
	if strings.Contains(got.TopicKey, "2021") || strings.Contains(got.TopicKey, "marks") {
		t.Fatalf("topic key leaked noise tokens: %q", got.TopicKey)
	}
}

func TestNormalizeKeepsInternalHyphens(t *testing.T) {
	n := New()
	got := n.Normalize("Describe the el-nino effect")
	if got.NormalizedText != "el-nino effect" {
		t.Fatalf("unexpected normalized text: %q", got.NormalizedText)
	}
}

func TestTopicKeyInvariantUnderTokenReorder(t *testing.T) {
	n := New()
	a := n.Normalize("causes of landslides in hilly regions")
	b := n.Normalize("hilly regions landslides causes")
	if a.TopicKey != b.TopicKey {
		t.Fatalf("topic keys differ: %q vs %q", a.TopicKey, b.TopicKey)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := New()
	raw := "What is disaster mitigation? Discuss with examples. (3 marks)"
	first := n.Normalize(raw)
	for i := 0; i < 5; i++ {
		if got := n.Normalize(raw); got != first {
			t.Fatalf("normalization not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestNormalizeEmptyAndStopwordOnly(t *testing.T) {
	n := New()
	if got := n.Normalize(""); got.NormalizedText != "" || got.TopicKey != "" {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if got := n.Normalize("What is the following?"); got.NormalizedText != "" {
		t.Fatalf("expected stopword-only text to normalize empty, got %q", got.NormalizedText)
	}
}

func TestExtraStopwords(t *testing.T) {
	n := New("diagram")
	got := n.Normalize("Explain ozone depletion with diagram")
	if strings.Contains(got.NormalizedText, "diagram") {
		t.Fatalf("extra stopword not removed: %q", got.NormalizedText)
	}
}
