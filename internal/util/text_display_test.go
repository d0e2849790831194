package util

import "testing"

func TestDisplaySnippet(t *testing.T) {
	in := "Explain\x00   flood plain \n\t zoning"
	out := DisplaySnippet(in, 100)
	if out != "Explain flood plain zoning" {
		t.Fatalf("unexpected snippet: %q", out)
	}
	long := DisplaySnippet("word word word word", 9)
	if long != "word word..." {
		t.Fatalf("unexpected truncation: %q", long)
	}
}

func TestHighlightTerms(t *testing.T) {
	hits := HighlightTerms(
		"Describe the disaster management cycle with a neat sketch.",
		"what is the disaster cycle",
	)
	if len(hits) != 2 || hits[0] != "disaster" || hits[1] != "cycle" {
		t.Fatalf("unexpected highlight terms: %v", hits)
	}
}
