package vector

import (
	"reflect"
	"testing"
)

func TestFromLiteralRoundTrip(t *testing.T) {
	v := []float32{0.125, -1, 0, 2.5}
	got, err := FromLiteral(ToLiteral(v))
	if err != nil {
		t.Fatalf("FromLiteral: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("round trip: got %v, want %v", got, v)
	}
}

func TestFromLiteralEmptyMeansNoEmbedding(t *testing.T) {
	for _, s := range []string{"", "  ", "[]"} {
		got, err := FromLiteral(s)
		if err != nil {
			t.Fatalf("FromLiteral(%q): %v", s, err)
		}
		if got != nil {
			t.Fatalf("FromLiteral(%q): got %v, want nil", s, got)
		}
	}
}

func TestFromLiteralMalformed(t *testing.T) {
	for _, s := range []string{"0.1,0.2", "[0.1,x]", "[0.1"} {
		if _, err := FromLiteral(s); err == nil {
			t.Fatalf("FromLiteral(%q): expected error", s)
		}
	}
}
