package util

import (
	"strings"
	"testing"
)

func TestSHA256HexFromReaderMatchesBytes(t *testing.T) {
	content := "PART A\n1. Explain the disaster management cycle."
	got, err := SHA256HexFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("SHA256HexFromReader: %v", err)
	}
	if want := SHA256Hex([]byte(content)); got != want {
		t.Fatalf("hash mismatch: reader=%s bytes=%s", got, want)
	}
	if len(got) != 64 {
		t.Fatalf("unexpected digest length %d", len(got))
	}
}
