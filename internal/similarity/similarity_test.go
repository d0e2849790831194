package similarity

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[text], nil
}

func TestJaccardIdentityAndSymmetry(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	score, path := e.Score(ctx, "flood plain zoning", "flood plain zoning")
	if score != 1.0 {
		t.Fatalf("identity score: got %v, want 1.0", score)
	}
	if path != PathJaccard {
		t.Fatalf("expected jaccard path, got %q", path)
	}

	ab, _ := e.Score(ctx, "flood plain zoning", "zoning coastal areas")
	ba, _ := e.Score(ctx, "zoning coastal areas", "flood plain zoning")
	if ab != ba {
		t.Fatalf("asymmetric score: %v vs %v", ab, ba)
	}
}

func TestJaccardEdgeCases(t *testing.T) {
	if got := Jaccard("flood cyclone", "landslide drought"); got != 0 {
		t.Errorf("disjoint sets: got %v, want 0", got)
	}
	if got := Jaccard("", ""); got != 0 {
		t.Errorf("both empty: got %v, want 0", got)
	}
	if got := Jaccard("flood", ""); got != 0 {
		t.Errorf("one empty: got %v, want 0", got)
	}
	if got := Jaccard("flood plain", "flood plain zoning map"); got != 0.5 {
		t.Errorf("partial overlap: got %v, want 0.5", got)
	}
}

func TestCosineClampsNegative(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); got != 0 {
		t.Fatalf("opposite vectors: got %v, want 0", got)
	}
	if got := Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}); got != 1 {
		t.Fatalf("identical vectors: got %v, want 1", got)
	}
	if got := Cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("length mismatch: got %v, want 0", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero vector: got %v, want 0", got)
	}
}

func TestEmbeddingPathPreferred(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"types disasters":          {1, 0, 0},
		"classification disasters": {0.9, 0.1, 0},
	}}
	e := NewEngine(emb)

	score, path := e.Score(context.Background(), "types disasters", "classification disasters")
	if path != PathEmbedding {
		t.Fatalf("expected embedding path, got %q", path)
	}
	if score <= 0.9 {
		t.Fatalf("near-parallel vectors: got %v", score)
	}

	embedding, jaccard := e.PathCounts()
	if embedding != 1 || jaccard != 0 {
		t.Fatalf("path counts: embedding=%d jaccard=%d", embedding, jaccard)
	}
}

func TestEmbeddingFailureFallsBackToJaccard(t *testing.T) {
	e := NewEngine(&stubEmbedder{err: errors.New("backend down")})

	score, path := e.Score(context.Background(), "flood plain zoning", "flood plain zoning")
	if path != PathJaccard {
		t.Fatalf("expected jaccard fallback, got %q", path)
	}
	if score != 1.0 {
		t.Fatalf("fallback identity score: got %v", score)
	}
}

func TestEmbeddingCacheAndPrime(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"flood routing": {0, 1},
	}}
	e := NewEngine(emb)
	e.Prime("reservoir operation", []float32{0, 1})

	ctx := context.Background()
	e.Score(ctx, "flood routing", "reservoir operation")
	e.Score(ctx, "flood routing", "reservoir operation")

	// Only the unprimed text should ever hit the backend, and only once.
	if emb.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", emb.calls)
	}
}
