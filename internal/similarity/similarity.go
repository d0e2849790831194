// Package similarity scores pairs of normalized question texts in [0,1],
// preferring embedding cosine similarity and falling back to token Jaccard
// when no embedding backend is usable.
package similarity

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"pyqlens/internal/textnorm"
)

// Path identifies which scoring route produced a result. Exposed for
// observability only; the score contract is identical on both paths.
type Path string

const (
	PathEmbedding Path = "embedding"
	PathJaccard   Path = "jaccard"
)

// Embedder produces a fixed-length vector for a text, or an error when the
// backend is unavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine caches embeddings for the lifetime of one clustering run. Build a
// fresh Engine per run so state never leaks across modules or subjects.
type Engine struct {
	embedder Embedder

	mu    sync.Mutex
	cache map[string][]float32

	embeddingUses atomic.Int64
	jaccardUses   atomic.Int64
}

// NewEngine accepts a nil embedder, which pins every score to the Jaccard
// path.
func NewEngine(embedder Embedder) *Engine {
	return &Engine{embedder: embedder, cache: make(map[string][]float32)}
}

// Prime seeds the embedding cache with a vector computed elsewhere, so
// scoring questions with stored embeddings never re-calls the provider.
func (e *Engine) Prime(text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	e.mu.Lock()
	e.cache[text] = vector
	e.mu.Unlock()
}

// Score returns a similarity in [0,1] and the path that produced it. Any
// embedding failure silently degrades to Jaccard; callers must not branch on
// the path.
func (e *Engine) Score(ctx context.Context, a, b string) (float64, Path) {
	if e.embedder != nil || e.hasBoth(a, b) {
		va, okA := e.vector(ctx, a)
		vb, okB := e.vector(ctx, b)
		if okA && okB && len(va) == len(vb) && len(va) > 0 {
			e.embeddingUses.Add(1)
			return Cosine(va, vb), PathEmbedding
		}
	}
	e.jaccardUses.Add(1)
	return Jaccard(a, b), PathJaccard
}

// PathCounts reports how many scores each path served so far.
func (e *Engine) PathCounts() (embedding, jaccard int64) {
	return e.embeddingUses.Load(), e.jaccardUses.Load()
}

func (e *Engine) hasBoth(a, b string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, okA := e.cache[a]
	_, okB := e.cache[b]
	return okA && okB
}

func (e *Engine) vector(ctx context.Context, text string) ([]float32, bool) {
	e.mu.Lock()
	v, ok := e.cache[text]
	e.mu.Unlock()
	if ok {
		return v, true
	}
	if e.embedder == nil {
		return nil, false
	}
	v, err := e.embedder.Embed(ctx, text)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	e.mu.Lock()
	e.cache[text] = v
	e.mu.Unlock()
	return v, true
}

// Cosine returns the cosine of two vectors clamped to [0,1]; unrelated text
// can score negative and is treated as zero similarity.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}

// Jaccard is the token-set coefficient |A∩B| / |A∪B|. Empty-set cases score
// zero, never one.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range textnorm.Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}
