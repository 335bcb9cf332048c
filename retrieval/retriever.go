// Package retrieval finds the nearest prior input/output pairs for a query.
// Failures are always surfaced as typed errors; a legitimately empty result
// and a failed retrieval are different outcomes in the contract.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/promptforge/promptforge/internal/logging"
)

// Retriever ranks pool entries by cosine similarity to the query embedding.
type Retriever struct {
	pool         *Pool
	embedder     Embedder
	qualityFloor float64
	logger       logging.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithEmbedder replaces the default hashing embedder.
func WithEmbedder(e Embedder) Option {
	return func(r *Retriever) {
		r.embedder = e
	}
}

// WithQualityFloor sets the minimum usable fraction of the pool. Below it,
// Find fails with PoolQualityError instead of ranking what is left.
func WithQualityFloor(floor float64) Option {
	return func(r *Retriever) {
		r.qualityFloor = floor
	}
}

// New creates a Retriever over the given pool.
func New(pool *Pool, logger logging.Logger, opts ...Option) *Retriever {
	r := &Retriever{
		pool:         pool,
		embedder:     NewHashingEmbedder(),
		qualityFloor: 0.5,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scoredPair struct {
	pair  ExamplePair
	score float64
}

// Find returns the k most similar pairs, most similar first. It never
// substitutes an empty list for a failure: the pool being empty, the pool
// being mostly malformed, and non-finite similarity each raise their own
// member of the retrieval error family.
func (r *Retriever) Find(ctx context.Context, query string, k int) ([]ExamplePair, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	snapshot := r.pool.Snapshot()
	if len(snapshot) == 0 {
		return nil, NewError(KindEmptyPool, "example pool is empty", nil)
	}

	valid := make([]ExamplePair, 0, len(snapshot))
	for _, pair := range snapshot {
		if pair.valid() {
			valid = append(valid, pair)
		}
	}
	fraction := float64(len(valid)) / float64(len(snapshot))
	if len(valid) < k && fraction < r.qualityFloor {
		return nil, NewError(KindPoolQuality,
			fmt.Sprintf("only %d/%d pool entries usable (%.0f%%), below floor %.0f%%",
				len(valid), len(snapshot), fraction*100, r.qualityFloor*100), nil)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewError(KindVectorIntegrity, "failed to embed query", err)
	}

	scored := make([]scoredPair, 0, len(valid))
	for _, pair := range valid {
		vec := pair.Vector
		if vec == nil {
			vec, err = r.embedder.Embed(ctx, pair.Input)
			if err != nil {
				return nil, NewError(KindVectorIntegrity, "failed to embed pool entry", err)
			}
		}
		score := cosine(queryVec, vec)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, NewError(KindVectorIntegrity,
				fmt.Sprintf("non-finite similarity for entry %q", truncate(pair.Input, 40)), nil)
		}
		scored = append(scored, scoredPair{pair: pair, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}
	result := make([]ExamplePair, k)
	for i := 0; i < k; i++ {
		result[i] = scored[i].pair
	}
	r.logger.Debug("retrieval complete", "requested", k, "returned", len(result), "pool_size", len(snapshot))
	return result, nil
}

// cosine computes cosine similarity. Mismatched lengths compare over the
// shorter prefix; zero vectors score zero rather than dividing by zero.
func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if math.IsNaN(dot) || math.IsNaN(normA) || math.IsNaN(normB) {
		return math.NaN()
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
