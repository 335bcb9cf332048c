package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns text into a vector for similarity ranking. The engine does
// not mandate an embedding algorithm; plug in a model-backed implementation
// where one is available.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// hashDimensions is the fixed width of the default embedding space.
const hashDimensions = 256

// HashingEmbedder is the default embedder: a hashed bag-of-words projection
// into a fixed-width space, L2-normalized. Deterministic and dependency-free,
// which keeps retrieval usable without a model backend.
type HashingEmbedder struct{}

// NewHashingEmbedder creates the default embedder.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{}
}

func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, hashDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if word == "" {
			continue
		}
		hasher := fnv.New32a()
		hasher.Write([]byte(word))
		vec[hasher.Sum32()%hashDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
