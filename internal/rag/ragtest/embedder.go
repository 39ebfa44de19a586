// Package ragtest holds deterministic stand-ins for the embedding service.
package ragtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

var ErrEmbed = errors.New("embedding failed")

// HashEmbedder maps text to a bag-of-words vector. Texts sharing words score
// higher under cosine similarity, which is enough to drive retrieval tests.
type HashEmbedder struct {
	Dim int
	// FailOn makes Embed fail for any text containing it.
	FailOn string

	calls atomic.Int64
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) Calls() int {
	return int(e.calls.Load())
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, ErrEmbed
	}
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
