package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEngine is a deterministic feature-hashing embedder: unigrams and
// bigrams hashed into a fixed 384-dimensional space, L2-normalized. It has
// no notion of semantics beyond token overlap, but it keeps project memory
// functional with no network or model dependency, and its scores are stable
// across runs.
type LocalEngine struct{}

// NewLocalEngine creates the offline fallback engine.
func NewLocalEngine() *LocalEngine { return &LocalEngine{} }

// Embed generates a deterministic embedding for one text.
func (e *LocalEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, Dimensions)

	tokens := tokenize(text)
	for i, tok := range tokens {
		addFeature(vec, tok, 1.0)
		if i+1 < len(tokens) {
			addFeature(vec, tok+" "+tokens[i+1], 0.5)
		}
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text sequentially.
func (e *LocalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		emb, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding width.
func (e *LocalEngine) Dimensions() int { return Dimensions }

// Name returns the engine name.
func (e *LocalEngine) Name() string { return "local:feature-hash" }

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()
	idx := int(sum % uint32(len(vec)))
	// Sign bit from the hash spreads features across both directions.
	if sum&0x80000000 != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
