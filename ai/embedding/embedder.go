// Package embedding maps arbitrary text to fixed-length unit vectors.
//
// The embedder is a deterministic feature-hashing scheme: it preserves
// lexical overlap, not semantic meaning. Similarity thresholds elsewhere in
// the system are calibrated against this scheme and must be re-validated
// before swapping in a model-based embedder.
package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dimensions is the fixed embedding vector size.
const Dimensions = 128

// Embedder produces fixed-length vectors for similarity comparison.
type Embedder interface {
	// Embed returns a unit-norm vector for non-empty text and the zero
	// vector for empty text. Pure: identical (text, contextTag) inputs
	// always produce identical output.
	Embed(text, contextTag string) []float32

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// FeatureHasher is the default deterministic Embedder.
type FeatureHasher struct{}

// NewFeatureHasher creates the default embedder.
func NewFeatureHasher() *FeatureHasher {
	return &FeatureHasher{}
}

// Dimensions returns the fixed vector size.
func (*FeatureHasher) Dimensions() int { return Dimensions }

// Embed hashes normalized tokens and token bigrams into a fixed-size vector,
// salts the hash with the context tag, and L2-normalizes the result.
func (*FeatureHasher) Embed(text, contextTag string) []float32 {
	vec := make([]float32, Dimensions)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		addFeature(vec, contextTag+"\x00"+tok, 1.0)
	}
	for i := 0; i+1 < len(tokens); i++ {
		addFeature(vec, contextTag+"\x00"+tokens[i]+" "+tokens[i+1], 0.5)
	}

	normalize(vec)
	return vec
}

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % Dimensions)
	// Sign bit from a hash bit outside the index range keeps buckets from
	// accumulating only positive mass.
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Cosine returns the cosine similarity of two equal-length vectors.
// Inputs need not be unit-norm; zero or mismatched vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
