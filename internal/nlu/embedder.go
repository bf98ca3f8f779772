package nlu

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns texts into dense vectors. Implementations must be safe for
// concurrent use and free of side effects visible to callers.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

const defaultHashDims = 512

// HashingEmbedder is a deterministic, dependency-free embedder: lowercased
// word unigrams and character trigrams are hashed into a fixed number of
// buckets and the result is L2 normalised.
type HashingEmbedder struct {
	dims int
}

func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = defaultHashDims
	}
	return &HashingEmbedder{dims: dims}
}

func (h *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.dims)
	for _, w := range tokenize(text) {
		if _, skip := stopwords[w]; skip {
			continue
		}
		vec[h.bucket("w:"+w)] += 2
		padded := "^" + w + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			vec[h.bucket("t:"+string(runes[i:i+3]))]++
		}
	}
	normalize(vec)
	return vec
}

func (h *HashingEmbedder) bucket(feature string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(feature))
	return int(f.Sum32() % uint32(h.dims))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "me": {}, "my": {}, "to": {}, "for": {}, "of": {},
	"on": {}, "in": {}, "is": {}, "it": {}, "please": {}, "can": {}, "you": {}, "do": {},
	"and": {}, "or": {}, "with": {}, "want": {}, "would": {}, "like": {}, "need": {},
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] /= n
	}
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
