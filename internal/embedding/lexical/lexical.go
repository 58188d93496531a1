package lexical

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimension is the number of hash buckets when none is configured.
const DefaultDimension = 512

var wordRE = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Function words carry no topical signal; question words are included so a
// question and its answering passage share only content terms.
var stopwords = wordSet(`
	a an the and or but if then else for to of in on at by with as
	is are was were be been being it its this that these those
	from up down over under again further than so such into about between
	through during before after above below out off own same too very
	can will just don should now
	what which who whom did do does how why when where
`)

func wordSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(list) {
		set[w] = true
	}
	return set
}

// Embedder is an offline, deterministic bag-of-words embedder. Terms are
// hashed into a fixed number of buckets and weighted by term frequency, so
// no vocabulary has to be prepared or persisted alongside the index.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string { return "lexical" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes one unit-length vector per text. A text with no content
// terms maps to the zero vector.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectorize(terms(t))
	}
	return out, nil
}

func (e *Embedder) vectorize(words []string) []float32 {
	counts := make(map[uint32]int, len(words))
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		counts[h.Sum32()%uint32(e.dimension)]++
	}

	vec := make([]float32, e.dimension)
	var sumSq float64
	for slot, n := range counts {
		// sublinear tf dampens repeated words in long passages
		w := 1 + math.Log(float64(n))
		vec[slot] = float32(w)
		sumSq += w * w
	}
	if sumSq == 0 {
		return vec
	}
	inv := 1 / math.Sqrt(sumSq)
	for slot := range counts {
		vec[slot] = float32(float64(vec[slot]) * inv)
	}
	return vec
}

func terms(text string) []string {
	var out []string
	for _, w := range wordRE.FindAllString(strings.ToLower(text), -1) {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}
