// Package vectorstore holds the pieces shared by the vector index backends:
// record validation and deterministic ranking.
package vectorstore

import (
	"fmt"
	"maps"
	"math"
	"sort"

	"ragchat/internal/domain"
)

// Index is the contract every backend implements.
type Index = domain.VectorIndex

// Scored pairs a record with its similarity to a query.
type Scored struct {
	Record domain.IndexRecord
	Score  float64
}

// ValidateRecords checks a rebuild batch and returns its common dimension.
func ValidateRecords(records []domain.IndexRecord) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: rebuild with no records", domain.ErrInvalidInput)
	}
	dim := len(records[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("%w: record %d has an empty vector", domain.ErrInvalidInput, records[0].ID)
	}
	seen := make(map[int]struct{}, len(records))
	for _, r := range records {
		if len(r.Vector) != dim {
			return 0, fmt.Errorf("%w: record %d has %d dimensions, expected %d", domain.ErrDimensionMismatch, r.ID, len(r.Vector), dim)
		}
		if _, dup := seen[r.ID]; dup {
			return 0, fmt.Errorf("%w: duplicate record id %d", domain.ErrInvalidInput, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return dim, nil
}

// CheckQuery validates query arguments against an index of the given dimension.
func CheckQuery(vector domain.Vector, k, dimension int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	if len(vector) != dimension {
		return fmt.Errorf("%w: index has %d dimensions, query has %d", domain.ErrDimensionMismatch, dimension, len(vector))
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 if either is a zero vector.
func Cosine(a, b domain.Vector) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank orders scored records by descending score, ties by ascending ID, and
// returns at most k matches with ranks starting at 1. Match metadata is a
// copy, so callers cannot reach into an index's records.
func Rank(scored []Scored, k int) []domain.Match {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})
	if k > len(scored) {
		k = len(scored)
	}
	out := make([]domain.Match, k)
	for i := 0; i < k; i++ {
		r := scored[i].Record
		out[i] = domain.Match{
			PassageID: r.ID,
			Text:      r.Text,
			Score:     scored[i].Score,
			Rank:      i + 1,
			Metadata:  maps.Clone(r.Metadata),
		}
	}
	return out
}
