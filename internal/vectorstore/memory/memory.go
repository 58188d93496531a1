package memory

import (
	"context"
	"maps"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Storage is an in-memory vector index using brute-force cosine similarity.
// Rebuild swaps in a complete snapshot, so readers never see partial content.
type Storage struct {
	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	dimension int
	records   []domain.IndexRecord
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Rebuild(ctx context.Context, records []domain.IndexRecord) error {
	dim, err := vectorstore.ValidateRecords(records)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	next := &snapshot{dimension: dim, records: make([]domain.IndexRecord, len(records))}
	for i, r := range records {
		r.Vector = append(domain.Vector(nil), r.Vector...)
		r.Metadata = maps.Clone(r.Metadata)
		next.records[i] = r
	}
	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
	return nil
}

func (s *Storage) Query(ctx context.Context, vector domain.Vector, k int) ([]domain.Match, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap == nil {
		return nil, domain.ErrIndexNotReady
	}
	if err := vectorstore.CheckQuery(vector, k, snap.dimension); err != nil {
		return nil, err
	}
	scored := make([]vectorstore.Scored, len(snap.records))
	for i, r := range snap.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scored[i] = vectorstore.Scored{Record: r, Score: vectorstore.Cosine(r.Vector, vector)}
	}
	return vectorstore.Rank(scored, k), nil
}

func (s *Storage) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return s.snap.dimension
}

// Close drops the content; the index reports not ready afterwards.
func (s *Storage) Close() error {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
	return nil
}
