// Package bolt persists the vector index in a single bbolt file so a document
// indexed once can be chatted with across restarts.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")

	keyDimension = []byte("dimension")
	keyCount     = []byte("count")
	keyBuiltAt   = []byte("built_at")
)

// Storage keeps every record in one bucket. Rebuild rewrites the bucket inside a
// single write transaction; queries run in read transactions and therefore see
// either the old or the new content.
type Storage struct {
	db *bbolt.DB
}

func Open(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: bolt index path is empty", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Rebuild(ctx context.Context, records []domain.IndexRecord) error {
	dim, err := vectorstore.ValidateRecords(records)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketRecords) != nil {
			if err := tx.DeleteBucket(bucketRecords); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketRecords)
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := b.Put(idKey(r.ID), data); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyDimension, []byte(strconv.Itoa(dim))); err != nil {
			return err
		}
		if err := meta.Put(keyCount, []byte(strconv.Itoa(len(records)))); err != nil {
			return err
		}
		return meta.Put(keyBuiltAt, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

func (s *Storage) Query(ctx context.Context, vector domain.Vector, k int) ([]domain.Match, error) {
	var scored []vectorstore.Scored
	err := s.db.View(func(tx *bbolt.Tx) error {
		dim := readInt(tx, keyDimension)
		b := tx.Bucket(bucketRecords)
		if dim == 0 || b == nil {
			return domain.ErrIndexNotReady
		}
		if err := vectorstore.CheckQuery(vector, k, dim); err != nil {
			return err
		}
		scored = make([]vectorstore.Scored, 0, readInt(tx, keyCount))
		return b.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r domain.IndexRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode index record: %w", err)
			}
			scored = append(scored, vectorstore.Scored{Record: r, Score: vectorstore.Cosine(r.Vector, vector)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vectorstore.Rank(scored, k), nil
}

func (s *Storage) IsReady() bool { return s.Dimension() > 0 }

func (s *Storage) Dimension() int {
	var dim int
	_ = s.db.View(func(tx *bbolt.Tx) error {
		dim = readInt(tx, keyDimension)
		return nil
	})
	return dim
}

// Count reports how many records the last successful rebuild stored.
func (s *Storage) Count() int {
	var n int
	_ = s.db.View(func(tx *bbolt.Tx) error {
		n = readInt(tx, keyCount)
		return nil
	})
	return n
}

func (s *Storage) Close() error { return s.db.Close() }

func idKey(id int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func readInt(tx *bbolt.Tx, key []byte) int {
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return 0
	}
	n, err := strconv.Atoi(string(meta.Get(key)))
	if err != nil {
		return 0
	}
	return n
}
