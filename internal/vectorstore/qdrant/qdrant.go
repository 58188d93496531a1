package qdrant

import (
	"context"
	"fmt"
	"sync"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/vectorstore"
)

const (
	upsertBatch = 256
	textField   = "text"
	// extra hits requested beyond k to see ties at the cut
	tieMargin = 4
)

// Storage is a gRPC client to Qdrant. The configured collection name is used
// as an alias; every rebuild fills a fresh collection and then moves the alias
// onto it in one request, so searches never see a half-built collection.
type Storage struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	alias       string
	timeout     time.Duration

	mu        sync.RWMutex
	target    string
	dimension int
	seq       int
}

type Config struct {
	Addr       string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Dial connects to Qdrant and picks up a collection left by a previous run.
func Dial(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Addr == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant addr and collection are required", domain.ErrConfiguration)
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to Qdrant: %w", err)
	}
	s := New(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), cfg.Collection, cfg.Timeout)
	s.conn = conn
	if err := s.load(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New builds a Storage over existing clients.
func New(points qdrant.PointsClient, collections qdrant.CollectionsClient, alias string, timeout time.Duration) *Storage {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{points: points, collections: collections, alias: alias, timeout: timeout}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// load resolves the alias to its collection and reads the vector size.
func (s *Storage) load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	target, err := s.aliasTarget(ctx)
	if err != nil {
		return err
	}
	if target == "" {
		return nil
	}
	info, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: target})
	if err != nil {
		return fmt.Errorf("failed to read collection %s: %w", target, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	s.mu.Lock()
	s.target = target
	s.dimension = int(size)
	s.mu.Unlock()
	logger.Debug("qdrant alias %s -> %s (dim %d)", s.alias, target, size)
	return nil
}

func (s *Storage) aliasTarget(ctx context.Context) (string, error) {
	resp, err := s.collections.ListAliases(ctx, &qdrant.ListAliasesRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to list Qdrant aliases: %w", err)
	}
	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == s.alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

func (s *Storage) Rebuild(ctx context.Context, records []domain.IndexRecord) error {
	dim, err := vectorstore.ValidateRecords(records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	previous := s.target
	s.seq++
	next := fmt.Sprintf("%s_%d_%d", s.alias, time.Now().Unix(), s.seq)
	s.mu.Unlock()

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: next,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := s.fill(ctx, next, records); err != nil {
		s.drop(next)
		return err
	}
	actions := []*qdrant.AliasOperations{}
	if previous != "" {
		actions = append(actions, &qdrant.AliasOperations{
			Action: &qdrant.AliasOperations_DeleteAlias{DeleteAlias: &qdrant.DeleteAlias{AliasName: s.alias}},
		})
	}
	actions = append(actions, &qdrant.AliasOperations{
		Action: &qdrant.AliasOperations_CreateAlias{CreateAlias: &qdrant.CreateAlias{CollectionName: next, AliasName: s.alias}},
	})
	if _, err := s.collections.UpdateAliases(ctx, &qdrant.ChangeAliases{Actions: actions}); err != nil {
		s.drop(next)
		return fmt.Errorf("failed to switch alias %s: %w", s.alias, err)
	}

	s.mu.Lock()
	s.target = next
	s.dimension = dim
	s.mu.Unlock()
	if previous != "" {
		s.drop(previous)
	}
	return nil
}

func (s *Storage) fill(ctx context.Context, collection string, records []domain.IndexRecord) error {
	for start := 0; start < len(records); start += upsertBatch {
		end := start + upsertBatch
		if end > len(records) {
			end = len(records)
		}
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, r := range records[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: uint64(r.ID)}},
				Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: r.Vector}}},
				Payload: toPayload(r),
			})
		}
		_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
			Wait:           proto.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points to Qdrant: %w", err)
		}
	}
	return nil
}

// drop removes a collection on a detached context; failures are only logged.
func (s *Storage) drop(collection string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: collection}); err != nil {
		logger.Warn("failed to delete qdrant collection %s: %v", collection, err)
	}
}

func (s *Storage) Query(ctx context.Context, vector domain.Vector, k int) ([]domain.Match, error) {
	s.mu.RLock()
	target, dim := s.target, s.dimension
	s.mu.RUnlock()
	if target == "" {
		return nil, domain.ErrIndexNotReady
	}
	if err := vectorstore.CheckQuery(vector, k, dim); err != nil {
		return nil, err
	}
	hits, err := s.search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	scored := make([]vectorstore.Scored, 0, len(hits))
	for _, hit := range hits {
		r := fromPayload(hit.GetPayload())
		r.ID = int(hit.GetId().GetNum())
		scored = append(scored, vectorstore.Scored{Record: r, Score: float64(hit.GetScore())})
	}
	return vectorstore.Rank(scored, k), nil
}

// search fetches at least k hits plus every hit tied with the k-th score,
// so Rank rather than server order decides ties at the cut. The limit grows
// while the last returned hit still ties with the k-th.
func (s *Storage) search(ctx context.Context, vector domain.Vector, k int) ([]*qdrant.ScoredPoint, error) {
	limit := uint64(k + tieMargin)
	for {
		resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
			CollectionName: s.alias,
			Vector:         vector,
			Limit:          limit,
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search points in Qdrant: %w", err)
		}
		hits := resp.GetResult()
		if uint64(len(hits)) < limit || len(hits) <= k || hits[len(hits)-1].GetScore() < hits[k-1].GetScore() {
			return hits, nil
		}
		limit *= 2
	}
}

func (s *Storage) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target != ""
}

func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Storage) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func toPayload(r domain.IndexRecord) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	payload[textField] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.Text}}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) domain.IndexRecord {
	var r domain.IndexRecord
	for k, v := range payload {
		if k == textField {
			r.Text = v.GetStringValue()
			continue
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]string)
		}
		r.Metadata[k] = v.GetStringValue()
	}
	return r
}
