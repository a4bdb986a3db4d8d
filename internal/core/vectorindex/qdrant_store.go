package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/markdave123-py/docqa/internal/core"
)

const (
	payloadScope = "scope_id"
	payloadEntry = "entry_id"
	payloadSeq   = "seq"
	payloadText  = "text"
)

// pointNamespace derives stable Qdrant point ids from entry ids, which are not
// valid UUIDs themselves.
var pointNamespace = uuid.MustParse("6f1b7f0e-4d8a-4c1e-9a57-2f1c3b1d9e42")

type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// QdrantStore keeps entries in a Qdrant collection over gRPC. The scope id is
// stored in the payload and indexed as a keyword.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", cfg.Dimension)
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dimension:   cfg.Dimension,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("qdrant collection check: %w", err)
	}
	if resp.GetResult().GetExists() {
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(s.dimension),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}

	wait := true
	_, err = s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: s.collection,
		Wait:           &wait,
		FieldName:      payloadScope,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant scope index: %w", err)
	}
	return nil
}

func scopeFilter(scope core.ScopeID) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   payloadScope,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: scope.String()}},
			}},
		}},
	}
}

func pointID(entryID string) *pb.PointId {
	id := uuid.NewSHA1(pointNamespace, []byte(entryID)).String()
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

// Replace clears the scope and upserts the new points. Qdrant has no
// multi-request transaction; a failed upsert after the clear leaves the scope
// partially written and is reported as ErrIndexConsistency.
func (s *QdrantStore) Replace(ctx context.Context, scope core.ScopeID, entries []Entry) error {
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		if len(e.Embedding) != s.dimension {
			return fmt.Errorf("%w: entry %s has %d dimensions", core.ErrDimensionMismatch, e.ID, len(e.Embedding))
		}
		points[i] = &pb.PointStruct{
			Id:      pointID(e.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Embedding}}},
			Payload: map[string]*pb.Value{
				payloadScope: {Kind: &pb.Value_StringValue{StringValue: scope.String()}},
				payloadEntry: {Kind: &pb.Value_StringValue{StringValue: e.ID}},
				payloadSeq:   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.Seq)}},
				payloadText:  {Kind: &pb.Value_StringValue{StringValue: e.Text}},
			},
		}
	}

	if err := s.DeleteScope(ctx, scope); err != nil {
		return fmt.Errorf("clear scope: %w", err)
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points for %s: %v", core.ErrIndexConsistency, len(points), scope, err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, scope core.ScopeID, vec []float32, k int) ([]Hit, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Filter:         scopeFilter(scope),
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		p := pt.GetPayload()
		hits = append(hits, Hit{
			EntryID: p[payloadEntry].GetStringValue(),
			Seq:     int(p[payloadSeq].GetIntegerValue()),
			Text:    p[payloadText].GetStringValue(),
			Score:   float64(pt.GetScore()),
		})
	}
	return hits, nil
}

func (s *QdrantStore) DeleteScope(ctx context.Context, scope core.ScopeID) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: scopeFilter(scope)},
		},
	})
	return err
}

func (s *QdrantStore) Count(ctx context.Context, scope core.ScopeID) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Filter:         scopeFilter(scope),
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}
