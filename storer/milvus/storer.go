package milvus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"github.com/w-h-a/doctalk/storer"
)

const (
	fieldId      = "id"
	fieldIndex   = "chunk_index"
	fieldSeq     = "seq"
	fieldSource  = "source"
	fieldContent = "content"
	fieldVector  = "vector"
)

type milvusStorer struct {
	options storer.Options
	client  *milvusclient.Client
	seq     int64
	mtx     sync.Mutex
}

func (s *milvusStorer) Upsert(ctx context.Context, records ...storer.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	indexes := make([]int64, 0, len(records))
	seqs := make([]int64, 0, len(records))
	sources := make([]string, 0, len(records))
	contents := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))

	s.mtx.Lock()
	for _, rec := range records {
		if len(rec.Embedding) != s.options.VectorSize {
			s.mtx.Unlock()
			return fmt.Errorf("milvus storer: record %d has %d dimensions, want %d", rec.Index, len(rec.Embedding), s.options.VectorSize)
		}

		id := rec.Id
		if len(id) == 0 {
			id = uuid.New().String()
		}

		ids = append(ids, id)
		indexes = append(indexes, int64(rec.Index))
		seqs = append(seqs, s.seq)
		sources = append(sources, rec.Source)
		contents = append(contents, rec.Content)
		vectors = append(vectors, rec.Embedding)
		s.seq++
	}
	s.mtx.Unlock()

	opt := milvusclient.NewColumnBasedInsertOption(s.options.Collection).
		WithVarcharColumn(fieldId, ids).
		WithInt64Column(fieldIndex, indexes).
		WithInt64Column(fieldSeq, seqs).
		WithVarcharColumn(fieldSource, sources).
		WithVarcharColumn(fieldContent, contents).
		WithFloatVectorColumn(fieldVector, s.options.VectorSize, vectors)

	if _, err := s.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("milvus upsert: %w", err)
	}

	return nil
}

func (s *milvusStorer) Search(ctx context.Context, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	opt := milvusclient.NewSearchOption(s.options.Collection, limit, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldVector).
		WithOutputFields(fieldId, fieldIndex, fieldSeq, fieldSource, fieldContent, fieldVector).
		WithConsistencyLevel(entity.ClStrong)

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	if len(results) == 0 || results[0].ResultCount == 0 {
		return nil, nil
	}

	rs := results[0]

	ids := rs.GetColumn(fieldId)
	indexes := rs.GetColumn(fieldIndex)
	seqs := rs.GetColumn(fieldSeq)
	sources := rs.GetColumn(fieldSource)
	contents := rs.GetColumn(fieldContent)
	vectors := rs.GetColumn(fieldVector)

	if ids == nil || indexes == nil || seqs == nil || sources == nil || contents == nil {
		return nil, errors.New("milvus search: missing output fields")
	}

	type ranked struct {
		rec storer.Record
		seq int64
	}

	hits := make([]ranked, 0, rs.ResultCount)

	for i := 0; i < rs.ResultCount; i++ {
		var h ranked
		var err error

		if h.rec.Id, err = ids.GetAsString(i); err != nil {
			return nil, err
		}
		idx, err := indexes.GetAsInt64(i)
		if err != nil {
			return nil, err
		}
		h.rec.Index = int(idx)
		if h.seq, err = seqs.GetAsInt64(i); err != nil {
			return nil, err
		}
		if h.rec.Source, err = sources.GetAsString(i); err != nil {
			return nil, err
		}
		if h.rec.Content, err = contents.GetAsString(i); err != nil {
			return nil, err
		}
		if i < len(rs.Scores) {
			h.rec.Score = rs.Scores[i]
		}
		if vectors != nil {
			if v, err := vectors.Get(i); err == nil {
				if vec, ok := v.(entity.FloatVector); ok {
					h.rec.Embedding = []float32(vec)
				}
			}
		}

		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rec.Score != hits[j].rec.Score {
			return hits[i].rec.Score > hits[j].rec.Score
		}
		return hits[i].seq < hits[j].seq
	})

	records := make([]storer.Record, 0, len(hits))
	for _, h := range hits {
		records = append(records, h.rec)
	}

	return records, nil
}

// Close drops the session's collection, named or not, before closing the
// connection.
func (s *milvusStorer) Close() error {
	ctx := context.Background()

	err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(s.options.Collection))
	if err != nil {
		slog.ErrorContext(ctx, "failed to drop milvus collection", "collection", s.options.Collection, "error", err)
	}

	if cerr := s.client.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}

	return err
}

func (s *milvusStorer) configure(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.options.Collection))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if exists {
		if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(s.options.Collection)); err != nil {
			return fmt.Errorf("failed to drop leftover collection: %w", err)
		}
	}

	schema := &entity.Schema{
		CollectionName: s.options.Collection,
		Description:    "Document chunks for one session",
		Fields: []*entity.Field{
			{
				Name:       fieldId,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "255",
				},
			},
			{
				Name:     fieldIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldSeq,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldSource,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     fieldContent,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.options.VectorSize),
				},
			},
		},
	}

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.options.Collection, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.options.Collection, fieldVector, index.NewHNSWIndex(metric(s.options.Distance), 16, 200)))
	if err != nil {
		return fmt.Errorf("failed to create index on vector field: %w", err)
	}

	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to build index on vector field: %w", err)
	}

	load, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.options.Collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return load.Await(ctx)
}

func metric(distance string) entity.MetricType {
	switch strings.ToLower(distance) {
	case "ip", "dot":
		return entity.IP
	case "l2", "euclid":
		return entity.L2
	default:
		return entity.COSINE
	}
}

// NewStorer connects to the milvus server at Location and starts the session
// with an empty collection, dropping one left under the same name. Without
// WithCollection the name is random.
func NewStorer(opts ...storer.Option) (storer.Storer, error) {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 || options.VectorSize == 0 {
		return nil, errors.New("missing location or vector size for milvus storer")
	}

	if len(options.Collection) == 0 {
		options.Collection = "doctalk_" + strings.ReplaceAll(uuid.New().String(), "-", "_")
	}

	client, err := milvusclient.New(options.Context, &milvusclient.ClientConfig{
		Address: options.Location,
		APIKey:  options.ApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	s := &milvusStorer{
		options: options,
		client:  client,
	}

	if err := s.configure(options.Context); err != nil {
		client.Close(context.Background())
		return nil, err
	}

	return s, nil
}
