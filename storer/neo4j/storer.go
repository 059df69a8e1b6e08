package neo4j

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/w-h-a/doctalk/storer"
	getsafe "github.com/w-h-a/doctalk/util/get_safe"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

type neo4jStorer struct {
	options storer.Options
	driver  neo4j.DriverWithContext
	label   string
	index   string
	seq     int64
	mtx     sync.Mutex
}

func (s *neo4jStorer) Upsert(ctx context.Context, records ...storer.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mtx.Lock()
	rows := make([]any, 0, len(records))
	for _, rec := range records {
		if len(rec.Id) == 0 {
			rec.Id = uuid.New().String()
		}

		rows = append(rows, map[string]any{
			"id":          rec.Id,
			"chunk_index": int64(rec.Index),
			"source":      rec.Source,
			"content":     rec.Content,
			"embedding":   toFloat64s(rec.Embedding),
			"seq":         s.seq,
		})
		s.seq++
	}
	s.mtx.Unlock()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	upsert := fmt.Sprintf(`
		UNWIND $rows AS row
		MERGE (c:%s {id: row.id})
		ON CREATE SET c.seq = row.seq, c.created_at = datetime()
		SET c.chunk_index = row.chunk_index,
			c.source = row.source,
			c.content = row.content,
			c.embedding = row.embedding
	`, s.label)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, upsert, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j upsert: %w", err)
	}

	return nil
}

func (s *neo4jStorer) Search(ctx context.Context, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := `
		CALL db.index.vector.queryNodes($index, $k, $vec)
		YIELD node, score
		RETURN node.id AS id,
			node.chunk_index AS chunk_index,
			node.source AS source,
			node.content AS content,
			node.embedding AS embedding,
			score
		ORDER BY score DESC, node.seq ASC
		LIMIT $limit
	`

	params := map[string]any{
		"index": s.index,
		"k":     int64(limit),
		"vec":   toFloat64s(vector),
		"limit": int64(limit),
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j search: %w", err)
	}

	var records []storer.Record
	for result.Next(ctx) {
		records = append(records, toRecord(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j search: %w", err)
	}

	return records, nil
}

// Close removes every chunk of the collection and its index, named or not.
func (s *neo4jStorer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})

	var errList []error

	if _, err := session.Run(ctx, fmt.Sprintf("MATCH (c:%s) DETACH DELETE c", s.label), nil); err != nil {
		errList = append(errList, fmt.Errorf("delete chunks: %w", err))
	}

	if _, err := session.Run(ctx, fmt.Sprintf("DROP INDEX %s IF EXISTS", s.index), nil); err != nil {
		errList = append(errList, fmt.Errorf("drop index: %w", err))
	}

	errList = append(errList, session.Close(ctx), s.driver.Close(ctx))

	return errors.Join(errList...)
}

func (s *neo4jStorer) configure(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	// leftovers from an earlier run under the same collection
	if _, err := session.Run(ctx, fmt.Sprintf("MATCH (c:%s) DETACH DELETE c", s.label), nil); err != nil {
		return fmt.Errorf("failed to clear leftover chunks: %w", err)
	}

	if _, err := session.Run(ctx, fmt.Sprintf("DROP INDEX %s IF EXISTS", s.index), nil); err != nil {
		return fmt.Errorf("failed to drop leftover vector index: %w", err)
	}

	vectorQuery := fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS "+
			"FOR (c:%s) ON (c.embedding) "+
			"OPTIONS {indexConfig: {"+
			" `vector.dimensions`: %d,"+
			" `vector.similarity_function`: '%s'"+
			"}}",
		s.index, s.label, s.options.VectorSize, similarity(s.options.Distance),
	)

	if _, err := session.Run(ctx, vectorQuery, nil); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	constraintQuery := fmt.Sprintf(
		"CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (c:%s) REQUIRE c.id IS UNIQUE",
		s.index, s.label,
	)

	if _, err := session.Run(ctx, constraintQuery, nil); err != nil {
		return fmt.Errorf("failed to create unique constraint: %w", err)
	}

	// queries can race a fresh index
	if _, err := session.Run(ctx, "CALL db.awaitIndexes(60)", nil); err != nil {
		return fmt.Errorf("failed to await vector index: %w", err)
	}

	return nil
}

func toRecord(row map[string]any) storer.Record {
	score := float32(0)
	if v, ok := row["score"].(float64); ok {
		score = float32(v)
	}

	return storer.Record{
		Id:        getsafe.String(row, "id"),
		Index:     getsafe.Int(row, "chunk_index"),
		Source:    getsafe.String(row, "source"),
		Content:   getsafe.String(row, "content"),
		Embedding: getsafe.Floats(row, "embedding"),
		Score:     score,
	}
}

func toFloat64s(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, f := range vec {
		out[i] = float64(f)
	}
	return out
}

func similarity(distance string) string {
	switch strings.ToLower(distance) {
	case "l2", "euclid", "euclidean":
		return "euclidean"
	default:
		return "cosine"
	}
}

// identifier turns a collection name into a label or index name. Cypher
// cannot bind either as a parameter.
func identifier(collection string) string {
	return unsafeChars.ReplaceAllString(collection, "_")
}

// auth reads ApiKey as user:password. An empty key means no auth.
func auth(apiKey string) neo4j.AuthToken {
	if len(apiKey) == 0 {
		return neo4j.NoAuth()
	}

	user, password, found := strings.Cut(apiKey, ":")
	if !found {
		return neo4j.BearerAuth(apiKey)
	}

	return neo4j.BasicAuth(user, password, "")
}

// NewStorer keeps each collection under its own node label and vector
// index, clearing whatever an earlier run left there. Without WithCollection
// the name is random.
func NewStorer(opts ...storer.Option) (storer.Storer, error) {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 || options.VectorSize == 0 {
		return nil, errors.New("missing location or vector size for neo4j storer")
	}

	if len(options.Collection) == 0 {
		options.Collection = "doctalk-" + uuid.New().String()
	}

	name := identifier(options.Collection)

	driver, err := neo4j.NewDriverWithContext(options.Location, auth(options.ApiKey))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	s := &neo4jStorer{
		options: options,
		driver:  driver,
		label:   "Chunk_" + name,
		index:   "chunks_" + name,
	}

	ctx, cancel := context.WithTimeout(options.Context, 30*time.Second)
	defer cancel()

	if err := s.configure(ctx); err != nil {
		driver.Close(context.Background())
		return nil, fmt.Errorf("configure neo4j index: %w", err)
	}

	return s, nil
}
