package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/doctalk/storer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errNotFound = errors.New("qdrant: not found")

type qdrantStorer struct {
	options storer.Options
	client  *http.Client
	seq     int
	mtx     sync.Mutex
}

func (s *qdrantStorer) Upsert(ctx context.Context, records ...storer.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mtx.Lock()
	points := make([]qdrantPoint, 0, len(records))
	for _, rec := range records {
		if len(rec.Id) == 0 {
			rec.Id = uuid.New().String()
		}

		points = append(points, qdrantPoint{
			Id:     pointId(rec.Id),
			Vector: rec.Embedding,
			Payload: chunkPayload{
				RecordId:   rec.Id,
				ChunkIndex: rec.Index,
				Source:     rec.Source,
				Content:    rec.Content,
				Seq:        s.seq,
			},
		})
		s.seq++
	}
	s.mtx.Unlock()

	req := upsertRequest{
		Points: points,
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !rsp.Status.ok() && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (s *qdrantStorer) Search(ctx context.Context, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithVector:  true,
		WithPayload: true,
	}

	var rsp qdrantEnvelope[[]qdrantScoredPoint]

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, err
	}

	type ranked struct {
		rec storer.Record
		seq int
	}

	results := make([]ranked, 0, len(rsp.Result))

	for _, point := range rsp.Result {
		results = append(results, ranked{
			rec: storer.Record{
				Id:        point.Payload.RecordId,
				Index:     point.Payload.ChunkIndex,
				Source:    point.Payload.Source,
				Content:   point.Payload.Content,
				Embedding: point.Vector,
				Score:     float32(point.Score),
			},
			seq: point.Payload.Seq,
		})
	}

	// qdrant does not order equal scores by insertion
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].rec.Score != results[j].rec.Score {
			return results[i].rec.Score > results[j].rec.Score
		}
		return results[i].seq < results[j].seq
	})

	records := make([]storer.Record, 0, min(limit, len(results)))
	for _, r := range results[:min(limit, len(results))] {
		records = append(records, r.rec)
	}

	return records, nil
}

// Close deletes the session's collection, named or not.
func (s *qdrantStorer) Close() error {
	if err := s.dropCollection(context.Background()); err != nil {
		slog.ErrorContext(context.Background(), "failed to drop qdrant collection", "collection", s.options.Collection, "error", err)
		return err
	}

	return nil
}

func (s *qdrantStorer) do(ctx context.Context, method string, path string, req any, rsp any) error {
	u := strings.TrimRight(s.options.Location, "/") + path
	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if len(s.options.ApiKey) > 0 {
		request.Header.Set("api-key", s.options.ApiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", errNotFound, string(payload))
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

func (s *qdrantStorer) configure(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	// an index lives for one session, so leftovers from an earlier run go
	if exists {
		if err := s.dropCollection(ctx); err != nil {
			return err
		}
	}

	return s.createCollection(ctx)
}

func (s *qdrantStorer) dropCollection(ctx context.Context) error {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodDelete, path, nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return err
	}

	return nil
}

func (s *qdrantStorer) collectionExists(ctx context.Context) (bool, error) {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	err := s.do(ctx, http.MethodGet, path, nil, &rsp)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return rsp.Status.ok(), nil
}

func (s *qdrantStorer) createCollection(ctx context.Context) error {
	req := createCollectionRequest{
		Vectors: vectorParams{
			Size:     s.options.VectorSize,
			Distance: distance(s.options.Distance),
		},
	}

	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !rsp.Status.ok() {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func distance(d string) string {
	switch strings.ToLower(d) {
	case "dot", "ip":
		return "Dot"
	case "l2", "euclid", "euclidean":
		return "Euclid"
	case "manhattan":
		return "Manhattan"
	default:
		return "Cosine"
	}
}

// pointId maps a record id onto the UUID space qdrant requires.
func pointId(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// NewStorer starts the session with an empty collection, recreating one
// that already exists under the same name. Without WithCollection the name
// is random. Close always removes the collection.
func NewStorer(opts ...storer.Option) (storer.Storer, error) {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 || options.VectorSize == 0 {
		return nil, errors.New("missing location or vector size for qdrant storer")
	}

	if len(options.Collection) == 0 {
		options.Collection = "doctalk-" + uuid.New().String()
	}

	client := &http.Client{
		Timeout:   15 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	s := &qdrantStorer{
		options: options,
		client:  client,
	}

	if err := s.configure(options.Context); err != nil {
		return nil, fmt.Errorf("configure qdrant collection: %w", err)
	}

	return s, nil
}
