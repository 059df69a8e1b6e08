package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/w-h-a/doctalk/storer"
)

type memoryStorer struct {
	options storer.Options
	records []storer.Record
	index   map[string]int // id to position in records
	mtx     sync.RWMutex
}

func (s *memoryStorer) Upsert(ctx context.Context, records ...storer.Record) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, rec := range records {
		if len(rec.Id) == 0 {
			rec.Id = uuid.New().String()
		}

		rec.Embedding = slices.Clone(rec.Embedding)
		rec.Score = 0

		if idx, ok := s.index[rec.Id]; ok {
			s.records[idx] = rec
			continue
		}

		s.index[rec.Id] = len(s.records)
		s.records = append(s.records, rec)
	}

	return nil
}

func (s *memoryStorer) Search(ctx context.Context, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	candidates := make([]storer.Record, 0, len(s.records))

	for _, rec := range s.records {
		rec.Score = float32(storer.CosineSimilarity(vector, rec.Embedding))
		rec.Embedding = slices.Clone(rec.Embedding)
		candidates = append(candidates, rec)
	}

	// stable so equal scores keep insertion order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func (s *memoryStorer) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.records = nil
	s.index = map[string]int{}

	return nil
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	s := &memoryStorer{
		options: options,
		records: []storer.Record{},
		index:   map[string]int{},
		mtx:     sync.RWMutex{},
	}

	return s
}
