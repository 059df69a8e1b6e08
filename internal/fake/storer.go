package fake

import (
	"context"

	"github.com/w-h-a/doctalk/storer"
)

// Storer fails every call with Err.
type Storer struct {
	Err error
}

func (s *Storer) Upsert(ctx context.Context, records ...storer.Record) error {
	return s.Err
}

func (s *Storer) Search(ctx context.Context, vector []float32, limit int) ([]storer.Record, error) {
	return nil, s.Err
}

func (s *Storer) Close() error {
	return nil
}
