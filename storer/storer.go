package storer

import "context"

// Storer is a similarity index over embedded chunks. It lives for one
// session: Close releases whatever the backend holds for it.
type Storer interface {
	Upsert(ctx context.Context, records ...Record) error
	Search(ctx context.Context, vector []float32, limit int) ([]Record, error)
	Close() error
}
