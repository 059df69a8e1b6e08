package loader

import "context"

type Loader interface {
	Load(ctx context.Context, path string) (Document, error)
}

// Document is the normalized text of one content file.
type Document struct {
	Source  string
	Content string
}
