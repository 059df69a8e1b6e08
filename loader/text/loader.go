package text

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/loader"
)

type textLoader struct {
	options loader.Options
}

func (l *textLoader) Load(ctx context.Context, path string) (loader.Document, error) {
	bs, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return loader.Document{}, fmt.Errorf("%w: %w", errs.ErrInputNotFound, err)
	}
	if err != nil {
		return loader.Document{}, fmt.Errorf("read text: %w", err)
	}

	content := string(bs)
	if !l.options.Raw {
		content = loader.Normalize(content)
	}

	return loader.Document{
		Source:  path,
		Content: content,
	}, nil
}

func NewLoader(opts ...loader.Option) loader.Loader {
	options := loader.NewOptions(opts...)

	return &textLoader{
		options: options,
	}
}
