package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ledongthuc/pdf"
	"github.com/w-h-a/doctalk/errs"
	"github.com/w-h-a/doctalk/loader"
)

type pdfLoader struct {
	options loader.Options
}

func (l *pdfLoader) Load(ctx context.Context, path string) (loader.Document, error) {
	f, rdr, err := pdf.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return loader.Document{}, fmt.Errorf("%w: %w", errs.ErrInputNotFound, err)
	}
	if err != nil {
		return loader.Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := rdr.GetPlainText()
	if err != nil {
		return loader.Document{}, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return loader.Document{}, fmt.Errorf("read pdf text: %w", err)
	}

	content := buf.String()
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

	return &pdfLoader{
		options: options,
	}
}
