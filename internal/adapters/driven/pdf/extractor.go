package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/custodia-labs/clubdocs/internal/core/domain"
	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor implements driven.TextExtractor over github.com/ledongthuc/pdf.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a PDF text extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "pdf_extractor")}
}

// Open parses the document structure. Page text is extracted lazily as
// the returned source is iterated.
func (e *Extractor) Open(ctx context.Context, content []byte) (driven.PageSource, error) {
	if len(content) == 0 {
		return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "open pdf", errors.New("empty input"))
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "open pdf", err)
	}

	reader, numPages, err := openReader(content)
	if err != nil {
		if errors.Is(err, lpdf.ErrInvalidPassword) || bytes.Contains(content, []byte("/Encrypt")) {
			return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "open pdf", fmt.Errorf("password-protected document: %w", err))
		}
		return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "open pdf", err)
	}
	if numPages <= 0 {
		return nil, domain.NewPipelineError(domain.ErrorKindExtraction, "open pdf", errors.New("document has no pages"))
	}

	return &document{reader: reader, numPages: numPages, logger: e.logger}, nil
}

// openReader guards the parser, which panics on some malformed input.
func openReader(content []byte) (reader *lpdf.Reader, numPages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, numPages, err = nil, 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err = lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, err
	}
	return reader, reader.NumPage(), nil
}

// document is a parsed PDF whose pages are read on demand
type document struct {
	reader   *lpdf.Reader
	numPages int
	logger   *slog.Logger
}

func (d *document) NumPages() int {
	return d.numPages
}

// Pages yields every page in order. Unreadable pages are logged and
// yielded with empty text so page numbering stays intact.
func (d *document) Pages(ctx context.Context) iter.Seq2[driven.Page, error] {
	return func(yield func(driven.Page, error) bool) {
		for i := 1; i <= d.numPages; i++ {
			if err := ctx.Err(); err != nil {
				yield(driven.Page{}, domain.NewPipelineError(domain.ErrorKindExtraction, fmt.Sprintf("page %d", i), err))
				return
			}

			text, err := d.pageText(i)
			if err != nil {
				d.logger.Warn("skipping unreadable page", "page", i, "error", err)
				text = ""
			}

			if !yield(driven.Page{Number: i, Text: text}, nil) {
				return
			}
		}
	}
}

func (d *document) pageText(num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read page: %v", r)
		}
	}()

	page := d.reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
