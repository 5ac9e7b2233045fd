package driven

import (
	"context"
	"iter"
)

// Page is the plain text of one PDF page
type Page struct {
	Number int // 1-based
	Text   string
}

// PageSource is a lazily extracted document. Pages yields pages in order
// and may be ranged over any number of times; each pass starts from the
// first page.
type PageSource interface {
	NumPages() int
	Pages(ctx context.Context) iter.Seq2[Page, error]
}

// TextExtractor opens PDF byte streams.
// Failures are domain.PipelineError values of kind extraction.
type TextExtractor interface {
	Open(ctx context.Context, content []byte) (PageSource, error)
}
