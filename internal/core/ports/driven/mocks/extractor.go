package mocks

import (
	"context"
	"iter"

	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// MockTextExtractor returns fixed pages for any input
type MockTextExtractor struct {
	Pages []string

	// Custom behavior hooks (optional)
	OpenFn func(content []byte) (driven.PageSource, error)
}

// NewMockTextExtractor creates an extractor that yields the given pages
func NewMockTextExtractor(pages ...string) *MockTextExtractor {
	return &MockTextExtractor{Pages: pages}
}

func (m *MockTextExtractor) Open(ctx context.Context, content []byte) (driven.PageSource, error) {
	if m.OpenFn != nil {
		return m.OpenFn(content)
	}
	return StaticPages(m.Pages), nil
}

// StaticPages is a PageSource over in-memory page texts
type StaticPages []string

func (s StaticPages) NumPages() int { return len(s) }

func (s StaticPages) Pages(ctx context.Context) iter.Seq2[driven.Page, error] {
	return func(yield func(driven.Page, error) bool) {
		for i, text := range s {
			if err := ctx.Err(); err != nil {
				yield(driven.Page{}, err)
				return
			}
			if !yield(driven.Page{Number: i + 1, Text: text}, nil) {
				return
			}
		}
	}
}
