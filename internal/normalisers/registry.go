package normalisers

import (
	"cmp"
	"mime"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry selects page normalisers by MIME type. Normalisers are kept in
// priority order, highest first; equal priorities keep registration order.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry creates a registry with the page normalisers pre-registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&PDFNormaliser{})
	return r
}

// Register adds a normaliser at its priority position.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, _ := slices.BinarySearchFunc(r.normalisers, normaliser.Priority(), func(n driven.Normaliser, p int) int {
		// Descending order; ties sort after existing entries
		if n.Priority() >= p {
			return -1
		}
		return 1
	})
	r.normalisers = slices.Insert(r.normalisers, at, normaliser)
}

// Get returns the highest priority normaliser for mimeType, or nil.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mediaType := baseMediaType(mimeType)
	for _, n := range r.normalisers {
		if supports(n, mediaType) {
			return n
		}
	}
	return nil
}

// GetAll returns every normaliser for mimeType, highest priority first.
func (r *Registry) GetAll(mimeType string) []driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mediaType := baseMediaType(mimeType)
	var matches []driven.Normaliser
	for _, n := range r.normalisers {
		if supports(n, mediaType) {
			matches = append(matches, n)
		}
	}
	return matches
}

// List returns the sorted set of registered MIME patterns.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var types []string
	for _, n := range r.normalisers {
		types = append(types, n.SupportedTypes()...)
	}
	slices.SortFunc(types, cmp.Compare[string])
	return slices.Compact(types)
}

// baseMediaType lower-cases mimeType and strips parameters such as charset.
func baseMediaType(mimeType string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// supports matches exact types, "type/*" wildcards and "*/*".
func supports(n driven.Normaliser, mediaType string) bool {
	for _, pattern := range n.SupportedTypes() {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "*/*", pattern == mediaType:
			return true
		case strings.HasSuffix(pattern, "/*") && strings.HasPrefix(mediaType, strings.TrimSuffix(pattern, "*")):
			return true
		}
	}
	return false
}
