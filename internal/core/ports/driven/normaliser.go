package driven

// Normaliser cleans extracted text before it is chunked.
type Normaliser interface {
	// Normalise transforms raw extracted text into normalized text.
	// The mimeType helps determine the appropriate processing.
	Normalise(content string, mimeType string) string

	// SupportedTypes returns MIME types this normaliser handles.
	// Can include wildcards like "text/*" or specific types like "application/pdf".
	SupportedTypes() []string

	// Priority returns the normaliser priority (higher = more specific).
	//   50-89:  Format-specific (PDF)
	//   1-9:    Fallback (raw text)
	Priority() int
}

// NormaliserRegistry manages content normalisers.
// When multiple normalisers match a MIME type, the highest priority one is used.
type NormaliserRegistry interface {
	// Get retrieves the best-matching normaliser for a MIME type.
	// Returns nil if no normaliser is registered for the type.
	Get(mimeType string) Normaliser

	// GetAll retrieves all normalisers that match a MIME type, sorted by priority (highest first).
	GetAll(mimeType string) []Normaliser

	// Register registers a normaliser.
	Register(normaliser Normaliser)

	// List returns all registered MIME types.
	List() []string
}

// PostProcessor transforms the passages of one page.
// Processors form a pipeline: Chunker -> WhitespaceNormalizer -> etc.
type PostProcessor interface {
	// Process applies post-processing to passages.
	// The first processor (Chunker) receives a single passage with the full page text.
	Process(passages []Passage) []Passage

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// Passage is a piece of page text on its way to becoming a chunk.
type Passage struct {
	// Content is the passage text
	Content string

	// Page is the 1-based source page
	Page int

	// StartOffset and EndOffset are rune offsets within the page text
	StartOffset int
	EndOffset   int
}

// PostProcessorPipeline chains post-processors in order.
// Processing is pure: identical input always yields identical output.
type PostProcessorPipeline interface {
	// Process turns one page's text into ordered passages.
	Process(page Page) []Passage

	// Add adds a processor to the pipeline.
	// Processors are sorted by Order() before processing.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
