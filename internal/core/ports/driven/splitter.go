package driven

// Splitter divides text into ordered fragments bounded by the
// splitter's configured size. Implementations must be safe for
// concurrent read-only use: splitter instances are cached per
// content-type key and shared across documents.
type Splitter interface {
	Split(text string) []string
}

// SplitterProvider resolves the splitting strategy for a parsed
// format. Any "code_*" format resolves to the single "code" bucket.
// Returns domain.ErrNoChunkerConfigured for unmapped formats.
type SplitterProvider interface {
	Get(parsedFormat string) (Splitter, error)
}
