package domain

// SearchMode selects the storage query strategy.
type SearchMode string

const (
	// SearchModeVector uses pure vector similarity.
	SearchModeVector SearchMode = "vector"

	// SearchModeHybrid combines lexical and vector scoring.
	SearchModeHybrid SearchMode = "hybrid"
)

// RerankMode names a reranker capability.
type RerankMode string

const (
	RerankText  RerankMode = "text"
	RerankImage RerankMode = "image"
)

// FilterOp is a closed set of filter operators the storage backends
// can express.
type FilterOp string

const (
	FilterEqual       FilterOp = "equal"
	FilterContainsAny FilterOp = "contains_any"
)

// Filter restricts a storage query to matching records. Filters in a
// list are combined with AND.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// TextSearch is a retrieval request for a text query.
type TextSearch struct {
	Query     string
	ProjectID string

	// ModalityTopK is the per-modality result budget. Modalities with a
	// zero budget are not searched.
	ModalityTopK map[Modality]int

	Filters []Filter
	Mode    SearchMode

	// Rerank requests reranking in the given mode. Empty disables it.
	Rerank RerankMode
}

// ImageSearch is a retrieval request for a query image.
type ImageSearch struct {
	// Image is the raw query image bytes.
	Image []byte

	// Caption optionally supplies a lexical signal; when present the
	// search runs in hybrid mode.
	Caption string

	ProjectID string
	TopK      int
	Filters   []Filter
	Rerank    RerankMode
}
