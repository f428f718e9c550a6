package domain

// Modality is the content category of a chunk or retrieved item.
// It is derived from the parsed format of the owning document.
type Modality string

const (
	// ModalityText covers plain text, markdown, code and JSON content.
	ModalityText Modality = "text"

	// ModalityImage covers image content embedded via an image model.
	ModalityImage Modality = "image"

	// ModalityBlob covers opaque binary content with no decoded text.
	ModalityBlob Modality = "blob"
)

// SourceInfo describes how a document's content was obtained and where
// its backing asset lives.
type SourceInfo struct {
	// FileReader identifies the content reader that produced the document.
	FileReader string `json:"file_reader"`

	// ParsedFormat is the content-type tag assigned by the reader,
	// e.g. "text", "markdown", "code_go", "image", "blob".
	ParsedFormat string `json:"parsed_format"`

	// StorageType is the asset store backend holding the original file.
	// Set after the asset has been persisted.
	StorageType string `json:"storage_type,omitempty"`

	// AssetURI is the persistent location of the original file.
	// Set after the asset has been persisted.
	AssetURI string `json:"asset_uri,omitempty"`

	// TmpURI is the local staging path of the file during ingestion.
	// Scratch-only: it is never persisted and is removed on cleanup.
	TmpURI string `json:"-"`
}

// Modality derives the document modality from the parsed format.
func (s SourceInfo) Modality() Modality {
	switch s.ParsedFormat {
	case "image":
		return ModalityImage
	case "blob":
		return ModalityBlob
	default:
		return ModalityText
	}
}

// FileMeta holds filesystem-level metadata about the source file.
type FileMeta struct {
	// Filename is the base name of the source file.
	Filename string `json:"filename"`

	// SizeBytes is the file size at ingestion time.
	SizeBytes int64 `json:"size_bytes"`

	// LastModified is the file modification time in epoch seconds.
	LastModified int64 `json:"last_modified"`

	// Fingerprint is a sha256 content hash, stable across re-ingestion
	// of identical bytes. Used for dedup in asset storage.
	Fingerprint string `json:"fingerprint"`

	// MIME is the detected media type.
	MIME string `json:"mime"`
}

// Chunk is a contiguous span of document content sized for embedding.
// For image documents the content is the caption.
type Chunk struct {
	// ChunkID is the sequence number within the owning group.
	// IDs are dense and 0-based in emission order.
	ChunkID int `json:"chunk_id"`

	// Content is the text payload.
	Content string `json:"content"`

	// Vector is the embedding, attached during the embedding phase.
	Vector []float32 `json:"-"`
}

// ChunkGroup holds all chunks of one modality produced by one embedder
// for one document. A document carries at most one group per modality.
type ChunkGroup struct {
	Chunks []Chunk `json:"chunks"`

	// EmbedderName is the model that produced the vectors.
	// Empty until the embedding phase completes.
	EmbedderName string `json:"embedder_name"`

	Modality Modality `json:"modality"`
}

// Document is the unit of ingestion. A loader creates it, the chunker
// populates ChunkGroups, the embedder attaches vectors, and it is
// immutable once handed to the storage indexer.
type Document struct {
	// UUID is the opaque, globally unique identity.
	UUID string `json:"uuid"`

	// Content is the decoded text. Empty for opaque blobs; the caption
	// for images.
	Content string `json:"content"`

	// Lang is a best-effort detected language tag. May be empty.
	Lang string `json:"lang"`

	// Tags are ordered, possibly empty labels.
	Tags []string `json:"tags"`

	Source   SourceInfo `json:"source"`
	Metadata FileMeta   `json:"metadata"`

	// ChunkGroups holds one group per (modality, embedder) pair.
	ChunkGroups []ChunkGroup `json:"chunk_groups"`
}

// Group returns the chunk group for the given modality, if present.
func (d *Document) Group(m Modality) (*ChunkGroup, bool) {
	for i := range d.ChunkGroups {
		if d.ChunkGroups[i].Modality == m {
			return &d.ChunkGroups[i], true
		}
	}
	return nil, false
}

// ChunkCount returns the number of chunks the document contributed to
// the given modality.
func (d *Document) ChunkCount(m Modality) int {
	if g, ok := d.Group(m); ok {
		return len(g.Chunks)
	}
	return 0
}

// ScoredChunk is a chunk returned by a storage similarity query,
// tagged with its parent document id and relevance score.
type ScoredChunk struct {
	DocUUID string
	Chunk   Chunk
	Score   float64
}

// ScoredItem joins a retrieved chunk to its parent document's asset
// location and metadata. The score scale is caller-defined; a reranker
// may overwrite it.
type ScoredItem struct {
	DocUUID  string   `json:"doc_uuid"`
	ChunkID  int      `json:"chunk_id"`
	Content  string   `json:"content"`
	Modality Modality `json:"modality"`
	Score    float64  `json:"score"`

	// AssetStorage and AssetURI locate the original file, when persisted.
	AssetStorage string `json:"asset_storage,omitempty"`
	AssetURI     string `json:"asset_uri,omitempty"`

	// Caption is the image caption, when the parent is an image document.
	Caption string `json:"caption,omitempty"`

	// ImageBase64 is the image payload, loaded on demand at retrieval.
	ImageBase64 string `json:"image_base64,omitempty"`

	Metadata FileMeta `json:"metadata"`
}
