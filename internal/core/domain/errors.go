package domain

import "errors"

// Domain errors represent pipeline failures the caller can branch on.
// These are distinct from infrastructure errors, which are wrapped with
// context at each layer boundary.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists, e.g. an asset
	// with the same fingerprint when overwrite is disabled.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown backend, modality or
	// configuration discriminator.
	ErrUnsupportedType = errors.New("unsupported type")

	// Loading errors.

	// ErrUnsupportedSource indicates a source string matched no known
	// source kind (non-existent path, unrecognised URL scheme).
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrMaxDepthExceeded indicates recursive source expansion went past
	// the configured depth bound.
	ErrMaxDepthExceeded = errors.New("max recursion depth exceeded")

	// ErrUnsupportedArchive indicates a known archive format with no
	// extractor available.
	ErrUnsupportedArchive = errors.New("archive format not supported")

	// ErrUnknownArchive indicates an unrecognised archive format.
	ErrUnknownArchive = errors.New("unrecognised archive format")

	// Chunking and embedding errors. These are data-integrity failures:
	// always fatal, never retried.

	// ErrNoChunkerConfigured indicates a document's parsed format has no
	// splitting strategy mapped in the chunking configuration.
	ErrNoChunkerConfigured = errors.New("no chunker configured")

	// ErrCountMismatch indicates an embedding or persisted-chunk count
	// diverged from the chunk count, signalling a backend contract
	// violation.
	ErrCountMismatch = errors.New("count mismatch")

	// ErrDuplicateChunkGroup indicates a second chunk group for the same
	// modality on one document.
	ErrDuplicateChunkGroup = errors.New("duplicate chunk group")

	// Generation errors.

	// ErrTokenLimitExceeded indicates the prompt plus completion budget
	// does not fit the model's context window.
	ErrTokenLimitExceeded = errors.New("token limit exceeded")

	// ErrGenerationUnavailable indicates no generator is configured.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)
