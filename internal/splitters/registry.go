package splitters

import (
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// Params tunes a single splitting strategy.
type Params struct {
	ChunkSize    int
	ChunkOverlap int
}

// Config maps content types to splitting strategies and carries the
// per-strategy parameters.
type Config struct {
	// ContentTypeToChunker maps a parsed format (after code_*
	// normalisation to "code") to a chunker name.
	ContentTypeToChunker map[string]string

	Recursive Params
	Markdown  Params
	Code      Params
	JSON      Params
}

const (
	chunkerRecursive = "recursive_chunker"
	chunkerMarkdown  = "markdown_chunker"
	chunkerCode      = "code_chunker"
	chunkerJSON      = "json_chunker"
)

// Registry resolves splitters by parsed format and caches built
// instances. Safe for concurrent use.
type Registry struct {
	cfg   Config
	mu    sync.Mutex
	cache map[string]driven.Splitter
}

var _ driven.SplitterProvider = (*Registry)(nil)

// NewRegistry returns a Registry over the given mapping.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:   cfg,
		cache: make(map[string]driven.Splitter),
	}
}

// Get resolves the splitter for a parsed format. Code formats share
// the "code" mapping entry but keep language-specific separators, so
// the cache is keyed per language.
func (r *Registry) Get(parsedFormat string) (driven.Splitter, error) {
	key := parsedFormat
	lang := ""
	if strings.HasPrefix(parsedFormat, "code_") {
		lang = strings.TrimPrefix(parsedFormat, "code_")
		key = "code"
	}

	name, ok := r.cfg.ContentTypeToChunker[key]
	if !ok {
		return nil, fmt.Errorf("%w: content type %q", domain.ErrNoChunkerConfigured, parsedFormat)
	}

	cacheKey := name
	if name == chunkerCode {
		cacheKey = name + ":" + lang
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if splitter, ok := r.cache[cacheKey]; ok {
		return splitter, nil
	}

	splitter, err := r.build(name, lang)
	if err != nil {
		return nil, err
	}
	r.cache[cacheKey] = splitter
	return splitter, nil
}

func (r *Registry) build(name, lang string) (driven.Splitter, error) {
	switch name {
	case chunkerRecursive:
		return NewRecursive(r.cfg.Recursive.ChunkSize, r.cfg.Recursive.ChunkOverlap, nil), nil
	case chunkerMarkdown:
		return NewMarkdown(r.cfg.Markdown.ChunkSize, r.cfg.Markdown.ChunkOverlap), nil
	case chunkerCode:
		return NewCode(lang, r.cfg.Code.ChunkSize, r.cfg.Code.ChunkOverlap), nil
	case chunkerJSON:
		return NewRecursive(r.cfg.JSON.ChunkSize, r.cfg.JSON.ChunkOverlap,
			[]string{"},", "],", ",", " ", ""}), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrInvalidInput, name)
	}
}
