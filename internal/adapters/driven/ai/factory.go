// Package ai builds model-serving adapters from configuration. Each
// constructor switches on the config type discriminator and returns
// the matching driven port implementation.
package ai

import (
	"fmt"

	"github.com/custodia-labs/ragdex/internal/adapters/driven/embedding"
	customembed "github.com/custodia-labs/ragdex/internal/adapters/driven/embedding/custom"
	ollamaembed "github.com/custodia-labs/ragdex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragdex/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/ragdex/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/ragdex/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/preprocess"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/rerank"
	"github.com/custodia-labs/ragdex/internal/config"
	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
)

// NewTextEmbedder creates the configured text embedding backend.
func NewTextEmbedder(cfg config.TextEmbeddingConfig) (driven.TextEmbedder, error) {
	switch cfg.Type {
	case config.EmbedderOllama:
		return ollamaembed.New(ollamaembed.Config{
			Model:     cfg.Model,
			Normalize: cfg.Normalize,
		}), nil

	case config.EmbedderOpenAI:
		return openaiembed.New(openaiembed.Config{
			Model:     cfg.Model,
			Normalize: cfg.Normalize,
		})

	case config.EmbedderCustom:
		return customembed.NewText(customembed.TextConfig{
			Model:     cfg.Model,
			Normalize: cfg.Normalize,
		}), nil

	default:
		return nil, fmt.Errorf("%w: text embedder %q", domain.ErrUnsupportedType, cfg.Type)
	}
}

// NewCachedTextEmbedder creates the configured text embedding backend
// wrapped in an in-process query cache. Meant for the retrieval path
// where the same query is embedded across modalities.
func NewCachedTextEmbedder(cfg config.TextEmbeddingConfig) (driven.TextEmbedder, error) {
	inner, err := NewTextEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedText(inner, 0), nil
}

// NewImageEmbedder creates the configured image embedding backend, or
// nil when the section is absent.
func NewImageEmbedder(cfg *config.ImageEmbeddingConfig) (driven.ImageEmbedder, error) {
	if cfg == nil {
		return nil, nil
	}

	switch cfg.Type {
	case config.EmbedderCustom:
		return customembed.NewImage(customembed.ImageConfig{
			Model:     cfg.Model,
			Normalize: true,
		}), nil

	default:
		return nil, fmt.Errorf("%w: image embedder %q", domain.ErrUnsupportedType, cfg.Type)
	}
}

// NewGenerator creates the configured generation backend.
func NewGenerator(cfg config.GenerationConfig) (driven.Generator, error) {
	switch cfg.Type {
	case config.GeneratorOllama:
		return ollamallm.New(ollamallm.Config{Model: cfg.Model}), nil

	case config.GeneratorOpenAI:
		return openaillm.New(openaillm.Config{Model: cfg.Model})

	default:
		return nil, fmt.Errorf("%w: generator %q", domain.ErrUnsupportedType, cfg.Type)
	}
}

// NewCaptioner creates the configured captioning backend, or nil when
// the section is absent.
func NewCaptioner(cfg *config.CaptioningConfig) (driven.Captioner, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Type != config.EmbedderCustom {
		return nil, fmt.Errorf("%w: captioner %q", domain.ErrUnsupportedType, cfg.Type)
	}
	return preprocess.NewCaptioner(preprocess.CaptionerConfig{Model: cfg.Model}), nil
}

// NewTranscriber creates the configured transcription backend, or nil
// when the section is absent.
func NewTranscriber(cfg *config.TranscribingConfig) (driven.Transcriber, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Type != config.EmbedderCustom {
		return nil, fmt.Errorf("%w: transcriber %q", domain.ErrUnsupportedType, cfg.Type)
	}
	return preprocess.NewTranscriber(preprocess.TranscriberConfig{Model: cfg.Model}), nil
}

// NewReranker creates the configured reranking backend, or nil when
// the section is absent.
func NewReranker(cfg *config.RerankerConfig) (driven.Reranker, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Type != config.EmbedderCustom {
		return nil, fmt.Errorf("%w: reranker %q", domain.ErrUnsupportedType, cfg.Type)
	}
	return rerank.New(rerank.Config{
		Model:          cfg.Model,
		SupportedModes: cfg.RerankModes(),
	}), nil
}
