package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
	"github.com/custodia-labs/ragdex/internal/tokenlimit"
)

// GeneratorService wraps a generation backend with token-budget
// validation: the assembled prompt plus the completion budget must
// fit the model's context window before the request is sent.
type GeneratorService struct {
	generator driven.Generator
	validator *tokenlimit.Validator
}

// NewGeneratorService creates a generator service. validator may be
// nil to skip token-budget validation.
func NewGeneratorService(generator driven.Generator, validator *tokenlimit.Validator) *GeneratorService {
	return &GeneratorService{generator: generator, validator: validator}
}

// Generate produces the full grounded response.
func (g *GeneratorService) Generate(ctx context.Context, req driven.GenerateRequest) (string, error) {
	if g.generator == nil {
		return "", domain.ErrGenerationUnavailable
	}
	if err := g.validate(req); err != nil {
		return "", err
	}

	response, err := g.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// GenerateStream produces the response incrementally through fn.
func (g *GeneratorService) GenerateStream(ctx context.Context, req driven.GenerateRequest, fn func(string) error) error {
	if g.generator == nil {
		return domain.ErrGenerationUnavailable
	}
	if err := g.validate(req); err != nil {
		return err
	}

	if err := g.generator.GenerateStream(ctx, req, fn); err != nil {
		return fmt.Errorf("generate stream: %w", err)
	}
	return nil
}

func (g *GeneratorService) validate(req driven.GenerateRequest) error {
	if g.validator == nil {
		logger.Debug("Token-budget validation skipped, no validator configured")
		return nil
	}
	messages := req.ChatMessages()
	return g.validator.Validate(messages, g.generator.ModelName(), req.Params.MaxTokens, req.Params.ContextLimit)
}
