package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdex/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/assets"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/storage"
	"github.com/custodia-labs/ragdex/internal/config"
	"github.com/custodia-labs/ragdex/internal/core/services"
	"github.com/custodia-labs/ragdex/internal/loaders"
	"github.com/custodia-labs/ragdex/internal/splitters"
	"github.com/custodia-labs/ragdex/internal/tempdir"
)

var indexFilter string

var indexCmd = &cobra.Command{
	Use:   "index [source] [config] [project-id]",
	Short: "Index documents from a source into a project",
	Long: `Loads documents from a source (directory, file, archive, URL or
GitHub repository), splits and embeds them per the config file, and
writes the results into the project's collections.`,
	Args: cobra.ExactArgs(3),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexFilter, "filter", "", "glob filter applied to directory sources")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	source, configPath, projectID := args[0], args[1], args[2]

	cfg, err := config.LoadIndexing(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	pipeline, cleanup, err := buildIndexPipeline(ctx, cfg, projectID)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := pipeline.Run(ctx, projectID, source, indexFilter); err != nil {
		return fmt.Errorf("index %s: %w", source, err)
	}

	cmd.Printf("Indexed %s into project %s.\n", source, projectID)
	return nil
}

// buildIndexPipeline assembles the indexing service graph from
// configuration. The returned cleanup closes backend connections.
func buildIndexPipeline(ctx context.Context, cfg *config.IndexingConfig, projectID string) (*services.IndexPipeline, func(), error) {
	captioner, err := ai.NewCaptioner(cfg.Captioning)
	if err != nil {
		return nil, nil, err
	}
	transcriber, err := ai.NewTranscriber(cfg.Transcribing)
	if err != nil {
		return nil, nil, err
	}

	tmp := tempdir.NewSet()
	reader := loaders.NewExtensionReader(captioner, transcriber)
	factory := loaders.NewFactory(reader, tmp)
	resolver := services.NewSourceResolver(factory)
	loader := services.NewRecursiveLoader(resolver, services.DefaultMaxDepth)

	assetStore, err := assets.FromConfig(cfg.AssetStore)
	if err != nil {
		return nil, nil, err
	}
	var assetWriter *services.AssetWriter
	if assetStore != nil {
		assetWriter = services.NewAssetWriter(assetStore, 0)
	}

	registry := splitters.NewRegistry(splitterConfig(&cfg.Chunking))
	chunker := services.NewChunkerService(registry, 0)

	textEmbedder, err := ai.NewTextEmbedder(cfg.Embedding.Text)
	if err != nil {
		return nil, nil, err
	}
	imageEmbedder, err := ai.NewImageEmbedder(cfg.Embedding.Image)
	if err != nil {
		return nil, nil, err
	}
	embedder := services.NewEmbedderService(textEmbedder, imageEmbedder, cfg.Embedding.BatchSize, 0)

	storageClient, err := storage.New(ctx, cfg.Storaging)
	if err != nil {
		return nil, nil, err
	}

	indexer := services.NewStorageIndexer(
		storageClient,
		projectID,
		embedder.TextModelName(),
		embedder.ImageModelName(),
		"cosine",
	)

	pipeline := services.NewIndexPipeline(loader, assetWriter, chunker, embedder, indexer, tmp)
	cleanup := func() { _ = storageClient.Close() }
	return pipeline, cleanup, nil
}

func splitterConfig(cfg *config.ChunkingConfig) splitters.Config {
	return splitters.Config{
		ContentTypeToChunker: cfg.ContentTypeToChunker,
		Recursive:            splitters.Params{ChunkSize: cfg.Recursive.ChunkSize, ChunkOverlap: cfg.Recursive.ChunkOverlap},
		Markdown:             splitters.Params{ChunkSize: cfg.Markdown.ChunkSize, ChunkOverlap: cfg.Markdown.ChunkOverlap},
		Code:                 splitters.Params{ChunkSize: cfg.Code.ChunkSize, ChunkOverlap: cfg.Code.ChunkOverlap},
		JSON:                 splitters.Params{ChunkSize: cfg.JSON.ChunkSize, ChunkOverlap: cfg.JSON.ChunkOverlap},
	}
}
