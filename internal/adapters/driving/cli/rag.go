package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdex/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/assets"
	"github.com/custodia-labs/ragdex/internal/adapters/driven/storage"
	"github.com/custodia-labs/ragdex/internal/config"
	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/core/services"
	"github.com/custodia-labs/ragdex/internal/tokenlimit"
)

var ragStream bool

var ragCmd = &cobra.Command{
	Use:   "rag [config] [payload] [project-id]",
	Short: "Answer a question over an indexed project",
	Long: `Retrieves the most relevant chunks for the payload's query (text or
image), optionally reranks them, and generates a grounded answer.
The payload is a JSON file; see the documentation for its schema.`,
	Args: cobra.ExactArgs(3),
	RunE: runRAG,
}

func init() {
	ragCmd.Flags().BoolVar(&ragStream, "stream", false, "print the answer incrementally")
	rootCmd.AddCommand(ragCmd)
}

// ragPayload is the JSON request read from the payload file. Query
// and ImagePath are mutually exclusive; exactly one must be set.
type ragPayload struct {
	Query     string `json:"query,omitempty"`
	ImagePath string `json:"image_path,omitempty"`

	// Caption adds a lexical signal to an image query.
	Caption string `json:"caption,omitempty"`

	// ModalityTopK budgets text query results per modality.
	ModalityTopK map[string]int `json:"modality_top_k,omitempty"`

	// TopK budgets image query results.
	TopK int `json:"top_k,omitempty"`

	Mode    string          `json:"mode,omitempty"`
	Rerank  string          `json:"rerank,omitempty"`
	Filters []payloadFilter `json:"filters,omitempty"`

	SystemPrompt string                `json:"system_prompt,omitempty"`
	History      []driven.ChatMessage  `json:"history,omitempty"`
	Params       driven.GenerateParams `json:"params"`
}

// payloadFilter mirrors domain.Filter for the JSON payload.
type payloadFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

func (p *ragPayload) domainFilters() []domain.Filter {
	if len(p.Filters) == 0 {
		return nil
	}
	filters := make([]domain.Filter, len(p.Filters))
	for i, f := range p.Filters {
		filters[i] = domain.Filter{Field: f.Field, Op: domain.FilterOp(f.Op), Value: f.Value}
	}
	return filters
}

func loadPayload(path string) (*ragPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var payload ragPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}

	if (payload.Query == "") == (payload.ImagePath == "") {
		return nil, fmt.Errorf("%w: payload needs exactly one of query or image_path", domain.ErrInvalidInput)
	}
	return &payload, nil
}

func runRAG(cmd *cobra.Command, args []string) error {
	configPath, payloadPath, projectID := args[0], args[1], args[2]

	cfg, err := config.LoadRAG(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	payload, err := loadPayload(payloadPath)
	if err != nil {
		return err
	}

	ctx := context.Background()

	retriever, generator, cleanup, err := buildRAGServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	items, err := retrieve(ctx, retriever, payload, projectID)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	printSources(cmd, items)

	query := payload.Query
	if query == "" {
		query = payload.Caption
	}
	if payload.Params.ContextLimit == 0 {
		payload.Params.ContextLimit = cfg.Generation.ContextLimit
	}
	req := driven.GenerateRequest{
		Query:        query,
		Context:      items,
		SystemPrompt: payload.SystemPrompt,
		History:      payload.History,
		Params:       payload.Params,
	}

	if ragStream {
		err = generator.GenerateStream(ctx, req, func(fragment string) error {
			cmd.Print(fragment)
			return nil
		})
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		cmd.Println()
		return nil
	}

	answer, err := generator.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	cmd.Println(answer)
	return nil
}

// buildRAGServices assembles the retrieval and generation graph from
// configuration. The returned cleanup closes backend connections.
func buildRAGServices(ctx context.Context, cfg *config.RAGConfig) (*services.MultiModalRetriever, *services.GeneratorService, func(), error) {
	textEmbedder, err := ai.NewCachedTextEmbedder(cfg.Embedding.Text)
	if err != nil {
		return nil, nil, nil, err
	}
	imageEmbedder, err := ai.NewImageEmbedder(cfg.Embedding.Image)
	if err != nil {
		return nil, nil, nil, err
	}
	embedder := services.NewEmbedderService(textEmbedder, imageEmbedder, cfg.Embedding.BatchSize, 0)

	storageClient, err := storage.New(ctx, cfg.Storaging)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = storageClient.Close() }

	assetStore, err := assets.FromConfig(cfg.AssetStore)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	var assetReader *services.AssetReader
	if assetStore != nil {
		assetReader = services.NewAssetReader(assetStore)
	}

	reranker, err := ai.NewReranker(cfg.Reranking)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	retriever := services.NewMultiModalRetriever(embedder, storageClient, assetReader, reranker)

	backend, err := ai.NewGenerator(cfg.Generation)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	generator := services.NewGeneratorService(backend, tokenlimit.NewValidator(nil))

	return retriever, generator, cleanup, nil
}

func retrieve(ctx context.Context, retriever *services.MultiModalRetriever, payload *ragPayload, projectID string) ([]domain.ScoredItem, error) {
	if payload.ImagePath != "" {
		image, err := os.ReadFile(payload.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("read query image: %w", err)
		}
		return retriever.RetrieveByImage(ctx, domain.ImageSearch{
			Image:     image,
			Caption:   payload.Caption,
			ProjectID: projectID,
			TopK:      payload.TopK,
			Filters:   payload.domainFilters(),
			Rerank:    domain.RerankMode(payload.Rerank),
		})
	}

	topK := make(map[domain.Modality]int, len(payload.ModalityTopK))
	for modality, budget := range payload.ModalityTopK {
		topK[domain.Modality(modality)] = budget
	}

	return retriever.RetrieveByText(ctx, domain.TextSearch{
		Query:        payload.Query,
		ProjectID:    projectID,
		ModalityTopK: topK,
		Filters:      payload.domainFilters(),
		Mode:         domain.SearchMode(payload.Mode),
		Rerank:       domain.RerankMode(payload.Rerank),
	})
}

func printSources(cmd *cobra.Command, items []domain.ScoredItem) {
	if len(items) == 0 {
		cmd.Println("No context retrieved.")
		return
	}

	cmd.Println("Context:")
	for i, item := range items {
		label := item.Content
		if item.Modality == domain.ModalityImage && item.Caption != "" {
			label = item.Caption
		}
		if len(label) > 80 {
			label = label[:80] + "..."
		}
		cmd.Printf("  [%d] (%s, %.2f) %s\n", i+1, item.Modality, item.Score, label)
	}
	cmd.Println()
}
