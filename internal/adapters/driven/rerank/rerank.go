// Package rerank provides a reranker client for a local inference
// server API.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
	"github.com/custodia-labs/ragdex/internal/retry"
)

var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:5250"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the reranker client.
type Config struct {
	// BaseURL is the server base URL. Empty falls back to
	// CUSTOM_RERANKER_BASE_URL, then the local default.
	BaseURL string

	// Model is the reranking model to use.
	Model string

	// SupportedModes lists the rerank modes the server handles.
	SupportedModes []domain.RerankMode

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration
}

// Reranker rescores retrieved items via the server's /rerank endpoint.
// A failed call degrades to the original ordering.
type Reranker struct {
	client *http.Client

	baseURL string
	model   string
	modes   map[domain.RerankMode]bool
}

// rerankDocument is one candidate in the /rerank payload. Text fields
// are nil for the modality they do not apply to.
type rerankDocument struct {
	UUID     string  `json:"uuid"`
	Modality string  `json:"modality"`
	Text     *string `json:"text"`
	Caption  *string `json:"caption"`
	Image    *string `json:"image"`
}

// rerankRequest is the /rerank request format.
type rerankRequest struct {
	Query     string           `json:"query"`
	ModelName string           `json:"model_name"`
	Documents []rerankDocument `json:"documents"`
}

// rerankResponse is the /rerank response format.
type rerankResponse struct {
	Results []struct {
		UUID  string  `json:"uuid"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// New creates a reranker client.
func New(cfg Config) *Reranker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CUSTOM_RERANKER_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	modes := make(map[domain.RerankMode]bool, len(cfg.SupportedModes))
	for _, mode := range cfg.SupportedModes {
		modes[mode] = true
	}

	return &Reranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		modes:   modes,
	}
}

// ModelName returns the reranking model identity.
func (r *Reranker) ModelName() string {
	return r.model
}

// Supports reports whether the reranker handles the given mode.
func (r *Reranker) Supports(mode domain.RerankMode) bool {
	return r.modes[mode]
}

// Process rescores and reorders items. Items missing from the server
// response score 0; a failed call returns the input unchanged.
func (r *Reranker) Process(ctx context.Context, query string, items []domain.ScoredItem) ([]domain.ScoredItem, error) {
	scores, err := r.rerank(ctx, query, items)
	if err != nil {
		logger.Warn("Rerank failed, keeping original order: %v", err)
		return items, nil
	}

	out := make([]domain.ScoredItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Score = scores[out[i].DocUUID]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (r *Reranker) rerank(ctx context.Context, query string, items []domain.ScoredItem) (map[string]float64, error) {
	docs := make([]rerankDocument, 0, len(items))
	for i := range items {
		item := &items[i]
		// Image candidates without a loaded payload cannot be scored.
		if item.Modality == domain.ModalityImage && item.ImageBase64 == "" {
			continue
		}

		doc := rerankDocument{UUID: item.DocUUID, Modality: string(item.Modality)}
		switch item.Modality {
		case domain.ModalityImage:
			doc.Caption = &item.Caption
			doc.Image = &item.ImageBase64
		default:
			doc.Text = &item.Content
		}
		docs = append(docs, doc)
	}

	jsonBody, err := json.Marshal(rerankRequest{Query: query, ModelName: r.model, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var rerankResp rerankResponse
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(jsonBody))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("reranker error (status %d): %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		rerankResp = rerankResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(rerankResp.Results))
	for _, entry := range rerankResp.Results {
		scores[entry.UUID] = entry.Score
	}
	return scores, nil
}
