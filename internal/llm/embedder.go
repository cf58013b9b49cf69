package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// Embedder produces fixed-length vectors. The same model must be used for
// both the post corpus and retrieval queries; the task type is the only thing
// that differs between the two sides.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
}

// GenAIEmbedder generates embeddings using the Gemini API
type GenAIEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	timeout time.Duration
	logger  *zap.Logger
}

// NewEmbedder creates a new Gemini embedding client
func NewEmbedder(cfg *config.GeminiConfig) (*GenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini_api_key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger := logging.GetLogger().With(zap.String("component", "gemini-embedder"))
	logger.Info("Gemini embedder initialized",
		zap.String("model", cfg.EmbeddingModel),
		zap.Int("dimensions", cfg.EmbeddingDim))

	return &GenAIEmbedder{
		client:  client,
		model:   cfg.EmbeddingModel,
		dim:     cfg.EmbeddingDim,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

// EmbedDocuments generates corpus-side embeddings for multiple texts
func (e *GenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "llm.embed_documents")
	defer span.End()

	return e.embed(ctx, texts, taskRetrievalDocument)
}

// EmbedQuery generates a query-side embedding for a single text
func (e *GenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := telemetry.StartSpan(ctx, "llm.embed_query")
	defer span.End()

	vectors, err := e.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vectors[0], nil
}

// Task types accepted by the embedding endpoint.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

func (e *GenAIEmbedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: task,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimensions returns the configured embedding dimensionality
func (e *GenAIEmbedder) Dimensions() int {
	return e.dim
}

// Model returns the embedding model name, stored alongside each vector so a
// model-version skew is detectable later.
func (e *GenAIEmbedder) Model() string {
	return e.model
}
