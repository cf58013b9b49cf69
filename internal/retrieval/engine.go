// Package retrieval ranks a user's stored post embeddings against a query by
// cosine similarity. It is the only gate between user text and grounding
// posts; callers degrade to an empty grounding set when it returns nothing.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// EmbeddingStore reads the stored vectors for one user.
type EmbeddingStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.PostEmbedding, error)
}

// PostStore reads posts by primary key within a user scope.
type PostStore interface {
	GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*models.Post, error)
}

// Engine embeds a query and returns the top-K most similar posts.
type Engine struct {
	embedder   llm.Embedder
	embeddings EmbeddingStore
	posts      PostStore
	topK       int
	logger     *zap.Logger
}

// New creates a new retrieval engine
func New(cfg *config.RetrievalConfig, embedder llm.Embedder, embeddings EmbeddingStore, posts PostStore) *Engine {
	return &Engine{
		embedder:   embedder,
		embeddings: embeddings,
		posts:      posts,
		topK:       cfg.TopK,
		logger:     logging.GetLogger().With(zap.String("component", "retrieval")),
	}
}

// Retrieve returns the user's K most similar posts for the query. An empty or
// whitespace-only query returns an empty result without an embedding call; a
// user with no stored embeddings returns an empty result, not an error.
func (e *Engine) Retrieve(ctx context.Context, userID uuid.UUID, query string, k int) ([]*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "retrieval.retrieve")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = e.topK
	}

	stored, err := e.embeddings.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	if len(stored) == 0 {
		return nil, nil
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	ranked := Rank(stored, queryVec, k)
	for _, r := range ranked {
		if r.Truncated {
			// Dimension skew between corpus and query vectors indicates an
			// embedding-model version mismatch; ranking fell back to a lossy
			// truncation. Surface it as a data-quality signal.
			telemetry.RecordDimensionMismatch(ctx, r.StoredDim, len(queryVec))
			e.logger.Warn("Embedding dimension mismatch, truncated for ranking",
				zap.String("user_id", userID.String()),
				zap.Int("stored_dim", r.StoredDim),
				zap.Int("query_dim", len(queryVec)))
			break
		}
	}

	ids := make([]uuid.UUID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.PostID
	}

	posts, err := e.posts.GetByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranked posts: %w", err)
	}

	// Restore similarity order, which the ID lookup does not preserve.
	byID := make(map[uuid.UUID]*models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// Match is one ranked embedding.
type Match struct {
	PostID    uuid.UUID
	Score     float64
	StoredDim int
	Truncated bool
}

// Rank computes cosine similarity between the query vector and every stored
// vector and returns the top-K matches. The sort is stable with post ID as
// the tiebreak, so identical inputs always produce identical rankings.
func Rank(stored []*models.PostEmbedding, query []float32, k int) []Match {
	matches := make([]Match, 0, len(stored))
	for _, emb := range stored {
		vec := emb.Vector.Slice()
		score, truncated := cosineSimilarity(vec, query)
		matches = append(matches, Match{
			PostID:    emb.PostID,
			Score:     score,
			StoredDim: len(vec),
			Truncated: truncated,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].PostID.String() < matches[j].PostID.String()
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions are truncated to the shared minimum length, a
// documented lossy fallback reported via the second return value.
func cosineSimilarity(a, b []float32) (float64, bool) {
	truncated := len(a) != len(b)
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0, truncated
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, truncated
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), truncated
}
