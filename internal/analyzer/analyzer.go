// Package analyzer scores a user's scraped posts, derives their style profile
// and generates the post embeddings the retrieval engine ranks against. It
// runs once per onboarding cycle, after ingestion completes, and must operate
// over the user's complete post set.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postecho/postecho/internal/db"
	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// Analyzer derives the style profile and embeddings for one user.
type Analyzer struct {
	cfg        *config.AnalyzerConfig
	completer  llm.Completer
	embedder   llm.Embedder
	posts      *db.PostRepository
	profiles   *db.ProfileRepository
	styles     *db.StyleProfileRepository
	embeddings *db.EmbeddingRepository
	memory     *db.MemoryRepository
	logger     *zap.Logger
}

// New creates a new analyzer
func New(
	cfg *config.AnalyzerConfig,
	completer llm.Completer,
	embedder llm.Embedder,
	repo *db.Repository,
) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		completer:  completer,
		embedder:   embedder,
		posts:      db.NewPostRepository(repo),
		profiles:   db.NewProfileRepository(repo),
		styles:     db.NewStyleProfileRepository(repo),
		embeddings: db.NewEmbeddingRepository(repo),
		memory:     db.NewMemoryRepository(repo),
		logger:     logging.GetLogger().With(zap.String("component", "analyzer")),
	}
}

// Run executes the full analysis cycle for a user: engagement scoring over
// the complete post set, candidate selection, style extraction, embedding
// generation, and memory seeding. The caller owns the onboarding status
// transition around this call.
func (a *Analyzer) Run(ctx context.Context, userID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "analyzer.run")
	defer span.End()

	posts, err := a.posts.GetByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load posts: %w", err)
	}
	if len(posts) == 0 {
		return fmt.Errorf("no posts to analyze for user %s", userID)
	}

	profile, err := a.profiles.GetByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	about := ""
	if profile != nil {
		about = profile.About
	}

	// Score and flag over the whole set in one pass, then persist.
	MarkHighPerforming(posts, a.cfg)
	if err := a.posts.UpdateScores(ctx, posts); err != nil {
		return fmt.Errorf("failed to persist engagement scores: %w", err)
	}

	candidates := SelectCandidates(posts, a.cfg.MinCandidates, a.cfg.MaxCandidates)
	if len(candidates) == 0 {
		return fmt.Errorf("no usable post texts for user %s", userID)
	}

	descriptor, err := a.extractStyle(ctx, candidates, about)
	if err != nil {
		return err
	}

	styleProfile := &models.StyleProfile{
		ID:               uuid.New(),
		UserID:           userID,
		Tone:             descriptor.Tone,
		Formality:        descriptor.Formality,
		AvgLengthWords:   descriptor.AvgLengthWords,
		EmojiUsage:       descriptor.EmojiUsage,
		StructurePattern: descriptor.StructurePattern,
		HookPatterns:     descriptor.HookPatterns,
		HashtagStyle:     descriptor.HashtagStyle,
		FavoriteTopics:   descriptor.FavoriteTopics,
		CadenceExamples:  descriptor.CadenceExamples,
		ParagraphDensity: descriptor.ParagraphDensity,
		Confidence:       ConfidenceTier(posts, about),
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	if err := a.styles.Upsert(ctx, styleProfile); err != nil {
		return fmt.Errorf("failed to store style profile: %w", err)
	}

	if err := a.generateEmbeddings(ctx, userID, posts); err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	// Seed initial memory concurrently. Seeding is best-effort: its failure
	// is logged and must not fail the analysis.
	a.seedMemory(ctx, userID, descriptor, about)

	a.logger.Info("Analysis complete",
		zap.String("user_id", userID.String()),
		zap.Int("posts", len(posts)),
		zap.Int("candidates", len(candidates)),
		zap.String("confidence", string(styleProfile.Confidence)))

	return nil
}

// extractStyle runs the single style-extraction model call and validates the
// returned shape. Any field mismatch is a contract violation surfaced as an
// error, never coerced.
func (a *Analyzer) extractStyle(ctx context.Context, candidates []*models.Post, about string) (*models.StyleDescriptor, error) {
	ctx, span := telemetry.StartSpan(ctx, "analyzer.extract_style")
	defer span.End()

	var b strings.Builder
	b.WriteString(styleExtractionPrompt)
	b.WriteString("\n\n")
	if strings.TrimSpace(about) != "" {
		fmt.Fprintf(&b, "ABOUT SECTION:\n%s\n\n", about)
	}
	for i, post := range candidates {
		fmt.Fprintf(&b, "POST %d:\n%s\n\n", i+1, post.CleanedText)
	}

	raw, err := a.completer.GenerateJSON(ctx, b.String(), 0.2)
	if err != nil {
		return nil, fmt.Errorf("style extraction call failed: %w", err)
	}

	return ParseStyleDescriptor(raw)
}

// ParseStyleDescriptor decodes and validates a model-produced style
// descriptor against the closed contract.
func ParseStyleDescriptor(raw json.RawMessage) (*models.StyleDescriptor, error) {
	var descriptor models.StyleDescriptor
	if err := json.Unmarshal(raw, &descriptor); err != nil {
		return nil, fmt.Errorf("style extraction returned invalid JSON: %w", err)
	}
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("style extraction violated the descriptor contract: %w", err)
	}
	return &descriptor, nil
}

// generateEmbeddings embeds every post with usable cleaned text and stores
// the vectors 1:1 with their posts.
func (a *Analyzer) generateEmbeddings(ctx context.Context, userID uuid.UUID, posts []*models.Post) error {
	ctx, span := telemetry.StartSpan(ctx, "analyzer.generate_embeddings")
	defer span.End()

	usable := make([]*models.Post, 0, len(posts))
	texts := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.HasUsableText() {
			usable = append(usable, p)
			texts = append(texts, p.CleanedText)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	vectors, err := a.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if err := checkDimensions(vectors, a.embedder.Dimensions()); err != nil {
		return err
	}
	if len(vectors) != len(usable) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(usable))
	}

	rows := make([]*models.PostEmbedding, len(usable))
	for i, p := range usable {
		rows[i] = &models.PostEmbedding{
			PostID:    p.ID,
			UserID:    userID,
			Vector:    pgvector.NewVector(vectors[i]),
			Dimension: len(vectors[i]),
			Model:     a.embedder.Model(),
			CreatedAt: time.Now().UTC(),
		}
	}
	return a.embeddings.UpsertBatch(ctx, rows)
}

// checkDimensions rejects vectors that do not match the configured width.
// The vector column is fixed-width, so a model or config drift must fail
// here rather than on the insert.
func checkDimensions(vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), want)
		}
	}
	return nil
}

// seedMemory generates the persona and goals summaries concurrently. Each is
// independently retryable by later interactions; failures are contained here.
func (a *Analyzer) seedMemory(ctx context.Context, userID uuid.UUID, style *models.StyleDescriptor, about string) {
	seeds := []struct {
		category models.MemoryCategory
		prompt   string
	}{
		{
			category: models.MemoryPersona,
			prompt: fmt.Sprintf(
				"In 2-3 sentences, summarize the professional persona of someone whose about section reads:\n%s\n\nWriting tone: %s. Do not invent facts beyond the text above.",
				about, style.Tone),
		},
		{
			category: models.MemoryGoals,
			prompt: fmt.Sprintf(
				"In 2-3 sentences, infer the likely content goals of a LinkedIn author whose favorite topics are: %s. Phrase them as working hypotheses, not facts.",
				strings.Join(style.FavoriteTopics, ", ")),
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			content, err := a.completer.GenerateText(gctx, seed.prompt, 0.5)
			if err != nil {
				return fmt.Errorf("seed %s: %w", seed.category, err)
			}
			entry := &models.MemoryEntry{
				ID:        uuid.New(),
				UserID:    userID,
				Category:  seed.category,
				Content:   strings.TrimSpace(content),
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			}
			if err := a.memory.Upsert(gctx, entry); err != nil {
				return fmt.Errorf("seed %s: %w", seed.category, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Warn("Memory seeding incomplete",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
