package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postecho/postecho/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// SetOnboardingState updates the onboarding status field. Status writes are
// last-writer-wins; transition legality is enforced by the onboarding pipeline.
func (r *UserRepository) SetOnboardingState(ctx context.Context, userID uuid.UUID, state models.OnboardingStatus, stateErr string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"onboarding_state": state,
			"onboarding_error": stateErr,
		}).Error
}

// SetLinkedInURL stores the submitted profile URL
func (r *UserRepository) SetLinkedInURL(ctx context.Context, userID uuid.UUID, url string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("linkedin_url", url).Error
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// CreateBatch inserts a set of scraped posts
func (r *PostRepository) CreateBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&posts).Error
}

// GetByUser retrieves all posts for a user
func (r *PostRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// GetHighPerforming retrieves the user's high-performing posts, best first
func (r *PostRepository) GetHighPerforming(ctx context.Context, userID uuid.UUID) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND high_performing = ?", userID, true).
		Order("engagement_score DESC, id ASC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// GetByIDs retrieves posts by primary key within a user scope
func (r *PostRepository) GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateScores writes the engagement score and high-performing flag computed
// by the analyzer over the complete post set
func (r *PostRepository) UpdateScores(ctx context.Context, posts []*models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range posts {
			if err := tx.Model(&models.Post{}).
				Where("id = ?", p.ID).
				Updates(map[string]interface{}{
					"engagement_score": p.EngagementScore,
					"high_performing":  p.HighPerforming,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByUser removes all posts for a user (used when a cycle is discarded)
func (r *PostRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Post{}).Error
}

// EmbeddingRepository provides post-embedding database operations
type EmbeddingRepository struct {
	*Repository
}

// NewEmbeddingRepository creates a new embedding repository
func NewEmbeddingRepository(repo *Repository) *EmbeddingRepository {
	return &EmbeddingRepository{Repository: repo}
}

// UpsertBatch stores embeddings, replacing any previous vector per post
func (r *EmbeddingRepository) UpsertBatch(ctx context.Context, embeddings []*models.PostEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector", "dimension", "model", "created_at"}),
	}).Create(&embeddings).Error
}

// GetByUser retrieves all stored embeddings for a user
func (r *EmbeddingRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.PostEmbedding, error) {
	var embeddings []*models.PostEmbedding
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("post_id ASC").
		Find(&embeddings).Error; err != nil {
		return nil, err
	}
	return embeddings, nil
}

// DeleteByUser removes all embeddings for a user
func (r *EmbeddingRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PostEmbedding{}).Error
}

// ProfileRepository provides LinkedIn profile database operations
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(repo *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: repo}
}

// GetByUser retrieves the profile for a user
func (r *ProfileRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Upsert creates or replaces the single profile row for a user
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"headline", "about", "location", "experience", "raw_payload", "updated_at",
		}),
	}).Create(profile).Error
}

// StyleProfileRepository provides style-profile database operations
type StyleProfileRepository struct {
	*Repository
}

// NewStyleProfileRepository creates a new style profile repository
func NewStyleProfileRepository(repo *Repository) *StyleProfileRepository {
	return &StyleProfileRepository{Repository: repo}
}

// GetByUser retrieves the style profile for a user. The stored shape is
// re-validated before it re-enters the core.
func (r *StyleProfileRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.StyleProfile, error) {
	var profile models.StyleProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := profile.Descriptor().Validate(); err != nil {
		return nil, fmt.Errorf("stored style profile failed shape validation: %w", err)
	}
	return &profile, nil
}

// Upsert creates or replaces the single style profile row for a user
func (r *StyleProfileRepository) Upsert(ctx context.Context, profile *models.StyleProfile) error {
	if err := profile.Descriptor().Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid style profile: %w", err)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tone", "formality", "avg_length_words", "emoji_usage",
			"structure_patterns", "hook_patterns", "hashtag_style",
			"favorite_topics", "cadence_examples", "paragraph_density",
			"confidence", "updated_at",
		}),
	}).Create(profile).Error
}

// MemoryRepository provides long-lived memory database operations
type MemoryRepository struct {
	*Repository
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(repo *Repository) *MemoryRepository {
	return &MemoryRepository{Repository: repo}
}

// Upsert writes the single entry for a (user, category) pair
func (r *MemoryRepository) Upsert(ctx context.Context, entry *models.MemoryEntry) error {
	if !entry.Category.Valid() {
		return fmt.Errorf("unknown memory category: %s", entry.Category)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(entry).Error
}

// GetByUser retrieves all memory entries for a user
func (r *MemoryRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.MemoryEntry, error) {
	var entries []*models.MemoryEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("category ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ChatRepository provides chat and message database operations
type ChatRepository struct {
	*Repository
}

// NewChatRepository creates a new chat repository
func NewChatRepository(repo *Repository) *ChatRepository {
	return &ChatRepository{Repository: repo}
}

// CreateChat creates a new chat thread
func (r *ChatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

// GetChat retrieves a chat within a user scope
func (r *ChatRepository) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// AppendMessage appends one message to a chat
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetMessages retrieves all messages of a chat in creation order
func (r *ChatRepository) GetMessages(ctx context.Context, chatID uuid.UUID) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// GetRecentMessages retrieves the true tail of the conversation order, oldest
// of the window first
func (r *ChatRepository) GetRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	// Reverse into conversation order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
