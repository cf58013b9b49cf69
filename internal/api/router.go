package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/cache"
	"github.com/postecho/postecho/internal/db"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/internal/onboarding"
	"github.com/postecho/postecho/internal/orchestrator"
	"github.com/postecho/postecho/pkg/logging"
)

// Onboarder is the onboarding surface the HTTP layer exposes.
type Onboarder interface {
	Ingest(ctx context.Context, userID uuid.UUID, linkedinURL string) error
	GetStatus(ctx context.Context, userID uuid.UUID) (*onboarding.Status, error)
}

// Responder runs one chat turn.
type Responder interface {
	Respond(ctx context.Context, userID uuid.UUID, message string, history []*models.ChatMessage) *orchestrator.Result
}

// ChatStore is the chat persistence the HTTP layer needs.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error)
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessages(ctx context.Context, chatID uuid.UUID) ([]*models.ChatMessage, error)
	GetRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

// Router sets up API routes
type Router struct {
	onboarder Onboarder
	responder Responder
	chats     ChatStore
	db        *db.DB
	cache     *cache.Cache
	logger    *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(onboarder Onboarder, responder Responder, chats ChatStore, database *db.DB, redisCache *cache.Cache) *Router {
	return &Router{
		onboarder: onboarder,
		responder: responder,
		chats:     chats,
		db:        database,
		cache:     redisCache,
		logger:    logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/users/:id/ingest", r.ingestHandler)
		v1.GET("/users/:id/onboarding", r.onboardingStatusHandler)
		v1.POST("/users/:id/chat", r.chatHandler)
		v1.GET("/users/:id/chats/:chatID/messages", r.messagesHandler)
	}
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "postecho-api",
	})
}
