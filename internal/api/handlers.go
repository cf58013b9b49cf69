package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/internal/onboarding"
)

// historyLimit is how much trailing conversation a turn sees.
const historyLimit = 10

type ingestRequest struct {
	LinkedInURL string `json:"linkedin_url" binding:"required"`
}

type chatRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message" binding:"required"`
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, NewError(http.StatusBadRequest, "invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}

// ingestHandler accepts a LinkedIn URL and starts the onboarding pipeline.
// It answers 202 as soon as the pipeline is launched; completion is observed
// by polling the onboarding endpoint.
func (r *Router) ingestHandler(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, NewError(http.StatusBadRequest, "linkedin_url is required"))
		return
	}

	err := r.onboarder.Ingest(c.Request.Context(), id, req.LinkedInURL)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": models.StatusScrapingInProgress})
	case errors.Is(err, onboarding.ErrInvalidURL):
		respondError(c, NewError(http.StatusBadRequest, err.Error()))
	case errors.Is(err, onboarding.ErrIngestNotAllowed):
		respondError(c, NewError(http.StatusConflict, err.Error()))
	default:
		r.logger.Error("Ingest failed", zap.String("user_id", id.String()), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to start onboarding"))
	}
}

// onboardingStatusHandler serves the 2-5 second status poll.
func (r *Router) onboardingStatusHandler(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	status, err := r.onboarder.GetStatus(c.Request.Context(), id)
	if err != nil {
		r.logger.Error("Status lookup failed", zap.String("user_id", id.String()), zap.Error(err))
		respondError(c, NewError(http.StatusNotFound, "user not found"))
		return
	}
	c.JSON(http.StatusOK, status)
}

// chatHandler persists the user message, runs one turn and persists the
// assistant reply. A missing chat_id starts a new chat.
func (r *Router) chatHandler(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, NewError(http.StatusBadRequest, "message is required"))
		return
	}

	ctx := c.Request.Context()

	chat, apiErr := r.resolveChat(c, id, req)
	if apiErr != nil {
		respondError(c, apiErr)
		return
	}

	history, err := r.chats.GetRecentMessages(ctx, chat.ID, historyLimit)
	if err != nil {
		r.logger.Error("Failed to load history", zap.String("chat_id", chat.ID.String()), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to load chat history"))
		return
	}

	if err := r.chats.AppendMessage(ctx, &models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleUser,
		Content: req.Message,
	}); err != nil {
		r.logger.Error("Failed to persist user message", zap.String("chat_id", chat.ID.String()), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to persist message"))
		return
	}

	result := r.responder.Respond(ctx, id, req.Message, history)

	if err := r.chats.AppendMessage(ctx, &models.ChatMessage{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    models.RoleAssistant,
		Content: result.ResponseText,
	}); err != nil {
		// The turn already ran; losing the persisted copy is better than
		// losing the answer.
		r.logger.Error("Failed to persist assistant message",
			zap.String("chat_id", chat.ID.String()), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id":  chat.ID,
		"response": result.ResponseText,
		"intent":   result.Intent,
		"metadata": result.Metadata,
	})
}

// messagesHandler returns a chat's messages in creation order.
func (r *Router) messagesHandler(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	chatID, err := uuid.Parse(c.Param("chatID"))
	if err != nil {
		respondError(c, NewError(http.StatusBadRequest, "invalid chat id"))
		return
	}

	ctx := c.Request.Context()
	chat, err := r.chats.GetChat(ctx, id, chatID)
	if err != nil {
		r.logger.Error("Chat lookup failed", zap.String("chat_id", chatID.String()), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to load chat"))
		return
	}
	if chat == nil {
		respondError(c, NewError(http.StatusNotFound, "chat not found"))
		return
	}

	messages, err := r.chats.GetMessages(ctx, chatID)
	if err != nil {
		r.logger.Error("Failed to load messages", zap.String("chat_id", chatID.String()), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to load messages"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "messages": messages})
}

// resolveChat loads the addressed chat or starts a new one.
func (r *Router) resolveChat(c *gin.Context, userID uuid.UUID, req chatRequest) (*models.Chat, *Error) {
	ctx := c.Request.Context()

	if req.ChatID != "" {
		chatID, err := uuid.Parse(req.ChatID)
		if err != nil {
			return nil, NewError(http.StatusBadRequest, "invalid chat id")
		}
		chat, err := r.chats.GetChat(ctx, userID, chatID)
		if err != nil {
			r.logger.Error("Chat lookup failed", zap.String("chat_id", chatID.String()), zap.Error(err))
			return nil, NewError(http.StatusInternalServerError, "failed to load chat")
		}
		if chat == nil {
			return nil, NewError(http.StatusNotFound, "chat not found")
		}
		return chat, nil
	}

	chat := &models.Chat{
		ID:     uuid.New(),
		UserID: userID,
		Title:  chatTitle(req.Message),
	}
	if err := r.chats.CreateChat(ctx, chat); err != nil {
		r.logger.Error("Failed to create chat", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, NewError(http.StatusInternalServerError, "failed to create chat")
	}
	return chat, nil
}

// chatTitle derives a short title from the opening message.
func chatTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	// Truncate on a rune boundary so a multibyte character at the cut
	// never leaves invalid UTF-8 in the stored title.
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	if title == "" {
		title = "Chat " + time.Now().Format("2006-01-02 15:04")
	}
	return title
}
