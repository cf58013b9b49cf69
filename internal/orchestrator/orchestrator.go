// Package orchestrator sequences one chat turn: classify, retrieve, load
// grounding, generate, validate. A turn always produces an assistant message;
// failures inside the sequence degrade rather than abort.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/cache"
	"github.com/postecho/postecho/internal/intent"
	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/internal/prompt"
	"github.com/postecho/postecho/internal/tasks"
	"github.com/postecho/postecho/internal/validator"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// apologyMessage is the best-effort fallback when a turn cannot produce a
// grounded response. A turn never returns nothing.
const apologyMessage = "I'm sorry, I ran into a problem answering that. Please try again in a moment."

// Classifier decides the routing for a turn.
type Classifier interface {
	Classify(ctx context.Context, message string, history []*models.ChatMessage) (*intent.Classification, error)
}

// Retriever returns the posts most similar to a query within a user scope.
type Retriever interface {
	Retrieve(ctx context.Context, userID uuid.UUID, query string, k int) ([]*models.Post, error)
}

// FactChecker validates a draft against its facts block and rewrites at most
// once.
type FactChecker interface {
	Run(ctx context.Context, draft, factsBlock, intentName string) (string, bool, error)
}

// StyleStore loads a user's stored style profile.
type StyleStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.StyleProfile, error)
}

// MemoryStore loads and updates a user's long-term memory entries.
type MemoryStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) ([]*models.MemoryEntry, error)
	Upsert(ctx context.Context, entry *models.MemoryEntry) error
}

// ProfileStore loads a user's scraped profile.
type ProfileStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// PostStore loads a user's high-performing posts.
type PostStore interface {
	GetHighPerforming(ctx context.Context, userID uuid.UUID) ([]*models.Post, error)
}

// StyleCache is the serialized style descriptor cache. Every turn loads the
// style, so it is the hottest read in the system.
type StyleCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, ttl time.Duration) error
}

// styleCacheTTL bounds how long a stale descriptor can be served after a
// re-analysis rewrites the stored profile.
const styleCacheTTL = 10 * time.Minute

// Metadata is the per-turn observability surface returned with each response.
type Metadata struct {
	Clarification  bool `json:"clarification"`
	RetrievalUsed  bool `json:"retrieval_used"`
	RetrievedCount int  `json:"retrieved_count"`
}

// Result is the outcome of one turn.
type Result struct {
	ResponseText string        `json:"response"`
	Intent       intent.Intent `json:"intent"`
	Metadata     Metadata      `json:"metadata"`
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	classifier Classifier
	retriever  Retriever
	validator  FactChecker
	completer  llm.Completer
	styles     StyleStore
	memory     MemoryStore
	profiles   ProfileStore
	posts      PostStore
	styleCache StyleCache
	runner     *tasks.Runner
	logger     *zap.Logger
}

// New creates a new orchestrator. A nil styleCache skips caching; a nil
// runner disables the background memory refresh after each turn.
func New(classifier Classifier, retriever Retriever, validator FactChecker, completer llm.Completer,
	styles StyleStore, memory MemoryStore, profiles ProfileStore, posts PostStore,
	styleCache StyleCache, runner *tasks.Runner) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		retriever:  retriever,
		validator:  validator,
		completer:  completer,
		styles:     styles,
		memory:     memory,
		profiles:   profiles,
		posts:      posts,
		styleCache: styleCache,
		runner:     runner,
		logger:     logging.GetLogger().With(zap.String("component", "orchestrator")),
	}
}

const writePostInstructions = `Write a LinkedIn post for the user about their request below. Structure it in three sections: a Hook (first line that stops the scroll), a Body (the substance), and a CTA (a closing question or call to action). Match the STYLE section. Ground every factual statement in the FACTS section.

User request: %s`

const analyzeProfileInstructions = `Analyze the user's LinkedIn presence using only the profile and posts in the FACTS section. Cover what their content does well, what could improve, and any patterns you observe. Do not state anything about the user that the FACTS section does not support.

User request: %s`

const strategyInstructions = `Give the user concrete content-strategy advice: which topics to lean into, what formats are working for them, and what to try next. Use their high-performing posts and long-term memory in the FACTS section as evidence.%s

User request: %s`

const otherInstructions = `Respond helpfully and conversationally in the user's voice. If the request needs information about the user that is not in the FACTS section, say so and ask for it.

User request: %s`

// Respond runs one turn. The returned result is always non-nil and always
// carries a response text, falling back to an apology when generation fails.
func (o *Orchestrator) Respond(ctx context.Context, userID uuid.UUID, message string, history []*models.ChatMessage) *Result {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.respond")
	defer span.End()

	classification, err := o.classifier.Classify(ctx, message, history)
	if err != nil {
		o.logger.Error("Classification failed", zap.Error(err), zap.String("user_id", userID.String()))
		return &Result{ResponseText: apologyMessage, Intent: intent.IntentOther}
	}

	style := o.loadStyle(ctx, userID)

	var result *Result
	switch classification.Intent {
	case intent.IntentWritePost:
		result = o.writePost(ctx, userID, message, history, classification, style)
	case intent.IntentAnalyzeProfile:
		result = o.analyzeProfile(ctx, userID, message, classification, style)
	case intent.IntentStrategy:
		result = o.strategy(ctx, userID, message, style)
	default:
		result = o.other(ctx, userID, message, history, style)
	}

	// Clarification turns and fallbacks carry no new durable information.
	if o.runner != nil && !result.Metadata.Clarification && result.ResponseText != apologyMessage {
		o.scheduleMemoryRefresh(userID, message, result.ResponseText)
	}
	return result
}

func (o *Orchestrator) writePost(ctx context.Context, userID uuid.UUID, message string,
	history []*models.ChatMessage, c *intent.Classification, style *models.StyleDescriptor) *Result {
	if c.NeedsClarification {
		return o.clarify(ctx, message, c, style)
	}

	var retrieved []*models.Post
	if c.NeedsRetrieval {
		retrieved = o.retrieve(ctx, userID, message)
	}
	grounding := prompt.Grounding{
		Posts:   retrieved,
		Profile: o.loadProfile(ctx, userID),
		Memory:  o.loadMemory(ctx, userID),
		History: history,
	}

	p := prompt.Build(style, grounding, fmt.Sprintf(writePostInstructions, message))
	draft, err := o.completer.GenerateText(ctx, p, 0.7)
	if err != nil {
		return o.fallback(err, userID, intent.IntentWritePost, c.NeedsRetrieval, len(retrieved))
	}

	if validator.IsSensitive(message, draft) {
		facts := prompt.FactsBlock(grounding)
		checked, _, err := o.validator.Run(ctx, draft, facts, string(intent.IntentWritePost))
		if err != nil {
			// Keep the unvalidated draft rather than dropping the turn; the
			// validation failure is an upstream problem, not a user error.
			o.logger.Warn("Validation pass failed, returning unvalidated draft", zap.Error(err))
		} else {
			draft = checked
		}
	}

	return &Result{
		ResponseText: draft,
		Intent:       intent.IntentWritePost,
		Metadata:     Metadata{RetrievalUsed: c.NeedsRetrieval, RetrievedCount: len(retrieved)},
	}
}

func (o *Orchestrator) analyzeProfile(ctx context.Context, userID uuid.UUID, message string,
	c *intent.Classification, style *models.StyleDescriptor) *Result {
	retrieved := o.retrieve(ctx, userID, message)

	// Biographical analysis grounds in profile and posts only. Chat memory is
	// deliberately excluded so conversational claims cannot leak in as facts.
	grounding := prompt.Grounding{
		Posts:   retrieved,
		Profile: o.loadProfile(ctx, userID),
	}

	p := prompt.Build(style, grounding, fmt.Sprintf(analyzeProfileInstructions, message))
	draft, err := o.completer.GenerateText(ctx, p, 0.5)
	if err != nil {
		return o.fallback(err, userID, intent.IntentAnalyzeProfile, true, len(retrieved))
	}

	facts := prompt.FactsBlock(grounding)
	checked, _, err := o.validator.Run(ctx, draft, facts, string(intent.IntentAnalyzeProfile))
	if err != nil {
		o.logger.Warn("Validation pass failed, returning unvalidated analysis", zap.Error(err))
		checked = draft
	}

	return &Result{
		ResponseText: checked,
		Intent:       intent.IntentAnalyzeProfile,
		Metadata:     Metadata{RetrievalUsed: true, RetrievedCount: len(retrieved)},
	}
}

func (o *Orchestrator) strategy(ctx context.Context, userID uuid.UUID, message string, style *models.StyleDescriptor) *Result {
	posts, err := o.posts.GetHighPerforming(ctx, userID)
	if err != nil {
		o.logger.Warn("Failed to load high-performing posts, continuing without",
			zap.Error(err), zap.String("user_id", userID.String()))
		posts = nil
	}
	grounding := prompt.Grounding{
		Posts:  posts,
		Memory: o.loadMemory(ctx, userID),
	}

	topics := ""
	if style != nil && len(style.FavoriteTopics) > 0 {
		topics = "\n\nThe user's favorite topics: " + strings.Join(style.FavoriteTopics, ", ") + "."
	}

	p := prompt.Build(style, grounding, fmt.Sprintf(strategyInstructions, topics, message))
	text, err := o.completer.GenerateText(ctx, p, 0.7)
	if err != nil {
		return o.fallback(err, userID, intent.IntentStrategy, true, len(posts))
	}

	return &Result{
		ResponseText: text,
		Intent:       intent.IntentStrategy,
		Metadata:     Metadata{RetrievalUsed: true, RetrievedCount: len(posts)},
	}
}

func (o *Orchestrator) other(ctx context.Context, userID uuid.UUID, message string,
	history []*models.ChatMessage, style *models.StyleDescriptor) *Result {
	grounding := prompt.Grounding{
		Memory:  o.loadMemory(ctx, userID),
		History: history,
	}

	p := prompt.Build(style, grounding, fmt.Sprintf(otherInstructions, message))
	text, err := o.completer.GenerateText(ctx, p, 0.7)
	if err != nil {
		return o.fallback(err, userID, intent.IntentOther, false, 0)
	}

	return &Result{ResponseText: text, Intent: intent.IntentOther}
}

// clarify answers a WRITE_POST turn that lacks topic, angle or key points
// with questions only. No draft and no retrieval-heavy generation happen in
// the same turn.
func (o *Orchestrator) clarify(ctx context.Context, message string, c *intent.Classification, style *models.StyleDescriptor) *Result {
	result := &Result{
		Intent:   intent.IntentWritePost,
		Metadata: Metadata{Clarification: true},
	}

	if len(c.FollowUpQuestions) > 0 {
		result.ResponseText = "Before I draft this, a couple of questions:\n- " +
			strings.Join(c.FollowUpQuestions, "\n- ")
		return result
	}

	instructions := "The user wants a LinkedIn post but has not given enough detail (missing: " +
		strings.Join(c.MissingFields, ", ") + "). Ask one or two short questions to pin down what they want. Do not draft anything yet.\n\nUser request: " + message
	text, err := o.completer.GenerateText(ctx, prompt.Build(style, prompt.Grounding{}, instructions), 0.7)
	if err != nil {
		o.logger.Error("Clarification generation failed", zap.Error(err))
		result.ResponseText = apologyMessage
		return result
	}
	result.ResponseText = text
	return result
}

// retrieve degrades to an empty grounding set on failure so a broken
// retrieval path never aborts a turn.
func (o *Orchestrator) retrieve(ctx context.Context, userID uuid.UUID, query string) []*models.Post {
	posts, err := o.retriever.Retrieve(ctx, userID, query, 0)
	if err != nil {
		o.logger.Warn("Retrieval failed, continuing with empty grounding",
			zap.Error(err), zap.String("user_id", userID.String()))
		return nil
	}
	return posts
}

func (o *Orchestrator) loadStyle(ctx context.Context, userID uuid.UUID) *models.StyleDescriptor {
	key := cache.StyleProfileKey(userID.String())
	if o.styleCache != nil {
		if raw, err := o.styleCache.Get(key); err == nil {
			var descriptor models.StyleDescriptor
			if err := json.Unmarshal([]byte(raw), &descriptor); err == nil {
				return &descriptor
			}
			o.logger.Warn("Discarding unparseable cached style profile",
				zap.String("user_id", userID.String()))
		}
	}

	profile, err := o.styles.GetByUser(ctx, userID)
	if err != nil {
		o.logger.Warn("Failed to load style profile, using neutral voice",
			zap.Error(err), zap.String("user_id", userID.String()))
		return nil
	}
	descriptor := profile.Descriptor()

	if o.styleCache != nil && descriptor != nil {
		if raw, err := json.Marshal(descriptor); err == nil {
			if err := o.styleCache.Set(key, raw, styleCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
				o.logger.Warn("Failed to cache style profile", zap.Error(err))
			}
		}
	}
	return descriptor
}

func (o *Orchestrator) loadMemory(ctx context.Context, userID uuid.UUID) []*models.MemoryEntry {
	entries, err := o.memory.GetByUser(ctx, userID)
	if err != nil {
		o.logger.Warn("Failed to load memory, continuing without",
			zap.Error(err), zap.String("user_id", userID.String()))
		return nil
	}
	return entries
}

func (o *Orchestrator) loadProfile(ctx context.Context, userID uuid.UUID) *models.Profile {
	profile, err := o.profiles.GetByUser(ctx, userID)
	if err != nil {
		o.logger.Warn("Failed to load profile, continuing without",
			zap.Error(err), zap.String("user_id", userID.String()))
		return nil
	}
	return profile
}

func (o *Orchestrator) fallback(err error, userID uuid.UUID, it intent.Intent, retrievalUsed bool, retrieved int) *Result {
	o.logger.Error("Generation failed, returning fallback message",
		zap.Error(err), zap.String("user_id", userID.String()), zap.String("intent", string(it)))
	return &Result{
		ResponseText: apologyMessage,
		Intent:       it,
		Metadata:     Metadata{RetrievalUsed: retrievalUsed, RetrievedCount: retrieved},
	}
}
