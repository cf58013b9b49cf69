package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// Completer generates text from an assembled prompt. JSON mode forces a valid
// JSON document, used by the classifier, the style extractor and the validator.
type Completer interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateJSON(ctx context.Context, prompt string, temperature float32) (json.RawMessage, error)
}

// Client wraps the Gemini API for chat completion
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new Gemini completion client
func NewClient(cfg *config.GeminiConfig) (*Client, error) {
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

	logger := logging.GetLogger().With(zap.String("component", "gemini-client"))
	logger.Info("Gemini client initialized", zap.String("model", cfg.ChatModel))

	return &Client{
		client:  client,
		model:   cfg.ChatModel,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

// GenerateText generates free-form text for a prompt
func (c *Client) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "llm.generate_text")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}
	return text, nil
}

// GenerateJSON generates a response in forced-JSON mode and returns the raw
// document. Callers own unmarshalling and their own parse-failure policy.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, temperature float32) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "llm.generate_json")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](temperature),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := stripCodeFences(resp.Text())
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini returned empty response")
	}
	return json.RawMessage(text), nil
}

// stripCodeFences removes a surrounding markdown code fence if the model
// wrapped its JSON in one despite the forced MIME type.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
