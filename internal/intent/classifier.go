// Package intent classifies a user message into one of four closed intents
// and derives the clarification and retrieval flags the orchestrator routes
// on. A model response naming an intent outside the closed set is a contract
// violation, never a degraded OTHER.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/internal/validator"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// ErrContractViolation wraps failures where the model broke the structured
// output contract, as opposed to being unreachable.
var ErrContractViolation = errors.New("model output violates contract")

// Intent is one of the four terminal intents. The set is closed.
type Intent string

const (
	IntentWritePost      Intent = "WRITE_POST"
	IntentAnalyzeProfile Intent = "ANALYZE_PROFILE"
	IntentStrategy       Intent = "STRATEGY"
	IntentOther          Intent = "OTHER"
)

// Valid reports whether the intent is a member of the closed set.
func (i Intent) Valid() bool {
	switch i {
	case IntentWritePost, IntentAnalyzeProfile, IntentStrategy, IntentOther:
		return true
	}
	return false
}

// Classification is the routing decision for one turn.
type Classification struct {
	Intent             Intent   `json:"intent"`
	NeedsClarification bool     `json:"needs_clarification"`
	MissingFields      []string `json:"missing_fields"`
	NeedsRetrieval     bool     `json:"needs_retrieval"`
	FollowUpQuestions  []string `json:"follow_up_questions"`
}

// historyWindow is how many trailing chat messages the classifier sees.
const historyWindow = 5

const classificationPrompt = `You are an intent classifier for a LinkedIn content assistant. Classify the user's latest message into exactly one intent:

- WRITE_POST: the user wants a LinkedIn post drafted or edited.
- ANALYZE_PROFILE: the user wants an analysis of their own LinkedIn profile or posting history.
- STRATEGY: the user wants content-strategy advice (what to post, when, which topics).
- OTHER: anything else, including small talk and meta questions.

For WRITE_POST, the message must name a topic, an angle, and key points before a draft can be written. List any of "topic", "angle", "key_points" that are missing in missing_fields and set needs_clarification accordingly. Set needs_retrieval when answering well requires looking at the user's past posts. Propose 1 to 3 short follow-up questions when clarification is needed.

RECENT CONVERSATION:
%s

LATEST MESSAGE:
%s

Respond with JSON only, in exactly this shape:
{"intent": "<intent>", "needs_clarification": <bool>, "missing_fields": [], "needs_retrieval": <bool>, "follow_up_questions": []}`

// Classifier maps a message plus recent history to a Classification.
type Classifier struct {
	completer llm.Completer
	logger    *zap.Logger
}

// New creates a new intent classifier
func New(completer llm.Completer) *Classifier {
	return &Classifier{
		completer: completer,
		logger:    logging.GetLogger().With(zap.String("component", "intent")),
	}
}

// Classify returns the routing decision for message given the chat history.
// Only the last five history messages are shown to the model.
func (c *Classifier) Classify(ctx context.Context, message string, history []*models.ChatMessage) (*Classification, error) {
	ctx, span := telemetry.StartSpan(ctx, "intent.classify")
	defer span.End()

	prompt := fmt.Sprintf(classificationPrompt, renderHistory(history), message)
	raw, err := c.completer.GenerateJSON(ctx, prompt, 0.0)
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	var result Classification
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: classification response is not valid JSON: %v", ErrContractViolation, err)
	}
	if !result.Intent.Valid() {
		return nil, fmt.Errorf("%w: unknown intent %q", ErrContractViolation, result.Intent)
	}

	applyRoutingRules(&result, message)

	c.logger.Debug("Classified message",
		zap.String("intent", string(result.Intent)),
		zap.Bool("needs_clarification", result.NeedsClarification),
		zap.Bool("needs_retrieval", result.NeedsRetrieval))
	return &result, nil
}

// applyRoutingRules enforces the routing invariants regardless of what the
// model answered.
func applyRoutingRules(c *Classification, message string) {
	switch c.Intent {
	case IntentAnalyzeProfile, IntentStrategy:
		c.NeedsRetrieval = true
		c.NeedsClarification = false
		c.MissingFields = nil
	case IntentWritePost:
		if len(c.MissingFields) > 0 {
			c.NeedsClarification = true
		}
		// Drafts that lean on the user's career or achievements must be
		// grounded in their real posts, whatever the model decided.
		if validator.IsSensitive(message) {
			c.NeedsRetrieval = true
		}
	}
	if c.NeedsClarification && len(c.FollowUpQuestions) > 3 {
		c.FollowUpQuestions = c.FollowUpQuestions[:3]
	}
}

func renderHistory(history []*models.ChatMessage) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) == 0 {
		return "(no prior messages)"
	}
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = fmt.Sprintf("%s: %s", strings.ToUpper(string(m.Role)), m.Content)
	}
	return strings.Join(lines, "\n")
}
