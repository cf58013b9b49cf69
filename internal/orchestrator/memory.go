package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/pkg/telemetry"
)

const memoryRefreshPrompt = `You maintain long-term memory for a LinkedIn content assistant. Memory is a set of named summary slots, one per category:

- persona: who the user is professionally.
- goals: what they want from their LinkedIn presence.
- content_strategy: topics, formats and cadence decisions they have settled on.
- past_wins: posts or moves that worked well for them.
- other: anything durable that fits nowhere else.

CURRENT MEMORY:
%s

LATEST EXCHANGE:
USER: %s
ASSISTANT: %s

Decide which slots, if any, the exchange should update. Only record durable information; skip pleasantries and one-off requests. An update replaces the slot's content, so restate what is still true and fold in the new detail. Most exchanges need no updates.

Respond with JSON only, in exactly this shape:
{"updates": [{"category": "<category>", "content": "<new slot content>"}]}`

type memoryUpdate struct {
	Category models.MemoryCategory `json:"category"`
	Content  string                `json:"content"`
}

// scheduleMemoryRefresh hands the refresh to the background runner. The turn
// that triggered it has already been answered; failures are logged by the
// runner and never surface to the user.
func (o *Orchestrator) scheduleMemoryRefresh(userID uuid.UUID, message, response string) {
	o.runner.Go("memory-refresh:"+userID.String(), func(ctx context.Context) error {
		return o.refreshMemory(ctx, userID, message, response)
	})
}

func (o *Orchestrator) refreshMemory(ctx context.Context, userID uuid.UUID, message, response string) error {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.refresh_memory")
	defer span.End()

	existing := o.loadMemory(ctx, userID)
	p := fmt.Sprintf(memoryRefreshPrompt, renderMemory(existing), message, response)
	raw, err := o.completer.GenerateJSON(ctx, p, 0.0)
	if err != nil {
		return fmt.Errorf("memory refresh call failed: %w", err)
	}

	var parsed struct {
		Updates []memoryUpdate `json:"updates"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("memory refresh response is not valid JSON: %w", err)
	}

	for _, u := range parsed.Updates {
		content := strings.TrimSpace(u.Content)
		if content == "" {
			continue
		}
		if !u.Category.Valid() {
			o.logger.Warn("Skipping memory update with unknown category",
				zap.String("category", string(u.Category)), zap.String("user_id", userID.String()))
			continue
		}
		now := time.Now().UTC()
		entry := &models.MemoryEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Category:  u.Category,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := o.memory.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("memory upsert failed for %s: %w", u.Category, err)
		}
	}
	return nil
}

func renderMemory(entries []*models.MemoryEntry) string {
	if len(entries) == 0 {
		return "(none yet)"
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s: %s", e.Category, e.Content)
	}
	return strings.Join(lines, "\n")
}
