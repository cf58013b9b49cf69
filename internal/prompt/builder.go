// Package prompt assembles every grounded LLM call in the system. There is
// exactly one way to build a prompt: a STYLE block, a FACTS block and an
// INSTRUCTIONS block, in that order, terminated by a fixed safety-rules block.
// Callers never concatenate prompt fragments themselves.
package prompt

import (
	"fmt"
	"strings"

	"github.com/postecho/postecho/internal/models"
)

// safetyRules terminates every assembled prompt, independent of intent.
const safetyRules = `MANDATORY RULES:
- FACTS override STYLE. If a fact and a stylistic habit conflict, the fact wins.
- Never infer identity, employer, tenure, achievements or any biographical detail from tone or writing style.
- Only state facts that appear in the FACTS section above. Do not invent, embellish or extrapolate.
- If you are uncertain whether something is supported by the FACTS section, ask the user instead of guessing.`

// noVerifiedData is the FACTS framing used when no grounding exists.
const noVerifiedData = `NO VERIFIED DATA IS AVAILABLE for this request.
Do not invent any facts about the user. State that you don't have enough
information and ask the user for the specific details you need.`

// Grounding carries the retrieved and loaded material a generation may rely
// on. Any field may be empty; empty grounding renders the no-verified-data
// framing.
type Grounding struct {
	Posts   []*models.Post
	Profile *models.Profile
	Memory  []*models.MemoryEntry
	History []*models.ChatMessage
}

// Empty reports whether no grounding material is present at all.
func (g Grounding) Empty() bool {
	return len(g.Posts) == 0 && g.Profile == nil && len(g.Memory) == 0 && len(g.History) == 0
}

// Build renders the complete three-block prompt contract.
func Build(style *models.StyleDescriptor, grounding Grounding, instructions string) string {
	var b strings.Builder

	b.WriteString("=== STYLE ===\n")
	b.WriteString(styleBlock(style))
	b.WriteString("\n\n=== FACTS ===\n")
	b.WriteString(factsBlock(grounding))
	b.WriteString("\n\n=== INSTRUCTIONS ===\n")
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\n")
	b.WriteString(safetyRules)
	b.WriteString("\n")

	return b.String()
}

// FactsBlock renders the FACTS section alone. Callers that validate a draft
// need the exact facts it was grounded on.
func FactsBlock(g Grounding) string {
	return factsBlock(g)
}

// styleBlock renders voice attributes only. It never carries factual content;
// a missing style profile renders a neutral default.
func styleBlock(style *models.StyleDescriptor) string {
	if style == nil || style.Validate() != nil {
		return "No style profile is available yet. Write in a clear, professional LinkedIn voice."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tone: %s\n", style.Tone)
	fmt.Fprintf(&b, "Formality: %d/10\n", style.Formality)
	fmt.Fprintf(&b, "Typical length: about %d words\n", style.AvgLengthWords)
	fmt.Fprintf(&b, "Emoji usage: %s\n", style.EmojiUsage)
	fmt.Fprintf(&b, "Paragraph density: %s\n", style.ParagraphDensity)
	if len(style.StructurePattern) > 0 {
		fmt.Fprintf(&b, "Structural patterns: %s\n", strings.Join(style.StructurePattern, "; "))
	}
	if len(style.HookPatterns) > 0 {
		fmt.Fprintf(&b, "Hook patterns: %s\n", strings.Join(style.HookPatterns, "; "))
	}
	if style.HashtagStyle != "" {
		fmt.Fprintf(&b, "Hashtag style: %s\n", style.HashtagStyle)
	}
	if len(style.CadenceExamples) > 0 {
		fmt.Fprintf(&b, "Cadence examples: %s\n", strings.Join(style.CadenceExamples, " | "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// factsBlock enumerates each grounding fact under a named, scannable label so
// the model can attribute every claim to a source.
func factsBlock(g Grounding) string {
	if g.Empty() {
		return noVerifiedData
	}

	var b strings.Builder

	if g.Profile != nil {
		b.WriteString("LINKEDIN PROFILE:\n")
		if g.Profile.Headline != "" {
			fmt.Fprintf(&b, "  Headline: %s\n", g.Profile.Headline)
		}
		if g.Profile.About != "" {
			fmt.Fprintf(&b, "  About: %s\n", g.Profile.About)
		}
		if g.Profile.Location != "" {
			fmt.Fprintf(&b, "  Location: %s\n", g.Profile.Location)
		}
		if g.Profile.Experience != "" {
			fmt.Fprintf(&b, "  Experience: %s\n", g.Profile.Experience)
		}
		b.WriteString("\n")
	}

	for i, post := range g.Posts {
		fmt.Fprintf(&b, "Post %d:\n%s\n", i+1, indent(post.CleanedText))
		if post.HighPerforming {
			b.WriteString("  (high-performing post)\n")
		}
		b.WriteString("\n")
	}

	if len(g.Memory) > 0 {
		b.WriteString("LONG-TERM MEMORY:\n")
		for _, entry := range g.Memory {
			fmt.Fprintf(&b, "  %s: %s\n", entry.Category, entry.Content)
		}
		b.WriteString("\n")
	}

	if len(g.History) > 0 {
		b.WriteString("RECENT CONVERSATION:\n")
		for _, msg := range g.History {
			fmt.Fprintf(&b, "  %s: %s\n", msg.Role, msg.Content)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func indent(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
