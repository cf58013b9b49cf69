package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Confidence is the qualitative tier describing how much source data backed a
// derived style profile.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Enumerations for the closed style-descriptor contract.
var (
	emojiUsageValues       = []string{"none", "minimal", "moderate", "heavy"}
	paragraphDensityValues = []string{"compact", "spaced", "varied"}
)

// StyleDescriptor is the fixed-shape description of how a user writes. The
// shape is a closed contract: no component may add or remove fields. It is
// validated everywhere untyped data enters the core, at model output parsing and
// stored-row deserialization alike.
type StyleDescriptor struct {
	Tone             string   `json:"tone"`
	Formality        int      `json:"formality"`
	AvgLengthWords   int      `json:"avg_length_words"`
	EmojiUsage       string   `json:"emoji_usage"`
	StructurePattern []string `json:"structure_patterns"`
	HookPatterns     []string `json:"hook_patterns"`
	HashtagStyle     string   `json:"hashtag_style"`
	FavoriteTopics   []string `json:"favorite_topics"`
	CadenceExamples  []string `json:"cadence_examples"`
	ParagraphDensity string   `json:"paragraph_density"`
}

// Validate checks every field of the descriptor against the closed contract.
// Any mismatch is a contract violation for the producing step, never coerced.
func (d *StyleDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("style descriptor is nil")
	}
	if strings.TrimSpace(d.Tone) == "" {
		return fmt.Errorf("style descriptor: tone is required")
	}
	if d.Formality < 1 || d.Formality > 10 {
		return fmt.Errorf("style descriptor: formality %d out of range 1-10", d.Formality)
	}
	if d.AvgLengthWords < 0 {
		return fmt.Errorf("style descriptor: avg_length_words must not be negative")
	}
	if !containsString(emojiUsageValues, d.EmojiUsage) {
		return fmt.Errorf("style descriptor: emoji_usage %q not in %v", d.EmojiUsage, emojiUsageValues)
	}
	if !containsString(paragraphDensityValues, d.ParagraphDensity) {
		return fmt.Errorf("style descriptor: paragraph_density %q not in %v", d.ParagraphDensity, paragraphDensityValues)
	}
	return nil
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// StyleProfile is the persisted style descriptor plus its confidence tier.
// One per user; written by the analyzer, read-only everywhere else.
type StyleProfile struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;column:id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex;column:user_id"`
	Tone             string     `gorm:"type:varchar(255);not null;column:tone"`
	Formality        int        `gorm:"not null;column:formality"`
	AvgLengthWords   int        `gorm:"not null;column:avg_length_words"`
	EmojiUsage       string     `gorm:"type:varchar(16);not null;column:emoji_usage"`
	StructurePattern []string   `gorm:"serializer:json;type:jsonb;column:structure_patterns"`
	HookPatterns     []string   `gorm:"serializer:json;type:jsonb;column:hook_patterns"`
	HashtagStyle     string     `gorm:"type:varchar(255);column:hashtag_style"`
	FavoriteTopics   []string   `gorm:"serializer:json;type:jsonb;column:favorite_topics"`
	CadenceExamples  []string   `gorm:"serializer:json;type:jsonb;column:cadence_examples"`
	ParagraphDensity string     `gorm:"type:varchar(16);not null;column:paragraph_density"`
	Confidence       Confidence `gorm:"type:varchar(8);not null;column:confidence"`
	CreatedAt        time.Time  `gorm:"not null;column:created_at"`
	UpdatedAt        time.Time  `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for StyleProfile
func (StyleProfile) TableName() string {
	return "pe_style_profiles"
}

// Descriptor returns the closed-contract view of the stored profile.
func (p *StyleProfile) Descriptor() *StyleDescriptor {
	if p == nil {
		return nil
	}
	return &StyleDescriptor{
		Tone:             p.Tone,
		Formality:        p.Formality,
		AvgLengthWords:   p.AvgLengthWords,
		EmojiUsage:       p.EmojiUsage,
		StructurePattern: p.StructurePattern,
		HookPatterns:     p.HookPatterns,
		HashtagStyle:     p.HashtagStyle,
		FavoriteTopics:   p.FavoriteTopics,
		CadenceExamples:  p.CadenceExamples,
		ParagraphDensity: p.ParagraphDensity,
	}
}
