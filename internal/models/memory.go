package models

import (
	"time"

	"github.com/google/uuid"
)

// MemoryCategory names one long-lived summary slot. Closed set; at most one
// entry per user per category.
type MemoryCategory string

const (
	MemoryPersona         MemoryCategory = "persona"
	MemoryGoals           MemoryCategory = "goals"
	MemoryContentStrategy MemoryCategory = "content_strategy"
	MemoryPastWins        MemoryCategory = "past_wins"
	MemoryOther           MemoryCategory = "other"
)

// Valid reports whether c is a known memory category.
func (c MemoryCategory) Valid() bool {
	switch c {
	case MemoryPersona, MemoryGoals, MemoryContentStrategy, MemoryPastWins, MemoryOther:
		return true
	}
	return false
}

// MemoryEntry is one named long-lived summary for a user.
type MemoryEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;column:id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_memory_user_category;column:user_id"`
	Category  MemoryCategory `gorm:"type:varchar(32);not null;uniqueIndex:idx_memory_user_category;column:category"`
	Content   string         `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for MemoryEntry
func (MemoryEntry) TableName() string {
	return "pe_memory_entries"
}
