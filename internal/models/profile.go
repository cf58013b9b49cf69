package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the user's LinkedIn "about" card. One per user, upserted on each
// ingestion run.
type Profile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:user_id"`
	Headline   string    `gorm:"type:varchar(512);column:headline"`
	About      string    `gorm:"type:text;column:about"`
	Location   string    `gorm:"type:varchar(255);column:location"`
	Experience string    `gorm:"type:jsonb;column:experience"`
	RawPayload string    `gorm:"type:jsonb;column:raw_payload"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "pe_profiles"
}

// ExperienceEntry is one structured position inside Profile.Experience.
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}
