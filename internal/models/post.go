package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Post represents a single scraped LinkedIn post. RawText is kept exactly as
// scraped; CleanedText is the normalized form used for analysis and embedding.
type Post struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey;column:id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id"`
	RawText         string         `gorm:"type:text;not null;column:raw_text"`
	CleanedText     string         `gorm:"type:text;not null;column:cleaned_text"`
	PostedAt        sql.NullTime   `gorm:"column:posted_at"`
	Likes           int            `gorm:"not null;default:0;column:likes"`
	Comments        int            `gorm:"not null;default:0;column:comments"`
	Shares          int            `gorm:"not null;default:0;column:shares"`
	Impressions     sql.NullInt64  `gorm:"column:impressions"`
	EngagementScore float64        `gorm:"not null;default:0;column:engagement_score"`
	HighPerforming  bool           `gorm:"not null;default:false;column:high_performing"`
	TopicHint       sql.NullString `gorm:"type:varchar(255);column:topic_hint"`
	RawPayload      string         `gorm:"type:jsonb;column:raw_payload"`
	CreatedAt       time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt       time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "pe_posts"
}

// HasUsableText reports whether the cleaned text carries any content. Posts
// without usable text are excluded from style modeling and embedding.
func (p *Post) HasUsableText() bool {
	for _, r := range p.CleanedText {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

// PostEmbedding is the similarity-search vector for one post, 1:1 with the
// post. It is regenerated whenever the post's cleaned text changes.
type PostEmbedding struct {
	PostID    uuid.UUID       `gorm:"type:uuid;primaryKey;column:post_id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index;column:user_id"`
	Vector    pgvector.Vector `gorm:"type:vector(768);column:vector"`
	Dimension int             `gorm:"not null;column:dimension"`
	Model     string          `gorm:"type:varchar(128);not null;column:model"`
	CreatedAt time.Time       `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for PostEmbedding
func (PostEmbedding) TableName() string {
	return "pe_post_embeddings"
}
