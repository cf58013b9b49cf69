package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole tags who authored a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Chat is one conversation thread belonging to a user.
type Chat struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;column:user_id"`
	Title     string    `gorm:"type:varchar(255);column:title"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Chat
func (Chat) TableName() string {
	return "pe_chats"
}

// ChatMessage is one append-only message inside a chat. Creation order is the
// conversation order and is load-bearing for context windows.
type ChatMessage struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey;column:id"`
	ChatID    uuid.UUID   `gorm:"type:uuid;not null;index;column:chat_id"`
	Role      MessageRole `gorm:"type:varchar(16);not null;column:role"`
	Content   string      `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time   `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "pe_chat_messages"
}
