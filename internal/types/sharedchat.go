package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// SharedChat is the public read-only snapshot of a chat. Its ID is the
// share id stored on the source chat.
type SharedChat struct {
  gorm.Model

  ID          uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
  ChatID      uuid.UUID           `gorm:"uniqueIndex;not null" json:"chat_id"`
  UserID      uuid.UUID           `gorm:"index;not null" json:"user_id"`
  Title       string              `gorm:"column:title" json:"title"`
  Content     datatypes.JSONMap   `gorm:"column:content;type:jsonb" json:"chat"`
  CreatedAt   time.Time           `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (SharedChat) TableName() string {
  return "shared_chat"
}
