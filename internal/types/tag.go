package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Tag is a derived per-user index row: it exists only while at least one of
// the owner's chats still lists its id in meta.tags.
type Tag struct {
  gorm.Model

  ID          string      `gorm:"primaryKey;column:id" json:"id"`
  UserID      uuid.UUID   `gorm:"primaryKey;type:uuid" json:"user_id"`
  User        *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
  Name        string      `gorm:"column:name" json:"name"`
  CreatedAt   time.Time   `gorm:"not null;default:now()"`
  UpdatedAt   time.Time   `gorm:"not null;default:now()"`
}

func (Tag) TableName() string {
  return "tag"
}
