package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Folder struct {
  gorm.Model

  ID          uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID      uuid.UUID   `gorm:"index;not null" json:"user_id"`
  Name        string      `gorm:"column:name" json:"name"`
  ParentID    *uuid.UUID  `gorm:"index" json:"parent_id,omitempty"`
  CreatedAt   time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (Folder) TableName() string {
  return "folder"
}
