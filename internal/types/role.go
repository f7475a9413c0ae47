package types

import (
  "time"

  "gorm.io/gorm"
  "github.com/google/uuid"
)

// Role names are fixed: "admin", "user" and "pending". Pending users have
// registered but are not yet approved, so every chat surface denies them.
type Role struct {
  gorm.Model
  ID                  uuid.UUID                 `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Users               []*User                   `gorm:"foreignKey:RoleID" json:"users,omitempty"`
  Permissions         []*Permission             `gorm:"many2many:permissions_roles;" json:"permissions,omitempty"`

  Name                string                    `gorm:"uniqueIndex;not null;column:name" json:"name"`

  CreatedAt           time.Time                 `gorm:"not null;default:now()" json:"createdAt"`
  UpdatedAt           time.Time                 `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Role) TableName() string {
  return "role"
}
