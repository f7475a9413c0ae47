package types

import (
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// ChatMeta is the typed shape of the chat's meta column. Tags always hold
// normalized tag ids, never raw display names.
type ChatMeta struct {
  Tags            []string  `json:"tags,omitempty"`
  Subject         string    `json:"subject,omitempty"`
  KnowledgePoints []string  `json:"knowledge_points,omitempty"`
  IsMistake       bool      `json:"is_mistake,omitempty"`
}

func (m ChatMeta) HasTag(tagID string) bool {
  for _, t := range m.Tags {
    if t == tagID {
      return true
    }
  }
  return false
}

func (m *ChatMeta) AddTag(tagID string) {
  if !m.HasTag(tagID) {
    m.Tags = append(m.Tags, tagID)
  }
}

func (m *ChatMeta) RemoveTag(tagID string) {
  filtered := m.Tags[:0]
  for _, t := range m.Tags {
    if t != tagID {
      filtered = append(filtered, t)
    }
  }
  m.Tags = filtered
}

// ChatMetaPatch is a field-level patch: nil fields are left untouched,
// non-nil fields replace the current value wholesale.
type ChatMetaPatch struct {
  Subject         *string   `json:"subject,omitempty"`
  KnowledgePoints *[]string `json:"knowledge_points,omitempty"`
  Tags            *[]string `json:"tags,omitempty"`
}

func (m ChatMeta) Apply(p ChatMetaPatch) ChatMeta {
  out := m
  if p.Subject != nil {
    out.Subject = *p.Subject
  }
  if p.KnowledgePoints != nil {
    out.KnowledgePoints = *p.KnowledgePoints
  }
  if p.Tags != nil {
    out.Tags = *p.Tags
  }
  return out
}

type Chat struct {
  gorm.Model

  ID          uuid.UUID                     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID      uuid.UUID                     `gorm:"index;not null" json:"user_id"`
  User        *User                         `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
  Title       string                        `gorm:"column:title" json:"title"`
  Content     datatypes.JSONMap             `gorm:"column:content;type:jsonb" json:"chat"`
  Meta        datatypes.JSONType[ChatMeta]  `gorm:"column:meta;type:jsonb" json:"meta"`
  ShareID     *uuid.UUID                    `gorm:"index" json:"share_id,omitempty"`
  FolderID    *uuid.UUID                    `gorm:"index" json:"folder_id,omitempty"`
  Pinned      bool                          `gorm:"not null;default:false" json:"pinned"`
  Archived    bool                          `gorm:"not null;default:false" json:"archived"`
  CreatedAt   time.Time                     `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time                     `gorm:"not null;default:now()" json:"updated_at"`
}

func (Chat) TableName() string {
  return "chat"
}

// CurrentMessageID returns content.history.currentId, the active leaf of the
// conversation tree, or "" when the chat has no history yet.
func (c *Chat) CurrentMessageID() string {
  history, ok := c.Content["history"].(map[string]interface{})
  if !ok {
    return ""
  }
  id, _ := history["currentId"].(string)
  return id
}

// CloneContent deep-copies the content blob through a JSON round trip so the
// clone never aliases the source chat's nested maps.
func (c *Chat) CloneContent() (datatypes.JSONMap, error) {
  raw, err := json.Marshal(c.Content)
  if err != nil {
    return nil, err
  }
  var out datatypes.JSONMap
  if err := json.Unmarshal(raw, &out); err != nil {
    return nil, err
  }
  if out == nil {
    out = datatypes.JSONMap{}
  }
  return out, nil
}

// ChatTitleID is the slim projection used by list and search endpoints.
type ChatTitleID struct {
  ID          uuid.UUID   `json:"id"`
  Title       string      `json:"title"`
  CreatedAt   time.Time   `json:"created_at"`
  UpdatedAt   time.Time   `json:"updated_at"`
}

func (c *Chat) TitleID() ChatTitleID {
  return ChatTitleID{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}
