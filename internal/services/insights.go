package services

import (
  "context"
  "errors"
  "fmt"
  "sort"
  "strings"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/studyhall-org/studyhall-backend/internal/apperrors"
  "github.com/studyhall-org/studyhall-backend/internal/logger"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/requestdata"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

// ChatSummary is the generated study digest for a single chat.
type ChatSummary struct {
  Subject         string    `json:"subject"`
  KnowledgePoints []string  `json:"knowledge_points"`
  Summary         string    `json:"summary"`
}

// MetadataFilter narrows chats by stored study metadata. Empty fields are
// ignored; list fields match when any element matches.
type MetadataFilter struct {
  Subject         string    `json:"subject"`
  KnowledgePoints []string  `json:"knowledge_points"`
  Tags            []string  `json:"tags"`
}

// UserStatistics aggregates study metadata across all of a user's chats.
type UserStatistics struct {
  TotalChats      int       `json:"total_chats"`
  MistakeCount    int       `json:"mistake_count"`
  Subjects        []string  `json:"subjects"`
  KnowledgePoints []string  `json:"knowledge_points"`
  Tags            []string  `json:"tags"`
}

// SubjectStatistics is the per-subject breakdown.
type SubjectStatistics struct {
  Subject         string    `json:"subject"`
  TotalChats      int       `json:"total_chats"`
  MistakeCount    int       `json:"mistake_count"`
  KnowledgePoints []string  `json:"knowledge_points"`
}

type InsightsService interface {
  Summarize(ctx context.Context, chatID uuid.UUID) (*ChatSummary, error)
  UpdateSummary(ctx context.Context, chatID uuid.UUID, patch types.ChatMetaPatch) (*types.Chat, error)
  ToggleMistake(ctx context.Context, chatID uuid.UUID) (*types.Chat, error)
  ListMistakes(ctx context.Context) ([]*types.Chat, error)
  Statistics(ctx context.Context) (*UserStatistics, error)
  StatisticsBySubject(ctx context.Context) ([]SubjectStatistics, error)
  SearchByMetadata(ctx context.Context, filter MetadataFilter) ([]*types.Chat, error)
}

type insightsService struct {
  log         *logger.Logger
  chatRepo    repos.ChatRepo
  tagService  TagService
}

func NewInsightsService(log *logger.Logger, chatRepo repos.ChatRepo, tagService TagService) InsightsService {
  return &insightsService{
    log:        log.With("service", "InsightsService"),
    chatRepo:   chatRepo,
    tagService: tagService,
  }
}

// subjectKeywords drives the keyword classifier. First subject whose
// keyword list scores highest wins; ties resolve in declaration order.
var subjectKeywords = []struct {
  subject   string
  keywords  []string
}{
  {"Math", []string{"math", "equation", "algebra", "geometry", "calculus", "integral", "derivative", "theorem"}},
  {"Physics", []string{"physics", "force", "velocity", "acceleration", "circuit", "energy", "optics", "momentum"}},
  {"Chemistry", []string{"chemistry", "reaction", "element", "molecule", "acid", "compound", "electron"}},
  {"Literature", []string{"essay", "poem", "novel", "literature", "author", "metaphor"}},
  {"English", []string{"vocabulary", "grammar", "translation", "tense", "pronunciation"}},
}

// Summarize derives subject, knowledge points and a length-based digest
// from the chat's message texts. Chats with no messages cannot be
// summarized.
func (is *insightsService) Summarize(ctx context.Context, chatID uuid.UUID) (*ChatSummary, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := is.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }

  text := collectMessageText(chat.Content)
  if text == "" {
    return nil, apperrors.InvalidArgument("chat has no messages to summarize")
  }
  lowered := strings.ToLower(text)

  subject := "General"
  points := []string{}
  best := 0
  for _, entry := range subjectKeywords {
    score := 0
    var hits []string
    for _, kw := range entry.keywords {
      if strings.Contains(lowered, kw) {
        score++
        hits = append(hits, kw)
      }
    }
    if score > best {
      best = score
      subject = entry.subject
      points = hits
    }
  }
  if best == 0 {
    points = []string{"Q&A", "Concept review"}
  }

  summary := "In-depth study session"
  switch {
  case len(text) < 100:
    summary = "Brief exchange"
  case len(text) < 500:
    summary = "Moderate discussion"
  }

  return &ChatSummary{Subject: subject, KnowledgePoints: points, Summary: summary}, nil
}

// UpdateSummary applies a field-level patch to the chat's study metadata.
// A tag list in the patch replaces the current set wholesale, so the index
// is reconciled against the diff: rows are created for tags that appeared
// and zero-reference rows are dropped for tags that vanished.
func (is *insightsService) UpdateSummary(ctx context.Context, chatID uuid.UUID, patch types.ChatMetaPatch) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := is.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }

  meta := chat.Meta.Data()
  var added, removed []string
  if patch.Tags != nil {
    normalized := make([]string, 0, len(*patch.Tags))
    seen := map[string]bool{}
    for _, raw := range *patch.Tags {
      tagID := NormalizeTagName(raw)
      if tagID == "" {
        continue
      }
      if tagID == ReservedTagNone {
        return nil, apperrors.InvalidArgument("tag name cannot be 'None'")
      }
      if !seen[tagID] {
        seen[tagID] = true
        normalized = append(normalized, tagID)
      }
    }
    former := map[string]bool{}
    for _, tagID := range meta.Tags {
      former[tagID] = true
    }
    for _, tagID := range normalized {
      if !former[tagID] {
        added = append(added, tagID)
      }
    }
    for _, tagID := range meta.Tags {
      if !seen[tagID] {
        removed = append(removed, tagID)
      }
    }
    patch.Tags = &normalized
  }

  chat.Meta = datatypes.NewJSONType(meta.Apply(patch))
  updated, err := is.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to update chat metadata", err)
  }

  if len(added) > 0 {
    if err := is.tagService.EnsureTags(ctx, rd.UserID, added); err != nil {
      is.log.Warn("Tag index repair failed after metadata update", "error", err, "chatID", chatID)
    }
  }
  if len(removed) > 0 {
    if err := is.tagService.ReconcileRemoved(ctx, rd.UserID, removed); err != nil {
      is.log.Warn("Tag index repair failed after metadata update", "error", err, "chatID", chatID)
    }
  }
  return updated, nil
}

func (is *insightsService) ToggleMistake(ctx context.Context, chatID uuid.UUID) (*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chat, err := is.getOwnedChat(ctx, chatID, rd.UserID)
  if err != nil {
    return nil, err
  }
  meta := chat.Meta.Data()
  meta.IsMistake = !meta.IsMistake
  chat.Meta = datatypes.NewJSONType(meta)
  updated, err := is.chatRepo.Update(ctx, nil, chat)
  if err != nil {
    return nil, apperrors.Internal("failed to toggle mistake flag", err)
  }
  return updated, nil
}

func (is *insightsService) ListMistakes(ctx context.Context) ([]*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := is.chatRepo.ListByUser(ctx, nil, rd.UserID, false, repos.ChatListFilter{})
  if err != nil {
    return nil, apperrors.Internal("failed to list chats", err)
  }
  mistakes := make([]*types.Chat, 0)
  for _, chat := range chats {
    if chat.Meta.Data().IsMistake {
      mistakes = append(mistakes, chat)
    }
  }
  return mistakes, nil
}

func (is *insightsService) Statistics(ctx context.Context) (*UserStatistics, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := is.chatRepo.ListByUser(ctx, nil, rd.UserID, true, repos.ChatListFilter{})
  if err != nil {
    return nil, apperrors.Internal("failed to gather statistics", err)
  }

  stats := &UserStatistics{TotalChats: len(chats)}
  subjects := map[string]bool{}
  points := map[string]bool{}
  tags := map[string]bool{}
  for _, chat := range chats {
    meta := chat.Meta.Data()
    if meta.IsMistake {
      stats.MistakeCount++
    }
    if meta.Subject != "" {
      subjects[meta.Subject] = true
    }
    for _, p := range meta.KnowledgePoints {
      points[p] = true
    }
    for _, t := range meta.Tags {
      tags[t] = true
    }
  }
  stats.Subjects = sortedKeys(subjects)
  stats.KnowledgePoints = sortedKeys(points)
  stats.Tags = sortedKeys(tags)
  return stats, nil
}

func (is *insightsService) StatisticsBySubject(ctx context.Context) ([]SubjectStatistics, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := is.chatRepo.ListByUser(ctx, nil, rd.UserID, true, repos.ChatListFilter{})
  if err != nil {
    return nil, apperrors.Internal("failed to gather statistics", err)
  }

  bySubject := map[string]*SubjectStatistics{}
  pointSets := map[string]map[string]bool{}
  for _, chat := range chats {
    meta := chat.Meta.Data()
    subject := meta.Subject
    if subject == "" {
      subject = "Uncategorized"
    }
    entry, ok := bySubject[subject]
    if !ok {
      entry = &SubjectStatistics{Subject: subject}
      bySubject[subject] = entry
      pointSets[subject] = map[string]bool{}
    }
    entry.TotalChats++
    if meta.IsMistake {
      entry.MistakeCount++
    }
    for _, p := range meta.KnowledgePoints {
      pointSets[subject][p] = true
    }
  }

  results := make([]SubjectStatistics, 0, len(bySubject))
  for subject, entry := range bySubject {
    entry.KnowledgePoints = sortedKeys(pointSets[subject])
    results = append(results, *entry)
  }
  sort.Slice(results, func(i, j int) bool { return results[i].Subject < results[j].Subject })
  return results, nil
}

// SearchByMetadata filters the caller's chats in memory against the stored
// study metadata. Subject matches exactly; list fields match on any
// shared element.
func (is *insightsService) SearchByMetadata(ctx context.Context, filter MetadataFilter) ([]*types.Chat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, fmt.Errorf("request data not set in context")
  }
  chats, err := is.chatRepo.ListByUser(ctx, nil, rd.UserID, true, repos.ChatListFilter{})
  if err != nil {
    return nil, apperrors.Internal("failed to search chats", err)
  }

  wantTags := map[string]bool{}
  for _, raw := range filter.Tags {
    wantTags[NormalizeTagName(raw)] = true
  }
  wantPoints := map[string]bool{}
  for _, p := range filter.KnowledgePoints {
    wantPoints[p] = true
  }

  matched := make([]*types.Chat, 0)
  for _, chat := range chats {
    meta := chat.Meta.Data()
    if filter.Subject != "" && meta.Subject != filter.Subject {
      continue
    }
    if len(wantTags) > 0 && !anyMember(meta.Tags, wantTags) {
      continue
    }
    if len(wantPoints) > 0 && !anyMember(meta.KnowledgePoints, wantPoints) {
      continue
    }
    matched = append(matched, chat)
  }
  return matched, nil
}

// ----------------------------------------------------------------
// Internals
// ----------------------------------------------------------------

func (is *insightsService) getOwnedChat(ctx context.Context, chatID, userID uuid.UUID) (*types.Chat, error) {
  chat, err := is.chatRepo.GetByIDAndUser(ctx, nil, chatID, userID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.NotFound("chat")
    }
    return nil, apperrors.Internal("failed to load chat", err)
  }
  return chat, nil
}

// collectMessageText flattens every message content string in history order
// into a single space-joined blob for the classifier.
func collectMessageText(content datatypes.JSONMap) string {
  if content == nil {
    return ""
  }
  history, ok := content["history"].(map[string]interface{})
  if !ok {
    return ""
  }
  messages, ok := history["messages"].(map[string]interface{})
  if !ok {
    return ""
  }
  var parts []string
  for _, raw := range messages {
    message, ok := raw.(map[string]interface{})
    if !ok {
      continue
    }
    if text, ok := message["content"].(string); ok && text != "" {
      parts = append(parts, text)
    }
  }
  sort.Strings(parts)
  return strings.Join(parts, " ")
}

func anyMember(have []string, want map[string]bool) bool {
  for _, v := range have {
    if want[v] {
      return true
    }
  }
  return false
}

func sortedKeys(set map[string]bool) []string {
  keys := make([]string, 0, len(set))
  for k := range set {
    keys = append(keys, k)
  }
  sort.Strings(keys)
  return keys
}
