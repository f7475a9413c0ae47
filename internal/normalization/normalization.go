package normalization

import (
  "strings"
)

// ParseInputString trims surrounding whitespace and collapses interior runs
// of whitespace down to single spaces.
func ParseInputString(s string) string {
  return strings.Join(strings.Fields(s), " ")
}

func ParseInputStringPtr(s *string) *string {
  if s == nil {
    return nil
  }
  parsed := ParseInputString(*s)
  return &parsed
}
