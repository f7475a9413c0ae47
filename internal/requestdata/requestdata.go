package requestdata

import (
  "context"

  "github.com/google/uuid"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

type RequestData struct {
  TokenString     string
  UserID          uuid.UUID
  RoleID          uuid.UUID
  Role            string
}

func (rd *RequestData) IsAdmin() bool {
  return rd.Role == "admin"
}

func (rd *RequestData) IsPending() bool {
  return rd.Role == "pending"
}
