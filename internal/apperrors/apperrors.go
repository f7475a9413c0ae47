package apperrors

import (
  "errors"
  "fmt"
)

// Sentinel errors for the service layer. Handlers map these onto HTTP status
// codes with errors.Is so services never touch transport concerns.
var (
  ErrNotFound        = errors.New("not found")
  ErrUnauthorized    = errors.New("access prohibited")
  ErrInvalidArgument = errors.New("invalid argument")
  ErrInternal        = errors.New("internal error")
)

func NotFound(what string) error {
  return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func Unauthorized(what string) error {
  return fmt.Errorf("%s: %w", what, ErrUnauthorized)
}

func InvalidArgument(reason string) error {
  return fmt.Errorf("%s: %w", reason, ErrInvalidArgument)
}

func Internal(what string, err error) error {
  if err != nil {
    return fmt.Errorf("%s: %v: %w", what, err, ErrInternal)
  }
  return fmt.Errorf("%s: %w", what, ErrInternal)
}
