package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors for common API failure modes.
var (
	ErrRateLimited         = errors.New("tutor: rate limited")
	ErrUnsupportedLanguage = errors.New("tutor: unsupported language")
	ErrUnauthorized        = errors.New("tutor: unauthorized")
)

// APIError is a structured error returned by the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tutor: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Is maps well-known API codes to sentinel errors for errors.Is matching.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Code == "rate_limited"
	case ErrUnsupportedLanguage:
		return e.Code == "unsupported_language"
	case ErrUnauthorized:
		return e.StatusCode == 401
	}
	return false
}
