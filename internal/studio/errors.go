package studio

import (
	"errors"
	"strings"

	"google.golang.org/genai"
)

var (
	ErrNoAPIKey       = errors.New("gemini api key is not configured")
	ErrPermission     = errors.New("model access denied")
	ErrContentBlocked = errors.New("generation blocked")
	ErrNoImage        = errors.New("model returned no image")
)

// IsRateLimited classifies quota errors worth retrying. The substring
// checks stay alongside the structured check because the service also
// reports quota exhaustion in plain error bodies.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}

func isPermissionDenied(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 403 {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED")
}
