package shepherd

import (
	"encoding/json"

	"github.com/coldforge/shepherd/internal/models"
)

func ptr[T any](v T) *T {
	return &v
}

// reasonJSON serializes a StatusReason for storage, returning the empty string for a nil reason
// (a plain success carries no reason).
func reasonJSON(reason *models.StatusReason) string {
	if reason == nil {
		return ""
	}

	b, err := json.Marshal(reason)
	if err != nil {
		return ""
	}

	return string(b)
}
