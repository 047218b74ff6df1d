package domain

import (
	"encoding/json"
	"strings"
)

// Tag labels tasks. Challenge tags are owned by a challenge and cannot be edited locally.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Challenge bool   `json:"challenge"`
}

type tagPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Challenge bool   `json:"challenge"`
}

// ParseTag validates a raw tag record.
func ParseTag(raw json.RawMessage) (Tag, error) {
	var p tagPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Tag{}, WrapError(ErrCodeValidation, "decode tag", err)
	}
	if p.ID == "" {
		return Tag{}, Validationf("tag: missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return Tag{}, Validationf("tag %s: empty name", p.ID)
	}
	return Tag{ID: p.ID, Name: p.Name, Challenge: p.Challenge}, nil
}
