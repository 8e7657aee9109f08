package domain

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// OptionRecord is a named setting scoped to one organization.
type OptionRecord struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Key            string
	Value          json.RawMessage
}

// Persisted returns true once the record has been stored.
func (o *OptionRecord) Persisted() bool {
	return o.ID != uuid.Nil
}

// TrackedFields returns the storable fields of the record.
func (o *OptionRecord) TrackedFields() map[string]any {
	return map[string]any{
		"key":   o.Key,
		"value": compactJSON(o.Value),
	}
}

// compactJSON normalizes whitespace so that equal documents compare equal.
func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
