package sqlstore

import (
	"encoding/json"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func syncRunHandlers() repository.ModelHandlers[*syncRunRecord] {
	return repository.ModelHandlers[*syncRunRecord]{
		NewRecord: func() *syncRunRecord {
			return &syncRunRecord{}
		},
		GetID: func(record *syncRunRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *syncRunRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *syncRunRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func syncDecisionHandlers() repository.ModelHandlers[*syncDecisionRecord] {
	return repository.ModelHandlers[*syncDecisionRecord]{
		NewRecord: func() *syncDecisionRecord {
			return &syncDecisionRecord{}
		},
		GetID: func(record *syncDecisionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *syncDecisionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *syncDecisionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// encodeValue serializes an arbitrary decision value as JSON text so the
// ledger stays queryable across drivers. Nil stays empty.
func encodeValue(value any) string {
	if value == nil {
		return ""
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func decodeValue(text string) any {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return text
	}
	return value
}
