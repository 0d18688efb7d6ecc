package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", &storage.SerializationError{Operation: "marshal tags", Cause: err}
	}
	return string(data), nil
}

func unmarshalTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, &storage.SerializationError{Operation: "unmarshal tags", Cause: err}
	}
	return tags, nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", &storage.SerializationError{Operation: "marshal metadata", Cause: err}
	}
	return string(data), nil
}

func unmarshalMetadata(raw string) (map[string]any, error) {
	meta := map[string]any{}
	if raw == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, &storage.SerializationError{Operation: "unmarshal metadata", Cause: err}
	}
	return meta, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// vectorArg maps a nil vector to SQL NULL.
func vectorArg(v []float32) any {
	if v == nil {
		return nil
	}
	return memory.EncodeVector(v)
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
