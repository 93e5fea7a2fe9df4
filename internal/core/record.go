package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

const MissingValue = "-"

// Record is one item returned by a provider load call.
type Record struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	ParentID         string `json:"parent_id,omitempty"`
	ParentPathOrName string `json:"parent_path_or_name,omitempty"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID               json.RawMessage `json:"id"`
		Name             json.RawMessage `json:"name"`
		Type             json.RawMessage `json:"type"`
		ParentID         json.RawMessage `json:"parent_id"`
		ParentPathOrName json.RawMessage `json:"parent_path_or_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		ID:               scalarString(raw.ID),
		Name:             scalarString(raw.Name),
		Type:             scalarString(raw.Type),
		ParentID:         scalarString(raw.ParentID),
		ParentPathOrName: scalarString(raw.ParentPathOrName),
	}
	return nil
}

// Cells returns the five display columns with placeholders for missing values.
func (r Record) Cells() []string {
	return []string{
		orMissing(r.ID),
		orMissing(r.Name),
		orMissing(r.Type),
		orMissing(r.ParentID),
		orMissing(r.ParentPathOrName),
	}
}

var RecordColumns = []string{"ID", "Name", "Type", "Parent ID", "Parent Name"}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return MissingValue
	}
	return s
}

// scalarString renders strings, numbers and booleans as text; null and
// structured values become "".
func scalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return string(trimmed)
	}
}
