package core

import (
	"bytes"
	"encoding/json"
)

// CredentialBundle is the opaque authorization artifact the backend returns
// after OAuth completes. Provider tags which integration issued it.
type CredentialBundle struct {
	Provider string          `json:"type"`
	Raw      json.RawMessage `json:"credentials"`
}

func NewCredentialBundle(provider string, raw []byte) CredentialBundle {
	return CredentialBundle{Provider: provider, Raw: append(json.RawMessage(nil), raw...)}
}

func (b CredentialBundle) IsEmpty() bool {
	return IsEmptyJSON(b.Raw)
}

// Encoded returns the bundle body exactly as the load endpoint expects it.
func (b CredentialBundle) Encoded() string {
	return string(bytes.TrimSpace(b.Raw))
}

// IsEmptyJSON reports whether raw is absent or a falsy JSON value:
// null, false, 0, "", {} or [].
func IsEmptyJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return false
	}
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case float64:
		return val == 0
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}
