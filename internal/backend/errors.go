package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// maxBodyWidth caps a non-JSON error body quoted in messages.
const maxBodyWidth = 200

// APIError is a non-2xx backend response. Detail carries the backend's
// "detail" field verbatim when present.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Body != "" {
		return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("backend returned HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	text := strings.TrimSpace(string(body))

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		apiErr.Detail = detailText(payload.Detail)
	}
	if apiErr.Detail == "" {
		apiErr.Body = ansi.Truncate(text, maxBodyWidth, "...")
	}
	return apiErr
}

// detailText renders a string detail as-is and anything else (FastAPI
// validation lists) as compact JSON.
func detailText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(raw)
}

// DetailOr returns the backend detail carried by err, or fallback when err
// did not come from a backend response with a detail.
func DetailOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
