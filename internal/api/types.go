package api

import (
	"encoding/json"
	"strings"
)

// Chat response discriminators.
const (
	TypeValidationError = "validation_error"
	TypeNextQuestion    = "next_question"
	TypeComplete        = "complete"
)

// UploadResponse is returned by POST /api/upload. Older servers omit
// Progress and only send TotalPlaceholders.
type UploadResponse struct {
	SessionID          string `json:"session_id"`
	CurrentPlaceholder string `json:"current_placeholder"`
	FirstQuestion      string `json:"first_question"`
	Progress           string `json:"progress,omitempty"`
	TotalPlaceholders  int    `json:"total_placeholders,omitempty"`
}

type ChatRequest struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	Placeholder string `json:"placeholder"`
}

// ChatResponse is a tagged union keyed by Type. Only the fields of the
// active variant are meaningful.
type ChatResponse struct {
	Type string `json:"type"`

	// validation_error, complete
	Message string `json:"message,omitempty"`

	// next_question (validation_error may echo these too)
	CurrentPlaceholder string `json:"current_placeholder,omitempty"`
	Question           string `json:"question,omitempty"`
	Progress           string `json:"progress,omitempty"`

	// complete
	TotalCollected int `json:"total_collected,omitempty"`
}

type GenerateResponse struct {
	CollectedValues map[string]string `json:"collected_values"`
	PreviewHTML     string            `json:"preview_html"`
	Filename        string            `json:"filename,omitempty"`
}

// UpdateResponse is returned by POST /api/update-values. CollectedValues is
// nil when the server did not send a snapshot.
type UpdateResponse struct {
	PreviewHTML     string            `json:"preview_html"`
	CollectedValues map[string]string `json:"collected_values,omitempty"`
	Message         string            `json:"message,omitempty"`
}

// errorBody is the server failure envelope. detail is usually a string but
// request validation failures carry a list of objects.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func (b errorBody) text() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(b.Detail, &items); err == nil {
		var msgs []string
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(b.Detail)
}
