package model

import "strings"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior message of a conversation. Turns are supplied by the
// caller on every chat request and never stored.
type Turn struct {
	Role            string   `json:"role"`
	Text            string   `json:"text"`
	AttachmentNames []string `json:"attachmentNames,omitempty"`
}

func NormalizeRole(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant, "model":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// InlineContent is a base64 attachment handed to the generation service.
type InlineContent struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Name     string `json:"name,omitempty"`
}

// IndexJob asks the background indexer to process one stored document.
type IndexJob struct {
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
}
