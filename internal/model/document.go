package model

import (
	"mime"
	"strings"
	"time"
)

const (
	FolderPolicy = "policy"
	FolderReport = "report"

	MimePDF = "application/pdf"
)

type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string    `gorm:"size:128;not null;index:idx_documents_owner_uploaded,priority:1" json:"owner_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	MimeType    string    `gorm:"size:128;not null" json:"mime_type"`
	Size        int64     `gorm:"not null" json:"size"`
	FolderClass string    `gorm:"size:16;not null" json:"folder_class"`
	StorageKey  string    `gorm:"size:512;not null" json:"-"`
	UploadedAt  time.Time `gorm:"not null;index:idx_documents_owner_uploaded,priority:2" json:"uploaded_at"`
}

// Indexable reports whether the document feeds the retrieval index.
func (d Document) Indexable() bool {
	return IsPDF(d.MimeType) && d.FolderClass == FolderPolicy
}

// IsPDF matches application/pdf in any case and with any parameters.
// A malformed parameter list still yields the media type.
func IsPDF(mimeType string) bool {
	mediaType, _, _ := mime.ParseMediaType(mimeType)
	return mediaType == MimePDF
}

// NormalizeFolder maps accepted folder names to a folder class.
// The legacy names "insurance" and "reports" are still accepted.
func NormalizeFolder(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case FolderPolicy, "insurance":
		return FolderPolicy, true
	case FolderReport, "reports":
		return FolderReport, true
	default:
		return "", false
	}
}
