package storage

import (
	"fmt"

	"fmconsole/internal/model"
)

// FileMetadata is the audit-log description of a submitted file
type FileMetadata struct {
	Slot   string `json:"slot"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	MIME   string `json:"mime"`
	SHA256 string `json:"sha256,omitempty"`
}

// ValidateFileMetadata validates that file metadata has required fields
func ValidateFileMetadata(meta FileMetadata) error {
	if meta.Name == "" {
		return fmt.Errorf("file name is required")
	}
	if meta.Size < 0 {
		return fmt.Errorf("file size must be non-negative")
	}
	return nil
}

// ToMap converts FileMetadata to a map for storage
func (m FileMetadata) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"slot": m.Slot,
		"name": m.Name,
		"size": m.Size,
		"mime": m.MIME,
	}
	if m.SHA256 != "" {
		result["sha256"] = m.SHA256
	}
	return result
}

// DescribeFiles turns staged attachments keyed by slot into audit metadata, skipping
// empty slots.
func DescribeFiles(files map[string]*model.Attachment) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(files))
	for slot, a := range files {
		if a == nil {
			continue
		}
		meta := FileMetadata{Slot: slot, Name: a.Name, Size: a.Size, MIME: a.MIME, SHA256: a.SHA256}
		if err := ValidateFileMetadata(meta); err != nil {
			return nil, fmt.Errorf("invalid file metadata for %s: %w", slot, err)
		}
		out = append(out, meta.ToMap())
	}
	return out, nil
}
