// Package models defines the persistent entities of the ingestion
// pipeline: videos moving through stages, the tasks that carry them,
// the upload accounts rotated by the scheduler, and the storage
// instances bound to those accounts.
//
// All enums are serialized as lowercase strings both in the store and
// in queue payloads. Identifiers are UUID strings.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// VideoStatus represents where a video sits in the pipeline.
type VideoStatus string

const (
	VideoDiscovered  VideoStatus = "discovered"
	VideoDownloading VideoStatus = "downloading"
	VideoDownloaded  VideoStatus = "downloaded"
	VideoUploading   VideoStatus = "uploading"
	VideoAvailable   VideoStatus = "available"
	VideoExpired     VideoStatus = "expired"
	VideoFailed      VideoStatus = "failed"
)

// IsValid checks if the status is a known VideoStatus.
func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoDiscovered, VideoDownloading, VideoDownloaded,
		VideoUploading, VideoAvailable, VideoExpired, VideoFailed:
		return true
	}
	return false
}

// Video is the unit of content tracked through the pipeline.
//
// The info hash (lowercased hex) is the dedup key: two discoveries of
// the same magnet map to one video row. local_path is populated by the
// download stage, share_url by the upload stage and cdn_url lazily by
// the resolver.
type Video struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Title        string      `gorm:"not null;size:512" json:"title"`
	MagnetURI    string      `gorm:"column:magnet_uri" json:"magnet_uri,omitempty"`
	InfoHash     string      `gorm:"size:40;index" json:"info_hash,omitempty"`
	LocalPath    string      `gorm:"column:local_path" json:"local_path,omitempty"`
	ShareURL     string      `gorm:"column:share_url" json:"share_url,omitempty"`
	CDNURL       string      `gorm:"column:cdn_url" json:"cdn_url,omitempty"`
	Status       VideoStatus `gorm:"not null;default:discovered;size:20;index" json:"status"`
	MetadataJSON string      `gorm:"column:metadata_json" json:"metadata_json,omitempty"`
	TagsJSON     string      `gorm:"column:tags_json" json:"tags_json,omitempty"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// Tags decodes the ordered tag list. Returns nil when unset.
func (v *Video) Tags() []string {
	if v.TagsJSON == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(v.TagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

// SetTags encodes the ordered tag list.
func (v *Video) SetTags(tags []string) error {
	if len(tags) == 0 {
		v.TagsJSON = ""
		return nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	v.TagsJSON = string(data)
	return nil
}

// Metadata decodes the free-form metadata document. Returns nil when unset.
func (v *Video) Metadata() map[string]any {
	if v.MetadataJSON == "" {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(v.MetadataJSON), &doc); err != nil {
		return nil
	}
	return doc
}

// SetMetadata encodes the free-form metadata document.
func (v *Video) SetMetadata(doc map[string]any) error {
	if len(doc) == 0 {
		v.MetadataJSON = ""
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	v.MetadataJSON = string(data)
	return nil
}

// Validate checks the invariants a video row must satisfy.
func (v *Video) Validate() error {
	if v.Title == "" {
		return fmt.Errorf("video title is required")
	}
	if !v.Status.IsValid() {
		return fmt.Errorf("invalid video status %q", v.Status)
	}
	if v.Status == VideoAvailable && v.ShareURL == "" {
		return fmt.Errorf("available video requires a share_url")
	}
	switch v.Status {
	case VideoDownloaded, VideoUploading, VideoAvailable:
		if v.LocalPath == "" {
			return fmt.Errorf("video in status %q requires a local_path", v.Status)
		}
	}
	return nil
}
