package models

import (
	"fmt"
	"time"
)

// StorageHealth represents the health of an account's storage bucket.
type StorageHealth string

const (
	StorageHealthy  StorageHealth = "healthy"
	StorageDegraded StorageHealth = "degraded"
	StorageFull     StorageHealth = "full"
	StorageOffline  StorageHealth = "offline"
)

// IsValid checks if the value is a known StorageHealth.
func (h StorageHealth) IsValid() bool {
	switch h {
	case StorageHealthy, StorageDegraded, StorageFull, StorageOffline:
		return true
	}
	return false
}

// StorageInstance is the storage bucket behind an upload account.
// Usage accrues alongside the account's daily counter; health flips to
// full once used bytes reach capacity.
type StorageInstance struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	AccountID     string        `gorm:"not null;size:36;index" json:"account_id"`
	CapacityBytes int64         `gorm:"not null;default:0" json:"capacity_bytes"`
	UsedBytes     int64         `gorm:"not null;default:0" json:"used_bytes"`
	Health        StorageHealth `gorm:"not null;default:healthy;size:20" json:"health"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for StorageInstance.
func (StorageInstance) TableName() string {
	return "storage_instances"
}

// Full reports whether the instance has no remaining capacity.
func (s *StorageInstance) Full() bool {
	return s.CapacityBytes > 0 && s.UsedBytes >= s.CapacityBytes
}

// Validate checks the invariants a storage instance row must satisfy.
func (s *StorageInstance) Validate() error {
	if s.AccountID == "" {
		return fmt.Errorf("storage instance requires an account_id")
	}
	if !s.Health.IsValid() {
		return fmt.Errorf("invalid storage health %q", s.Health)
	}
	if s.CapacityBytes < 0 || s.UsedBytes < 0 {
		return fmt.Errorf("storage byte counters must not be negative")
	}
	return nil
}
