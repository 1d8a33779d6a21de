package models

import (
	"fmt"
	"time"
)

// DefaultDailyQuotaBytes is the per-account upload budget for one
// quota day (15 GiB).
const DefaultDailyQuotaBytes int64 = 15 << 30

// AccountStatus represents the scheduling state of an upload account.
type AccountStatus string

const (
	AccountActive     AccountStatus = "active"
	AccountCooldown   AccountStatus = "cooldown"
	AccountBanned     AccountStatus = "banned"
	AccountUnverified AccountStatus = "unverified"
)

// IsValid checks if the status is a known AccountStatus.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountActive, AccountCooldown, AccountBanned, AccountUnverified:
		return true
	}
	return false
}

// Account is a credential rotated by the upload stage. The scheduler
// owns the quota, cooldown and lease fields; nothing else writes them.
type Account struct {
	ID                 string        `gorm:"primaryKey;size:36" json:"id"`
	Email              string        `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Status             AccountStatus `gorm:"not null;default:active;size:20;index" json:"status"`
	LastUsedAt         *time.Time    `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CooldownUntil      *time.Time    `gorm:"column:cooldown_until" json:"cooldown_until,omitempty"`
	LeaseExpiresAt     *time.Time    `gorm:"column:lease_expires_at" json:"lease_expires_at,omitempty"`
	DailyUploadedBytes int64         `gorm:"not null;default:0" json:"daily_uploaded_bytes"`
	DailyQuotaBytes    int64         `gorm:"not null;default:16106127360" json:"daily_quota_bytes"`
	QuotaResetAt       *time.Time    `gorm:"column:quota_reset_at" json:"quota_reset_at,omitempty"`
	CreatedAt          time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Account.
func (Account) TableName() string {
	return "accounts"
}

// LeaseHeld reports whether another worker currently holds this account.
func (a *Account) LeaseHeld(now time.Time) bool {
	return a.LeaseExpiresAt != nil && a.LeaseExpiresAt.After(now)
}

// QuotaExhausted reports whether the daily quota is spent for the
// current quota day.
func (a *Account) QuotaExhausted(now time.Time) bool {
	if a.QuotaResetAt != nil && !a.QuotaResetAt.After(now) {
		return false // day rolled over, counter is stale
	}
	return a.DailyUploadedBytes >= a.DailyQuotaBytes
}

// Selectable reports whether the scheduler may hand this account out.
func (a *Account) Selectable(now time.Time) bool {
	if a.Status != AccountActive {
		return false
	}
	if a.CooldownUntil != nil && a.CooldownUntil.After(now) {
		return false
	}
	if a.LeaseHeld(now) {
		return false
	}
	return !a.QuotaExhausted(now)
}

// Validate checks the invariants an account row must satisfy.
func (a *Account) Validate() error {
	if a.Email == "" {
		return fmt.Errorf("account email is required")
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("invalid account status %q", a.Status)
	}
	if a.DailyQuotaBytes < 0 {
		return fmt.Errorf("daily_quota_bytes must not be negative")
	}
	return nil
}

// NextDayBoundary returns midnight UTC of the day after now. Quota
// counters reset at this boundary.
func NextDayBoundary(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
