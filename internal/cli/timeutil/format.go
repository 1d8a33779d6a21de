// Package timeutil formats timestamps and durations for CLI listings.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is the layout for local timestamps in command output,
// e.g. account last-used and cooldown columns.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatUptime rewrites a Go duration string like "72h30m15s" as
// "3d 0h 30m 15s". Unparseable input is returned unchanged, since the
// resolver's health payload is the source and may predate this format.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatTime renders an RFC3339 timestamp in local time, or returns the
// input unchanged if it does not parse.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatOptional renders a nullable timestamp column, using "-" for nil.
func FormatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}
