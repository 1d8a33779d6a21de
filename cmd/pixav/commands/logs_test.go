package commands

import (
	"testing"
	"time"
)

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want time.Time
	}{
		{
			name: "rfc3339 prefix",
			line: "2026-01-15T10:30:45Z INFO dispatched task task_id=abc",
			want: time.Date(2026, 1, 15, 10, 30, 45, 0, time.UTC),
		},
		{
			name: "json time field",
			line: `{"time":"2026-01-15T10:30:45.123Z","level":"INFO","msg":"tick complete"}`,
			want: time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC),
		},
		{
			name: "no timestamp",
			line: "plain text without any timestamp",
			want: time.Time{},
		},
		{
			name: "short line",
			line: "short",
			want: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTimestamp(tt.line)
			if !got.Equal(tt.want) {
				t.Errorf("extractTimestamp(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}
