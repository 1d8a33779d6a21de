package bytesize

import (
	"testing"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		// Plain numbers
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"plain large", "16106127360", 16106127360, false},

		// Bytes suffix
		{"bytes B", "1024B", 1024, false},
		{"bytes b lowercase", "1024b", 1024, false},

		// Binary units (x1024)
		{"kibibytes Ki", "1Ki", KiB, false},
		{"kibibytes KiB", "1KiB", KiB, false},
		{"mebibytes Mi", "100Mi", 100 * MiB, false},
		{"mebibytes MiB", "100MiB", 100 * MiB, false},
		{"gibibytes Gi", "1Gi", GiB, false},
		{"gibibytes GiB", "1GiB", GiB, false},
		{"tebibytes Ti", "1Ti", TiB, false},
		{"tebibytes TiB", "1TiB", TiB, false},

		// Decimal units (x1000)
		{"kilobytes K", "1K", KB, false},
		{"kilobytes KB", "1KB", KB, false},
		{"megabytes M", "100M", 100 * MB, false},
		{"megabytes MB", "100MB", 100 * MB, false},
		{"gigabytes G", "1G", GB, false},
		{"gigabytes GB", "1GB", GB, false},
		{"terabytes T", "1T", TB, false},
		{"terabytes TB", "1TB", TB, false},

		// Case insensitivity
		{"lowercase gi", "1gi", GiB, false},
		{"uppercase GI", "1GI", GiB, false},

		// Whitespace handling
		{"leading space", "  1Gi", GiB, false},
		{"trailing space", "1Gi  ", GiB, false},
		{"space between", "1 Gi", GiB, false},

		// Fractions
		{"float mebibytes", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"float gibibytes", "0.5Gi", ByteSize(0.5 * float64(GiB)), false},

		// The shapes operators actually type
		{"daily quota", "15Gi", 15 * GiB, false},
		{"page cap", "8Mi", 8 * MiB, false},
		{"decimal quota", "2GB", 2 * GB, false},

		// Error cases
		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"invalid unit", "1Xi", 0, true},
		{"negative number", "-1Gi", 0, true},
		{"no number", "Gi", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSize_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"simple", "1Gi", GiB, false},
		{"numeric", "1024", 1024, false},
		{"invalid", "invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ByteSize
			err := b.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ByteSize.UnmarshalText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && b != tt.want {
				t.Errorf("ByteSize.UnmarshalText(%q) = %d, want %d", tt.input, b, tt.want)
			}
		})
	}
}

func TestByteSize_String(t *testing.T) {
	tests := []struct {
		name  string
		input ByteSize
		want  string
	}{
		{"bytes", 512, "512B"},
		{"kibibytes", 2 * KiB, "2.00KiB"},
		{"mebibytes", 100 * MiB, "100.00MiB"},
		{"gibibytes", 1 * GiB, "1.00GiB"},
		{"tebibytes", 2 * TiB, "2.00TiB"},
		{"fractional gibibytes", ByteSize(1.5 * float64(GiB)), "1.50GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.String(); got != tt.want {
				t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromInt64(t *testing.T) {
	if got := FromInt64(15 << 30); got != 15*GiB {
		t.Errorf("FromInt64(15<<30) = %d, want %d", got, 15*GiB)
	}
	if got := FromInt64(0); got != 0 {
		t.Errorf("FromInt64(0) = %d, want 0", got)
	}
	if got := FromInt64(-42); got != 0 {
		t.Errorf("FromInt64(-42) = %d, want 0", got)
	}
}

func TestByteSize_Conversions(t *testing.T) {
	size := 1 * GiB

	if got := size.Uint64(); got != 1024*1024*1024 {
		t.Errorf("ByteSize.Uint64() = %d, want %d", got, 1024*1024*1024)
	}

	if got := size.Int64(); got != 1024*1024*1024 {
		t.Errorf("ByteSize.Int64() = %d, want %d", got, 1024*1024*1024)
	}
}

func TestByteSize_Constants(t *testing.T) {
	if KiB != 1024 {
		t.Errorf("KiB = %d, want 1024", KiB)
	}
	if MiB != 1024*1024 {
		t.Errorf("MiB = %d, want %d", MiB, 1024*1024)
	}
	if GiB != 1024*1024*1024 {
		t.Errorf("GiB = %d, want %d", GiB, 1024*1024*1024)
	}
	if TiB != 1024*1024*1024*1024 {
		t.Errorf("TiB = %d, want %d", TiB, 1024*1024*1024*1024)
	}

	if KB != 1000 {
		t.Errorf("KB = %d, want 1000", KB)
	}
	if MB != 1000*1000 {
		t.Errorf("MB = %d, want %d", MB, 1000*1000)
	}
	if GB != 1000*1000*1000 {
		t.Errorf("GB = %d, want %d", GB, 1000*1000*1000)
	}
	if TB != 1000*1000*1000*1000 {
		t.Errorf("TB = %d, want %d", TB, 1000*1000*1000*1000)
	}
}
