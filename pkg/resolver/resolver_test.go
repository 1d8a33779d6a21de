package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectVideoURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips photo parameters",
			in:   "https://lh3.googleusercontent.com/pw/ABC123=w1920-h1080-no",
			want: "https://lh3.googleusercontent.com/pw/ABC123=dv",
		},
		{
			name: "bare url gains the parameter",
			in:   "https://lh3.googleusercontent.com/pw/ABC123",
			want: "https://lh3.googleusercontent.com/pw/ABC123=dv",
		},
		{
			name: "only the first separator counts",
			in:   "https://lh3.googleusercontent.com/pw/ABC=w100=h100",
			want: "https://lh3.googleusercontent.com/pw/ABC=dv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, directVideoURL(tt.in))
		})
	}
}

func TestCDNPatternExtraction(t *testing.T) {
	page := `<html><script>var u = "https://lh3.googleusercontent.com/pw/FIRST=w640";
var v = "https://lh3.googleusercontent.com/pw/SECOND";</script></html>`

	match := cdnPattern.FindString(page)
	assert.Equal(t, "https://lh3.googleusercontent.com/pw/FIRST=w640", match,
		"match must stop at the closing quote and take the first occurrence")

	assert.Empty(t, cdnPattern.FindString("<html>no cdn link here</html>"))
}
