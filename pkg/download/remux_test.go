package download

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeOutputPath(t *testing.T) {
	cases := []struct {
		input  string
		outDir string
		want   string
	}{
		{"/downloads/movie.mkv", "/out", filepath.Join("/out", "movie.mp4")},
		{"/downloads/show.s01e01.avi", "/out", filepath.Join("/out", "show.s01e01.mp4")},
		{"/downloads/noext", "/out", filepath.Join("/out", "noext.mp4")},
		{"movie.webm", ".", filepath.Join(".", "movie.mp4")},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MakeOutputPath(tc.input, tc.outDir))
	}
}

func TestTailString(t *testing.T) {
	assert.Equal(t, "short", tailString("short", 500))
	long := strings.Repeat("x", 600) + "tail"
	got := tailString(long, 500)
	assert.Len(t, got, 500)
	assert.True(t, strings.HasSuffix(got, "tail"))
}
