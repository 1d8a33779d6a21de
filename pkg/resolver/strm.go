package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// StrmWriter emits .strm library files: one-line text files holding the
// resolver's /stream URL for a video. Media servers such as Jellyfin
// and Kodi treat a directory of these as a regular library, so exported
// videos play through the resolver without being stored locally.
type StrmWriter struct {
	baseURL string
	dir     string
}

// NewStrmWriter creates a writer rooted at dir. baseURL is the
// externally reachable resolver address, trailing slash tolerated.
func NewStrmWriter(baseURL, dir string) *StrmWriter {
	return &StrmWriter{
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
	}
}

// Write emits the .strm file for one video and returns its path. The
// filename is "<code> - <title>.strm" when the video's metadata carries
// a code, "<title>.strm" otherwise; a video with no usable title falls
// back to its id.
func (w *StrmWriter) Write(video *models.Video) (string, error) {
	name := sanitizeFilename(video.Title)
	if name == "" {
		name = video.ID
	}
	if code := sanitizeFilename(metadataCode(video)); code != "" {
		name = code + " - " + name
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create strm directory: %w", err)
	}

	path := filepath.Join(w.dir, name+".strm")
	streamURL := w.baseURL + "/stream/" + video.ID
	if err := os.WriteFile(path, []byte(streamURL), 0644); err != nil {
		return "", fmt.Errorf("failed to write strm file: %w", err)
	}
	return path, nil
}

// metadataCode pulls the content code (for example "ABC-123") out of
// the video's metadata document when the scraper recorded one.
func metadataCode(video *models.Video) string {
	doc := video.Metadata()
	if doc == nil {
		return ""
	}
	code, _ := doc["code"].(string)
	return code
}

// sanitizeFilename keeps letters, digits and a small set of filename
// punctuation, and strips parent directory sequences.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" .-_()[]", r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(b.String(), "..", ""))
}
