package download

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStashServer(t *testing.T, handler http.HandlerFunc) *StashScraper {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewStashScraper(StashConfig{URL: server.URL, Timeout: 2 * time.Second})
}

func TestStashScraperScrape(t *testing.T) {
	scraper := newStashServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)

		var req struct {
			Variables struct {
				Filter struct {
					Q       string `json:"q"`
					PerPage int    `json:"per_page"`
				} `json:"filter"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Big Buck Bunny", req.Variables.Filter.Q)
		assert.Equal(t, 1, req.Variables.Filter.PerPage)

		_, _ = w.Write([]byte(`{"data":{"findScenes":{"count":1,"scenes":[{
			"id":"42","title":"Big Buck Bunny","date":"2008-05-10","details":"a short film",
			"rating100":85,"studio":{"name":"Blender"},
			"tags":[{"name":"animation"},{"name":"open"}],
			"performers":[{"name":"Bunny"}],
			"files":[{"path":"/media/bbb.mp4","duration":596.4,"size":276134947,
				"video_codec":"h264","width":1920,"height":1080}]
		}]}}}`))
	})

	doc, err := scraper.Scrape(context.Background(), "Big Buck Bunny")
	require.NoError(t, err)

	assert.Equal(t, true, doc["found"])
	assert.Equal(t, "42", doc["stash_id"])
	assert.Equal(t, "Big Buck Bunny", doc["title"])
	assert.Equal(t, "2008-05-10", doc["date"])
	assert.Equal(t, 85, doc["rating"])
	assert.Equal(t, "Blender", doc["studio"])
	assert.Equal(t, []string{"animation", "open"}, doc["tags"])
	assert.Equal(t, []string{"Bunny"}, doc["performers"])

	fileInfo, ok := doc["file_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/media/bbb.mp4", fileInfo["path"])
	assert.Equal(t, "h264", fileInfo["codec"])
	assert.Equal(t, 1920, fileInfo["width"])
}

func TestStashScraperScrapeNoMatch(t *testing.T) {
	scraper := newStashServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"findScenes":{"count":0,"scenes":[]}}}`))
	})

	doc, err := scraper.Scrape(context.Background(), "does not exist")
	require.NoError(t, err)
	assert.Equal(t, false, doc["found"])
	assert.Equal(t, "does not exist", doc["title"])
}

func TestStashScraperScrapeServerError(t *testing.T) {
	scraper := newStashServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := scraper.Scrape(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
