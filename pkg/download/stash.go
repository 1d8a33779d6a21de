package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// findScenesQuery searches Stash for the best scene matching a title.
const findScenesQuery = `
query FindScenes($filter: FindFilterType!) {
    findScenes(filter: $filter) {
        count
        scenes {
            id
            title
            date
            details
            rating100
            organized
            studio { name }
            tags { name }
            performers { name }
            files { path duration size video_codec width height }
        }
    }
}`

// StashScraper looks up media metadata through the Stash GraphQL API.
type StashScraper struct {
	baseURL    string
	httpClient *http.Client
}

// NewStashScraper creates a scraper from config.
func NewStashScraper(cfg StashConfig) *StashScraper {
	return &StashScraper{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type stashScene struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Date       string      `json:"date"`
	Details    string      `json:"details"`
	Rating100  *int        `json:"rating100"`
	Studio     *stashName  `json:"studio"`
	Tags       []stashName `json:"tags"`
	Performers []stashName `json:"performers"`
	Files      []stashFile `json:"files"`
}

type stashName struct {
	Name string `json:"name"`
}

type stashFile struct {
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
	VideoCodec string  `json:"video_codec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

type stashResponse struct {
	Data struct {
		FindScenes struct {
			Count  int          `json:"count"`
			Scenes []stashScene `json:"scenes"`
		} `json:"findScenes"`
	} `json:"data"`
}

// Scrape searches Stash for metadata matching a title. When nothing
// matches it returns a document with found=false rather than an error.
func (s *StashScraper) Scrape(ctx context.Context, title string) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"query": findScenesQuery,
		"variables": map[string]any{
			"filter": map[string]any{
				"q":         title,
				"per_page":  1,
				"sort":      "relevance",
				"direction": "DESC",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stash query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create stash request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stash request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stash returned %d: %s", resp.StatusCode, readBodyPrefix(resp, 200))
	}

	var parsed stashResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode stash response: %w", err)
	}

	scenes := parsed.Data.FindScenes.Scenes
	if len(scenes) == 0 {
		logger.Debug("no stash scenes found", "title", title)
		return map[string]any{"found": false, "title": title}, nil
	}

	scene := scenes[0]
	sceneTitle := scene.Title
	if sceneTitle == "" {
		sceneTitle = title
	}

	result := map[string]any{
		"found":      true,
		"stash_id":   scene.ID,
		"title":      sceneTitle,
		"date":       scene.Date,
		"details":    scene.Details,
		"tags":       names(scene.Tags),
		"performers": names(scene.Performers),
	}
	if scene.Rating100 != nil {
		result["rating"] = *scene.Rating100
	}
	if scene.Studio != nil {
		result["studio"] = scene.Studio.Name
	}
	if len(scene.Files) > 0 {
		f := scene.Files[0]
		result["file_info"] = map[string]any{
			"path":     f.Path,
			"duration": f.Duration,
			"size":     f.Size,
			"codec":    f.VideoCodec,
			"width":    f.Width,
			"height":   f.Height,
		}
	}

	logger.Info("stash metadata found", "title", title, "stash_id", scene.ID)
	return result, nil
}

func names(items []stashName) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}
