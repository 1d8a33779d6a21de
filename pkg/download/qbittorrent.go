package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// readBodyPrefix reads at most limit bytes of the response body.
func readBodyPrefix(resp *http.Response, limit int64) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return ""
	}
	return string(data)
}

// infoHashPattern matches the btih value of a magnet URI, either 40-char
// hex or 32-char base32.
var infoHashPattern = regexp.MustCompile(`btih:([a-fA-F0-9]{40}|[a-zA-Z2-7]{32})`)

// ExtractInfoHash returns the lowercased info hash of a magnet URI, or
// an empty string when none is present.
func ExtractInfoHash(magnetURI string) string {
	match := infoHashPattern.FindStringSubmatch(magnetURI)
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

// QBitClient talks to the qBittorrent Web API.
//
// Each operation authenticates first and carries the session cookie on
// subsequent requests, matching the API's cookie-based auth model.
type QBitClient struct {
	baseURL      string
	username     string
	password     string
	downloadDir  string
	pollInterval time.Duration
	httpClient   *http.Client
}

// NewQBitClient creates a qBittorrent client from config.
func NewQBitClient(cfg TorrentConfig, downloadDir string) *QBitClient {
	return &QBitClient{
		baseURL:      strings.TrimSuffix(cfg.URL, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		downloadDir:  downloadDir,
		pollInterval: cfg.PollInterval,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// login authenticates and returns the session cookie value.
func (c *QBitClient) login(ctx context.Context) (string, error) {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qbittorrent login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := readBodyPrefix(resp, 200)
	if strings.ToUpper(strings.TrimSpace(body)) != "OK." {
		return "", fmt.Errorf("qbittorrent login failed: %s", body)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			return cookie.Value, nil
		}
	}
	return "", nil
}

// doForm posts a form to an API path with the session cookie attached.
func (c *QBitClient) doForm(ctx context.Context, sid, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: sid})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qbittorrent request failed: %w", err)
	}
	return resp, nil
}

// Healthcheck verifies API reachability and authentication. Returns the
// qBittorrent version string.
func (c *QBitClient) Healthcheck(ctx context.Context) (string, error) {
	sid, err := c.login(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v2/app/version", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create version request: %w", err)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: sid})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qbittorrent health check request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("qbittorrent health check failed: %s does not expose /api/v2/app/version", c.baseURL)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("qbittorrent health check failed: unauthorized even after login")
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("qbittorrent health check failed: status %d", resp.StatusCode)
	}

	version := strings.TrimSpace(readBodyPrefix(resp, 200))
	if version == "" || strings.Contains(strings.ToLower(version), "<html") {
		return "", fmt.Errorf("qbittorrent health check failed: invalid version response body")
	}
	return version, nil
}

// AddMagnet submits a magnet URI and returns its info hash.
func (c *QBitClient) AddMagnet(ctx context.Context, magnetURI string) (string, error) {
	hash := ExtractInfoHash(magnetURI)
	if hash == "" {
		return "", fmt.Errorf("cannot extract hash from magnet uri: %.80s", magnetURI)
	}

	sid, err := c.login(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.doForm(ctx, sid, "/api/v2/torrents/add", url.Values{
		"urls":     {magnetURI},
		"savepath": {c.downloadDir},
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body := readBodyPrefix(resp, 200)
	if resp.StatusCode != http.StatusOK || strings.Contains(strings.ToLower(body), "fails") {
		return "", fmt.Errorf("qbittorrent add_magnet failed: %s", body)
	}

	logger.Info("added torrent", "hash", hash)
	return hash, nil
}

// torrentInfo is the subset of /api/v2/torrents/info we consume.
type torrentInfo struct {
	Name        string  `json:"name"`
	Progress    float64 `json:"progress"`
	State       string  `json:"state"`
	ContentPath string  `json:"content_path"`
	SavePath    string  `json:"save_path"`
}

// WaitComplete polls until the torrent finishes and returns the path of
// the downloaded content.
func (c *QBitClient) WaitComplete(ctx context.Context, hash string, timeout time.Duration) (string, error) {
	sid, err := c.login(ctx)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		info, err := c.fetchTorrentInfo(ctx, sid, hash)
		if err != nil {
			return "", err
		}

		if info.Progress >= 1.0 {
			result := info.ContentPath
			if result == "" {
				savePath := info.SavePath
				if savePath == "" {
					savePath = c.downloadDir
				}
				result = filepath.Join(savePath, info.Name)
			}
			logger.Info("torrent complete", "hash", hash, "path", result)
			return result, nil
		}

		if info.State == "error" || info.State == "missingFiles" {
			return "", fmt.Errorf("torrent %s in error state: %s", hash, info.State)
		}

		logger.Debug("torrent progress",
			"hash", hash,
			"progress", fmt.Sprintf("%.1f%%", info.Progress*100),
			"state", info.State)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return "", fmt.Errorf("torrent %s download timed out after %s", hash, timeout)
}

// fetchTorrentInfo fetches the status of a single torrent.
func (c *QBitClient) fetchTorrentInfo(ctx context.Context, sid, hash string) (*torrentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v2/torrents/info?hashes="+url.QueryEscape(hash), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create info request: %w", err)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: sid})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qbittorrent polling failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent polling failed: status %d", resp.StatusCode)
	}

	var torrents []torrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, fmt.Errorf("qbittorrent polling failed: %w", err)
	}
	if len(torrents) == 0 {
		return nil, fmt.Errorf("torrent %s not found in qbittorrent", hash)
	}
	return &torrents[0], nil
}

// DeleteTorrent removes a torrent and optionally its files.
func (c *QBitClient) DeleteTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	sid, err := c.login(ctx)
	if err != nil {
		return err
	}

	resp, err := c.doForm(ctx, sid, "/api/v2/torrents/delete", url.Values{
		"hashes":      {hash},
		"deleteFiles": {fmt.Sprintf("%t", deleteFiles)},
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qbittorrent delete failed: %s", readBodyPrefix(resp, 200))
	}

	logger.Info("deleted torrent", "hash", hash, "files", deleteFiles)
	return nil
}
