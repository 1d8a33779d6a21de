// Package resolver serves playable CDN URLs for uploaded videos.
//
// A share link stored by the upload stage points at a Google Photos
// page, not at a streamable file. The resolver fetches that page on
// demand, extracts the lh3.googleusercontent.com photo URL and rewrites
// it into a direct video URL. Resolved URLs expire upstream after about
// an hour, so they are cached in the broker with a TTL just under that
// and re-resolved on the next request.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/internal/telemetry"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// cdnPattern extracts the photo CDN URL from a share page.
var cdnPattern = regexp.MustCompile(`https://lh3\.googleusercontent\.com/[^\s"']+`)

// cacheKeyPrefix namespaces CDN cache entries in the broker.
const cacheKeyPrefix = "pixav:cdn:"

// defaultMaxPageBytes bounds share page reads when the configuration
// leaves MaxPageBytes unset.
const defaultMaxPageBytes = 8 << 20

// Resolution sources, in lookup order.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
	SourceLocal    = "local"
	SourceResolved = "resolved"
)

// Errors mapped onto HTTP codes by the handlers.
var (
	// ErrNotUploaded marks a video that exists but has no share link.
	ErrNotUploaded = errors.New("video has not been uploaded yet")

	// ErrUpstream marks a share page fetch or parse failure.
	ErrUpstream = errors.New("share page resolution failed")
)

// Resolution is a resolved playback URL and where it came from.
type Resolution struct {
	VideoID string `json:"video_id"`
	CDNURL  string `json:"cdn_url"`
	Source  string `json:"source"`
}

// Resolver turns share links into direct CDN URLs.
type Resolver struct {
	store        store.Store
	cache        *broker.TTLCache
	client       *http.Client
	sem          chan struct{}
	cacheTTL     time.Duration
	localScheme  string
	localBaseURL string
	maxPageBytes int64
	metrics      metrics.ResolverMetrics
}

// New creates a resolver. localScheme is the share URL prefix the
// upload stage writes in local mode; matching videos resolve to the
// resolver's own /local endpoint instead of the Google CDN. m may be
// nil to disable metrics.
func New(cfg Config, localScheme string, st store.Store, client *broker.Client, m metrics.ResolverMetrics) *Resolver {
	maxPage := int64(cfg.MaxPageBytes)
	if maxPage <= 0 {
		maxPage = defaultMaxPageBytes
	}
	return &Resolver{
		store: st,
		cache: broker.NewTTLCache(client),
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
			},
		},
		sem:          make(chan struct{}, cfg.Concurrency),
		cacheTTL:     cfg.CacheTTL,
		localScheme:  localScheme,
		localBaseURL: "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		maxPageBytes: maxPage,
		metrics:      m,
	}
}

// Resolve returns a playable URL for the video, consulting in order the
// cache, the video row, the local scheme and finally the share page.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (Resolution, error) {
	ctx, span := telemetry.StartResolveSpan(ctx, videoID)
	defer span.End()

	res, err := r.resolve(ctx, videoID)
	if r.metrics != nil {
		r.metrics.RecordResolution(res.Source, err)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
	} else {
		span.SetAttributes(attribute.String(telemetry.AttrResolveSource, res.Source))
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, videoID string) (Resolution, error) {
	key := cacheKeyPrefix + videoID

	cached, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cdn cache read failed", "video_id", videoID, "error", err)
	} else if hit {
		return Resolution{VideoID: videoID, CDNURL: cached, Source: SourceCache}, nil
	}

	video, err := r.store.GetVideo(ctx, videoID)
	if err != nil {
		return Resolution{}, err
	}

	if video.CDNURL != "" {
		r.cachePut(ctx, key, video.CDNURL)
		return Resolution{VideoID: videoID, CDNURL: video.CDNURL, Source: SourceDatabase}, nil
	}

	if video.ShareURL == "" {
		return Resolution{}, fmt.Errorf("%w: %s", ErrNotUploaded, videoID)
	}

	if r.localScheme != "" && strings.HasPrefix(video.ShareURL, r.localScheme) {
		return Resolution{
			VideoID: videoID,
			CDNURL:  r.localBaseURL + "/local/" + videoID,
			Source:  SourceLocal,
		}, nil
	}

	cdnURL, err := r.fetchCDN(ctx, video.ShareURL)
	if err != nil {
		return Resolution{}, err
	}

	// Persisted before the cache write so a restart still finds it.
	if err := r.store.SetVideoCDNURL(ctx, videoID, cdnURL); err != nil {
		return Resolution{}, fmt.Errorf("failed to persist cdn url: %w", err)
	}
	r.cachePut(ctx, key, cdnURL)

	logger.Info("resolved share url",
		"video_id", videoID, "cdn_url", cdnURL)
	return Resolution{VideoID: videoID, CDNURL: cdnURL, Source: SourceResolved}, nil
}

// fetchCDN downloads the share page under the fetch semaphore and
// extracts the direct CDN URL.
func (r *Resolver) fetchCDN(ctx context.Context, shareURL string) (string, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-r.sem }()

	start := time.Now()
	cdnURL, err := r.fetchSharePage(ctx, shareURL)
	if r.metrics != nil {
		r.metrics.ObserveFetch(time.Since(start), err)
	}
	return cdnURL, err
}

// fetchSharePage performs the upstream GET and extracts the CDN URL.
func (r *Resolver) fetchSharePage(ctx context.Context, shareURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: invalid share url %s: %v", ErrUpstream, shareURL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: failed to fetch share page: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: share page returned %d", ErrUpstream, resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, r.maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read share page: %v", ErrUpstream, err)
	}

	match := cdnPattern.Find(page)
	if match == nil {
		return "", fmt.Errorf("%w: no cdn url found in share page", ErrUpstream)
	}
	return directVideoURL(string(match)), nil
}

// cachePut writes through to the shared cache. Failures only cost the
// next request a re-resolve.
func (r *Resolver) cachePut(ctx context.Context, key, value string) {
	if err := r.cache.Set(ctx, key, value, r.cacheTTL); err != nil {
		logger.Warn("cdn cache write failed", "key", key, "error", err)
	}
}

// directVideoURL strips the photo parameters from an extracted CDN URL
// and appends the direct video download parameter.
func directVideoURL(base string) string {
	if i := strings.Index(base, "="); i >= 0 {
		base = base[:i]
	}
	return base + "=dv"
}
