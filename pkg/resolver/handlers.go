package resolver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/mediastore"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// Handler serves the resolver HTTP surface.
type Handler struct {
	resolver    *Resolver
	store       store.Store
	media       mediastore.Store
	localScheme string
	startedAt   time.Time
}

// NewHandler creates the resolver handler set. media may be nil when no
// local-mode videos exist; /local then always answers 404.
func NewHandler(resolver *Resolver, st store.Store, media mediastore.Store, localScheme string) *Handler {
	return &Handler{
		resolver:    resolver,
		store:       st,
		media:       media,
		localScheme: localScheme,
		startedAt:   time.Now().UTC(),
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	writeJSON(w, http.StatusOK, okResponse(map[string]any{
		"service":    "pixav-resolver",
		"started_at": h.startedAt.Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Resolve handles GET /resolve/{videoID}.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.resolver.Resolve(r.Context(), videoID)
	if err != nil {
		writeResolveError(r.Context(), w, videoID, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse(res))
}

// Stream handles GET /stream/{videoID} with a redirect to the CDN.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.resolver.Resolve(r.Context(), videoID)
	if err != nil {
		writeResolveError(r.Context(), w, videoID, err)
		return
	}
	http.Redirect(w, r, res.CDNURL, http.StatusFound)
}

// Local handles GET /local/{videoID}, streaming the stored file for
// videos uploaded in local mode.
func (h *Handler) Local(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	video, err := h.store.GetVideo(r.Context(), videoID)
	if errors.Is(err, models.ErrVideoNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse("video not found"))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("store unavailable"))
		return
	}

	if h.media == nil || video.LocalPath == "" ||
		h.localScheme == "" || !strings.HasPrefix(video.ShareURL, h.localScheme) {
		writeJSON(w, http.StatusNotFound, errorResponse("video is not served locally"))
		return
	}

	path, cleanup, err := h.media.Local(r.Context(), video.LocalPath)
	if errors.Is(err, mediastore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse("local file not found"))
		return
	}
	if err != nil {
		logger.ErrorCtx(r.Context(), "failed to materialize local file",
			"video_id", videoID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("media store unavailable"))
		return
	}
	defer cleanup()

	http.ServeFile(w, r, path)
}

// videoIDParam extracts and validates the video id path parameter.
func videoIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	videoID := chi.URLParam(r, "videoID")
	if _, err := uuid.Parse(videoID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid video id"))
		return "", false
	}
	return videoID, true
}

// writeResolveError maps resolution failures onto the HTTP surface.
func writeResolveError(ctx context.Context, w http.ResponseWriter, videoID string, err error) {
	switch {
	case errors.Is(err, models.ErrVideoNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("video not found"))
	case errors.Is(err, ErrNotUploaded):
		writeJSON(w, http.StatusConflict, errorResponse("video has not been uploaded yet"))
	case errors.Is(err, ErrUpstream):
		logger.WarnCtx(ctx, "share page resolution failed", "video_id", videoID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("request cancelled"))
	default:
		logger.ErrorCtx(ctx, "resolution failed", "video_id", videoID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("store unavailable"))
	}
}
