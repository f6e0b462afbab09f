// Package admin serves the internal endpoints used to inspect and purge the
// response cache. They belong on the admin port only.
package admin

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const (
	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"

	statusPurged = "purged"
)

type (
	// Cache is the part of the resilient cache the admin endpoints drive.
	Cache interface {
		GetAll(ctx context.Context) map[string][]byte
		Clear(ctx context.Context)
		Delete(ctx context.Context, key string)
	}

	cacheListing struct {
		Count int      `json:"count"`
		Keys  []string `json:"keys"`
	}

	Handler struct {
		cache  Cache
		logger logger.Logger
	}
)

func NewHandler(cache Cache, log logger.Logger) *Handler {
	return &Handler{cache: cache, logger: log.Component("admin_handler")}
}

// ListCache reports how many entries the cache holds and their keys, sorted.
func (h *Handler) ListCache(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	entries := h.cache.GetAll(r.Context())

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	writeJSONResponse(w, http.StatusOK, cacheListing{Count: len(keys), Keys: keys})
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	h.cache.Clear(r.Context())

	reqLogger := h.logger.WithContext(r.Context())
	reqLogger.Info().Msg("cache cleared")

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    statusPurged,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) DeleteCacheKey(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	key := chi.URLParam(r, "key")

	h.cache.Delete(r.Context(), key)

	reqLogger := h.logger.WithContext(r.Context())
	reqLogger.Info().Str("key", key).Msg("cache entry deleted")

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    statusPurged,
		"key":       key,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) available(w http.ResponseWriter) bool {
	if h.cache != nil {
		return true
	}

	writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
		"error": "cache not available",
	})

	return false
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set(contentTypeHeader, applicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
