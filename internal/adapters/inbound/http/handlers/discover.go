package handlers

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/usecases/queries"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
)

const msgDiscoverError = "An error has occurred"

// Discover lists recent articles for a topic. Preview mode runs a single
// random search instead of the full fan out.
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	ctx, cacheStatus := decorator.TrackCacheStatus(r.Context())

	feed, err := h.app.Queries.GetDiscoverFeed.Execute(ctx, queries.GetDiscoverFeedQuery{
		Topic: params.Get("topic"),
		Mode:  model.ParseDiscoverMode(params.Get("mode")),
	})
	if err != nil {
		h.logFailure(ctx, err, "discover request failed")
		writeUseCaseError(w, err, msgDiscoverError)

		return
	}

	w.Header().Set(middleware.CacheHeader, string(cacheStatus()))
	writeJSONResponse(w, http.StatusOK, feed)
}
