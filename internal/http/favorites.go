package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/favorites"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Favorites follow a load → mutate → save transaction per request: the cookie
// is decoded fresh, the in-memory collection is mutated, and mutations re-encode
// the result into the outbound cookie. Nothing persists server-side.

// GetFavorites handles GET /favorites/get. With place_id it returns the single
// matching favorite; without, the whole collection in insertion order.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	collection := h.codec.Decode(r)

	placeID := r.FormValue("place_id")
	if placeID == "" {
		if collection == nil {
			collection = []models.Favorite{}
		}
		writeJSON(w, http.StatusOK, collection)
		return
	}

	fav, err := h.manager.Find(collection, placeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Favorite not found")
		return
	}
	writeJSON(w, http.StatusOK, fav)
}

// SetFavorite handles POST /favorites/set. Adds a new favorite or renames an
// existing one, then re-encodes the collection into the response cookie.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	placeID, ok := h.requireParam(w, r, "place_id")
	if !ok {
		return
	}
	name, ok := h.requireParam(w, r, "name")
	if !ok {
		return
	}

	collection := h.codec.Decode(r)
	collection, outcome, err := h.manager.Upsert(collection, placeID, name)
	if err != nil {
		observability.FavoritesOpsTotal.WithLabelValues("set", "rejected").Inc()
		if errors.Is(err, favorites.ErrCapacity) {
			writeError(w, http.StatusConflict, favorites.ErrCapacity.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.saveFavorites(w, r, collection) {
		return
	}
	observability.FavoritesOpsTotal.WithLabelValues("set", outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": outcome})
}

// DeleteFavorite handles POST /favorites/delete.
func (h *Handler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	placeID, ok := h.requireParam(w, r, "place_id")
	if !ok {
		return
	}

	collection := h.codec.Decode(r)
	collection, err := h.manager.Delete(collection, placeID)
	if err != nil {
		observability.FavoritesOpsTotal.WithLabelValues("delete", "rejected").Inc()
		if errors.Is(err, favorites.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Favorite not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.saveFavorites(w, r, collection) {
		return
	}
	observability.FavoritesOpsTotal.WithLabelValues("delete", favorites.StatusDeleted).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": favorites.StatusDeleted})
}

// ClearFavorites handles POST /favorites/clear. The cookie is actively removed
// rather than set to an empty-but-present list, so clearing is idempotent even
// with no prior state.
func (h *Handler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	_ = h.manager.Clear()
	h.codec.Clear(w)
	observability.FavoritesOpsTotal.WithLabelValues("clear", favorites.StatusCleared).Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": favorites.StatusCleared})
}

// saveFavorites re-encodes the mutated collection into the outbound cookie.
// Encode failures are server errors, not user mistakes, and are logged as such.
func (h *Handler) saveFavorites(w http.ResponseWriter, r *http.Request, collection []models.Favorite) bool {
	if err := h.codec.Write(w, collection); err != nil {
		h.logger.Error("encode favorites cookie", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not save favorites")
		return false
	}
	return true
}
