package favorites

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Outcome values reported to the client after a mutation.
const (
	StatusAdded   = "added"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
	StatusCleared = "cleared"
)

// ErrNotFound is returned when no favorite matches the requested place_id.
// A client error, not a server failure.
var ErrNotFound = errors.New("favorite not found")

// ErrCapacity is returned when adding would exceed the configured maximum.
// Surfaced as a conflict, distinct from validation errors.
var ErrCapacity = errors.New("favorites limit reached")

// Manager implements the operations over a decoded favorites collection.
// Collections live only for one request, so no locking is involved; the caller
// re-encodes the result into the response cookie after every mutation.
type Manager struct {
	maxEntries int
}

// NewManager creates a Manager capped at maxEntries favorites.
func NewManager(maxEntries int) *Manager {
	return &Manager{maxEntries: maxEntries}
}

// Find returns the favorite matching placeID or ErrNotFound.
func (m *Manager) Find(collection []models.Favorite, placeID string) (models.Favorite, error) {
	for _, f := range collection {
		if f.PlaceID == placeID {
			return f, nil
		}
	}
	return models.Favorite{}, ErrNotFound
}

// Upsert adds or renames a favorite. An existing entry keeps its position and
// only its name changes (outcome "updated"). A new entry is appended (outcome
// "added") unless the collection is already at capacity, which fails with
// ErrCapacity and leaves the collection unmodified.
func (m *Manager) Upsert(collection []models.Favorite, placeID, name string) ([]models.Favorite, string, error) {
	placeID, err := validation.CookieField(placeID, validation.MaxPlaceIDLength)
	if err != nil {
		return collection, "", fmt.Errorf("place_id: %w", err)
	}
	name, err = validation.CookieField(name, validation.MaxNameLength)
	if err != nil {
		return collection, "", fmt.Errorf("name: %w", err)
	}

	for i, f := range collection {
		if f.PlaceID == placeID {
			collection[i].Name = name
			return collection, StatusUpdated, nil
		}
	}

	if len(collection) >= m.maxEntries {
		return collection, "", ErrCapacity
	}
	collection = append(collection, models.Favorite{PlaceID: placeID, Name: name})
	return collection, StatusAdded, nil
}

// Delete removes the favorite matching placeID, preserving the order of the
// remaining entries. Returns ErrNotFound when nothing matches; a second delete
// of the same id fails the same way rather than crashing.
func (m *Manager) Delete(collection []models.Favorite, placeID string) ([]models.Favorite, error) {
	placeID, err := validation.CookieField(placeID, validation.MaxPlaceIDLength)
	if err != nil {
		return collection, fmt.Errorf("place_id: %w", err)
	}

	for i, f := range collection {
		if f.PlaceID == placeID {
			return append(collection[:i], collection[i+1:]...), nil
		}
	}
	return collection, ErrNotFound
}

// Clear returns an empty collection. Always succeeds, including when there was
// nothing to clear.
func (m *Manager) Clear() []models.Favorite {
	return nil
}
