package models

import "strings"

// Favorite is a single saved place. PlaceID is the identity key; no two
// favorites in a collection share one. Name is the display label shown in the UI.
type Favorite struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
}

// Valid reports whether both fields are present and non-blank. Entries failing
// this check are dropped when a favorites cookie is decoded.
func (f Favorite) Valid() bool {
	return strings.TrimSpace(f.PlaceID) != "" && strings.TrimSpace(f.Name) != ""
}
