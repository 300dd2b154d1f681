package models

// PlaceDetails is the reduced place-details payload returned to the browser.
// Only name, address, and geometry are exposed; everything else the upstream
// returns stays server-side.
type PlaceDetails struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Geometry any    `json:"geometry"`
}
