package favorites

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Codec serializes the favorites collection to and from a single signed
// cookie. The browser holds the state; the server only ever sees it for the
// duration of one request. Decoding is fail-open: anything that does not carry
// a valid signature or the expected shape collapses to an empty collection.
type Codec struct {
	sc     *securecookie.SecureCookie
	name   string
	maxAge int
	logger *zap.Logger
}

// NewCodec builds a Codec. hashKey signs the cookie (HMAC); maxAge caps both
// the cookie lifetime and how old a signature may be before decode rejects it.
func NewCodec(name string, hashKey []byte, maxAge time.Duration, logger *zap.Logger) *Codec {
	sc := securecookie.New(hashKey, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(maxAge.Seconds()))
	return &Codec{
		sc:     sc,
		name:   name,
		maxAge: int(maxAge.Seconds()),
		logger: logger,
	}
}

// Decode materializes the favorites collection from the request cookie.
// Absent cookie, bad signature, or unparseable payload all yield an empty
// collection. Entries failing shape validation are dropped; duplicates by
// place_id keep the first occurrence. Original order is preserved.
func (c *Codec) Decode(r *http.Request) []models.Favorite {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var raw []models.Favorite
	if err := c.sc.Decode(c.name, cookie.Value, &raw); err != nil {
		c.logger.Warn("favorites cookie invalid, starting fresh", zap.Error(err))
		return nil
	}

	collection := make([]models.Favorite, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, f := range raw {
		if !f.Valid() {
			continue
		}
		if _, dup := seen[f.PlaceID]; dup {
			continue
		}
		seen[f.PlaceID] = struct{}{}
		collection = append(collection, f)
	}
	return collection
}

// Write signs and attaches the collection as the outbound favorites cookie.
func (c *Codec) Write(w http.ResponseWriter, collection []models.Favorite) error {
	encoded, err := c.sc.Encode(c.name, collection)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   c.maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Clear removes the favorites cookie by writing an empty value with immediate
// expiry, rather than an empty-but-present encoded list.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
