// Package icons serves weather icon assets through a closed allow-list and a
// bounded cache. The allow-list doubles as an egress control: only known icon
// URLs are ever fetched, so the service cannot be used as an open proxy.
package icons

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/gateway"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// ErrUnknownIcon is returned for tokens outside the allow-list. A client
// error; no upstream call is made.
var ErrUnknownIcon = errors.New("unknown icon")

// allowed is the closed set of icon tokens the upstream asset host serves.
var allowed = map[string]struct{}{
	"sunny":                   {},
	"clear":                   {},
	"mostly_clear":            {},
	"partly_cloudy":           {},
	"mostly_cloudy":           {},
	"cloudy":                  {},
	"windy":                   {},
	"light_rain":              {},
	"rain":                    {},
	"heavy_rain":              {},
	"showers":                 {},
	"scattered_showers":       {},
	"thunderstorm":            {},
	"isolated_thunderstorms":  {},
	"scattered_thunderstorms": {},
	"light_snow":              {},
	"snow":                    {},
	"heavy_snow":              {},
	"snow_showers":            {},
	"sleet":                   {},
	"hail":                    {},
	"fog":                     {},
	"haze":                    {},
}

// Allowed reports whether token is a known icon name.
func Allowed(token string) bool {
	_, ok := allowed[token]
	return ok
}

// AssetURL builds the upstream asset URL for an allow-listed token. The dark
// flag selects the dark-background variant.
func AssetURL(baseURL, token string, dark bool) (string, error) {
	if !Allowed(token) {
		return "", fmt.Errorf("%q: %w", token, ErrUnknownIcon)
	}
	if dark {
		return fmt.Sprintf("%s/%s_dark.svg", baseURL, token), nil
	}
	return fmt.Sprintf("%s/%s.svg", baseURL, token), nil
}

// Service fetches icon assets cache-aside: cache first, upstream on miss,
// populate on success. Identical tokens always map to identical content, so
// hits skip the upstream entirely.
type Service struct {
	client  gateway.Client
	cache   cache.Cache
	baseURL string
	single  *coalescer
	logger  *zap.Logger
}

// NewService creates a Service fetching from baseURL through client.
func NewService(client gateway.Client, cache cache.Cache, baseURL string, logger *zap.Logger) *Service {
	return &Service{
		client:  client,
		cache:   cache,
		baseURL: baseURL,
		single:  newCoalescer(),
		logger:  logger,
	}
}

// GetIcon returns the SVG bytes for token, validating it against the
// allow-list before any network activity. Cache errors degrade to an upstream
// fetch rather than failing the request.
func (s *Service) GetIcon(ctx context.Context, token string, dark bool) ([]byte, error) {
	assetURL, err := AssetURL(s.baseURL, token, dark)
	if err != nil {
		return nil, err
	}

	cached, ok, cacheErr := s.cache.Get(ctx, assetURL)
	if cacheErr != nil {
		s.logger.Warn("icon cache get failed", zap.String("icon", token), zap.Error(cacheErr))
	} else if ok {
		observability.IconCacheHitsTotal.Inc()
		return cached, nil
	}
	observability.IconCacheMissesTotal.Inc()

	// Concurrent misses for the same asset share one upstream fetch.
	return s.single.Do(ctx, assetURL, func() ([]byte, error) {
		body, err := s.client.FetchRaw(ctx, assetURL, url.Values{})
		if err != nil {
			return nil, err
		}
		if setErr := s.cache.Set(ctx, assetURL, body); setErr != nil {
			s.logger.Warn("icon cache set failed", zap.String("icon", token), zap.Error(setErr))
		}
		return body, nil
	})
}
