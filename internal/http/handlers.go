package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/favorites"
	"github.com/kjstillabower/weather-dashboard/internal/gateway"
	"github.com/kjstillabower/weather-dashboard/internal/icons"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// shuttingDown flips when the process starts draining; the health handler
// reports it so load balancers stop routing new traffic here.
var shuttingDown atomic.Bool

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT received.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// UpstreamConfig carries the provider endpoints and the server-injected API
// key. The key is never accepted from the client.
type UpstreamConfig struct {
	APIKey         string
	WeatherBaseURL string
	PlacesBaseURL  string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	upstream  gateway.Client
	icons     *icons.Service
	manager   *favorites.Manager
	codec     *favorites.Codec
	cfg       UpstreamConfig
	templates *template.Template
	logger    *zap.Logger
	// CachePing, when set, is called by the health handler to check cache
	// reachability. Used when the icon cache backend is memcached.
	CachePing func() error
}

// NewHandler returns a new Handler. templates may be nil when the landing page
// template is unavailable; / then answers 404.
func NewHandler(
	upstream gateway.Client,
	iconService *icons.Service,
	manager *favorites.Manager,
	codec *favorites.Codec,
	cfg UpstreamConfig,
	templates *template.Template,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		upstream:  upstream,
		icons:     iconService,
		manager:   manager,
		codec:     codec,
		cfg:       cfg,
		templates: templates,
		logger:    logger,
	}
}

// GetIndex handles GET /. Renders the landing page, buffering the output so a
// render failure can still answer 500 with a JSON body.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	if h.templates == nil {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "index.html", nil); err != nil {
		h.logger.Error("render landing page", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetCurrentWeather handles GET /weather/current.
func (h *Handler) GetCurrentWeather(w http.ResponseWriter, r *http.Request) {
	h.proxyWeather(w, r, "currentConditions:lookup")
}

// GetDailyForecast handles GET /weather/daily.
func (h *Handler) GetDailyForecast(w http.ResponseWriter, r *http.Request) {
	h.proxyWeather(w, r, "forecast/days:lookup")
}

// GetHourlyForecast handles GET /weather/hourly.
func (h *Handler) GetHourlyForecast(w http.ResponseWriter, r *http.Request) {
	h.proxyWeather(w, r, "forecast/hours:lookup")
}

// proxyWeather validates coordinates and forwards the lookup to the Weather
// API. Coordinates pass through as opaque text; the provider is the source of
// truth for their validity.
func (h *Handler) proxyWeather(w http.ResponseWriter, r *http.Request, path string) {
	lat, ok := h.requireParam(w, r, "lat")
	if !ok {
		return
	}
	lng, ok := h.requireParam(w, r, "lng")
	if !ok {
		return
	}

	params := url.Values{}
	params.Set("key", h.cfg.APIKey)
	params.Set("location.latitude", lat)
	params.Set("location.longitude", lng)

	payload, err := h.upstream.FetchJSON(r.Context(), h.cfg.WeatherBaseURL+"/"+path, params)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// GetAutocomplete handles GET /autocomplete.
func (h *Handler) GetAutocomplete(w http.ResponseWriter, r *http.Request) {
	query, ok := h.requireParam(w, r, "query")
	if !ok {
		return
	}

	params := url.Values{}
	params.Set("input", query)
	params.Set("key", h.cfg.APIKey)

	payload, err := h.upstream.FetchJSON(r.Context(), h.cfg.PlacesBaseURL+"/autocomplete/json", params)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// GetPlaceDetails handles GET /place_details. On top of the transport
// classification it inspects the Places business status field: anything but
// "OK" becomes a client error. Successful payloads are reduced to name,
// address, and geometry before reaching the browser.
func (h *Handler) GetPlaceDetails(w http.ResponseWriter, r *http.Request) {
	placeID, ok := h.requireParam(w, r, "place_id")
	if !ok {
		return
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("key", h.cfg.APIKey)
	params.Set("fields", "geometry,name,formatted_address")

	payload, err := h.upstream.FetchJSON(r.Context(), h.cfg.PlacesBaseURL+"/details/json", params)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	status, _ := payload["status"].(string)
	if status != "OK" {
		if status == "" {
			status = "Unknown error"
		}
		writeError(w, http.StatusBadRequest, status)
		return
	}

	result, _ := payload["result"].(map[string]any)
	details := models.PlaceDetails{
		Name:     stringField(result, "name"),
		Address:  stringField(result, "formatted_address"),
		Geometry: result["geometry"],
	}
	writeJSON(w, http.StatusOK, details)
}

// GetIcon handles GET /icon. The token is checked against the closed
// allow-list before any URL is built; unknown tokens never reach upstream.
func (h *Handler) GetIcon(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireParam(w, r, "icon")
	if !ok {
		return
	}

	dark := false
	if darkParam := strings.TrimSpace(r.FormValue("dark")); darkParam != "" {
		parsed, err := strconv.ParseBool(darkParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dark flag")
			return
		}
		dark = parsed
	}

	body, err := h.icons.GetIcon(r.Context(), token, dark)
	if errors.Is(err, icons.ErrUnknownIcon) {
		writeError(w, http.StatusBadRequest, "Invalid icon")
		return
	}
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	if shuttingDown.Load() {
		status = "shutting-down"
		statusCode = http.StatusServiceUnavailable
	}

	checks := map[string]string{
		"upstream": "configured",
	}
	if h.cfg.APIKey == "" {
		checks["upstream"] = "missing_api_key"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	if h.CachePing != nil {
		if h.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"status":    status,
		"service":   "weather-dashboard",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// requireParam returns the trimmed request parameter or answers 400 with the
// original "Missing <name>" message and returns ok=false. Checked before any
// upstream call is made.
func (h *Handler) requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		writeError(w, http.StatusBadRequest, "Missing "+name)
		return "", false
	}
	return v, true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body. Every failure path through the
// router ends here: a JSON object with an error field, never a stack trace.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeUpstreamError maps a gateway error to its client-facing status and
// stable message. The underlying detail stays in the logs at debug level.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, gateway.Status(err), gateway.Message(err))
	if logger := loggerFromContext(r.Context()); logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}

// stringField extracts a string value from a decoded JSON object, tolerating
// absent keys and non-string values.
func stringField(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

// loggerFromContext extracts the request-scoped zap.Logger if middleware
// attached one.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value(loggerContextKey); v != nil {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return nil
}
