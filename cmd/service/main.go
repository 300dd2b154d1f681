package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/favorites"
	"github.com/kjstillabower/weather-dashboard/internal/gateway"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/icons"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	upstream := gateway.New(cfg.ConnectTimeout, cfg.ResponseTimeout, logger)

	var iconCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.IconCacheTTL)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		iconCache = mc
		logger.Info("icon cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		lru, err := cache.NewLRUCache(cfg.IconCacheSize)
		if err != nil {
			logger.Fatal("icon cache", zap.Error(err))
		}
		iconCache = lru
		logger.Info("icon cache backend: in_memory", zap.Int("capacity", cfg.IconCacheSize))
	}

	iconService := icons.NewService(upstream, iconCache, cfg.IconAssetURL, logger)
	manager := favorites.NewManager(cfg.MaxFavorites)
	codec := favorites.NewCodec(cfg.FavoritesCookie, []byte(cfg.CookieHashKey), cfg.MaxCookieAge, logger)

	var templates *template.Template
	tpl, err := template.ParseGlob(filepath.Join(cfg.TemplateDir, "*.html"))
	if err != nil {
		logger.Warn("landing page templates unavailable", zap.String("dir", cfg.TemplateDir), zap.Error(err))
	} else {
		templates = tpl
	}

	handler := httphandler.NewHandler(
		upstream,
		iconService,
		manager,
		codec,
		httphandler.UpstreamConfig{
			APIKey:         cfg.GoogleAPIKey,
			WeatherBaseURL: cfg.WeatherAPIURL,
			PlacesBaseURL:  cfg.PlacesAPIURL,
		},
		templates,
		logger,
	)
	if memcacheCloser != nil {
		handler.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)

	router.HandleFunc("/", handler.GetIndex).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	// Routes that spend provider quota sit behind the rate limiter; the
	// favorites routes touch only the cookie and stay unthrottled.
	upstreamRouter := router.NewRoute().Subrouter()
	upstreamRouter.Use(httphandler.RateLimitMiddleware(limiter))
	upstreamRouter.HandleFunc("/weather/current", handler.GetCurrentWeather).Methods("GET")
	upstreamRouter.HandleFunc("/weather/daily", handler.GetDailyForecast).Methods("GET")
	upstreamRouter.HandleFunc("/weather/hourly", handler.GetHourlyForecast).Methods("GET")
	upstreamRouter.HandleFunc("/autocomplete", handler.GetAutocomplete).Methods("GET")
	upstreamRouter.HandleFunc("/place_details", handler.GetPlaceDetails).Methods("GET")
	upstreamRouter.HandleFunc("/icon", handler.GetIcon).Methods("GET")

	router.HandleFunc("/favorites/get", handler.GetFavorites).Methods("GET")
	router.HandleFunc("/favorites/set", handler.SetFavorite).Methods("POST")
	router.HandleFunc("/favorites/delete", handler.DeleteFavorite).Methods("POST")
	router.HandleFunc("/favorites/clear", handler.ClearFavorites).Methods("POST")

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedMethods([]string{"GET", "POST"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "X-Correlation-ID"}),
		gorillahandlers.AllowCredentials(),
	)

	srv := &http.Server{
		Addr:         cfg.ServerHost + ":" + cfg.ServerPort,
		Handler:      cors(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	httphandler.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
