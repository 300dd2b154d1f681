package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testHashKey = "0123456789abcdef0123456789abcdef"

// chtmp points the loader at a scratch project root with the given config
// files. Env vars the loader reads are reset so the host environment cannot
// leak into assertions.
func chtmp(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, "config", name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
	for _, key := range []string{"ENV_NAME", "GOOGLE_API_KEY", "COOKIE_HASH_KEY", "CACHE_BACKEND", "MEMCACHED_ADDRS", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "debug: true\n",
		"secrets.yaml": "google_api_key: test-key\ncookie_hash_key: " + testHashKey + "\n",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.ServerPort != "5000" {
		t.Errorf("ServerPort = %q, want 5000", cfg.ServerPort)
	}
	if cfg.GoogleAPIKey != "test-key" {
		t.Errorf("GoogleAPIKey = %q", cfg.GoogleAPIKey)
	}
	if cfg.WeatherAPIURL != "https://weather.googleapis.com/v1" {
		t.Errorf("WeatherAPIURL = %q", cfg.WeatherAPIURL)
	}
	if cfg.PlacesAPIURL != "https://maps.googleapis.com/maps/api/place" {
		t.Errorf("PlacesAPIURL = %q", cfg.PlacesAPIURL)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", cfg.ConnectTimeout)
	}
	if cfg.ResponseTimeout != 15*time.Second {
		t.Errorf("ResponseTimeout = %v, want 15s", cfg.ResponseTimeout)
	}
	if cfg.FavoritesCookie != "favorites" || cfg.MaxFavorites != 10 {
		t.Errorf("favorites defaults = %q/%d", cfg.FavoritesCookie, cfg.MaxFavorites)
	}
	if cfg.MaxCookieAge != 30*24*time.Hour {
		t.Errorf("MaxCookieAge = %v, want 720h", cfg.MaxCookieAge)
	}
	if cfg.CacheBackend != "in_memory" || cfg.IconCacheSize != 50 {
		t.Errorf("cache defaults = %q/%d", cfg.CacheBackend, cfg.IconCacheSize)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	chtmp(t, map[string]string{})

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without a config file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_MissingGoogleAPIKey(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "debug: false\n",
		"secrets.yaml": "cookie_hash_key: " + testHashKey + "\n",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without a Google API key")
	}
	if !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_MissingCookieHashKey(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "debug: false\n",
		"secrets.yaml": "google_api_key: test-key\n",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without a cookie hash key")
	}
	if !strings.Contains(err.Error(), "COOKIE_HASH_KEY") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_ShortCookieHashKey(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "debug: false\n",
		"secrets.yaml": "google_api_key: test-key\ncookie_hash_key: too-short\n",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("Load() accepted a short signing key")
	}
	if !strings.Contains(err.Error(), "at least 32 bytes") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_EnvOverridesSecretsFile(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "debug: false\n",
		"secrets.yaml": "google_api_key: file-key\ncookie_hash_key: " + testHashKey + "\n",
	})
	t.Setenv("GOOGLE_API_KEY", "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GoogleAPIKey != "env-key" {
		t.Errorf("GoogleAPIKey = %q, want env value to win", cfg.GoogleAPIKey)
	}
}

func TestLoad_EnvNameSelectsFile(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "server:\n  port: \"5000\"\n",
		"prod.yaml":    "server:\n  port: \"8080\"\n",
		"secrets.yaml": "google_api_key: test-key\ncookie_hash_key: " + testHashKey + "\n",
	})
	t.Setenv("ENV_NAME", "prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want prod value", cfg.ServerPort)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "cache:\n  backend: redis\n",
		"secrets.yaml": "google_api_key: test-key\ncookie_hash_key: " + testHashKey + "\n",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("Load() accepted an unknown cache backend")
	}
	if !strings.Contains(err.Error(), "cache.backend") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_CacheBackendEnvOverride(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "cache:\n  backend: in_memory\n",
		"secrets.yaml": "google_api_key: test-key\ncookie_hash_key: " + testHashKey + "\n",
	})
	t.Setenv("CACHE_BACKEND", "memcached")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "localhost:11211" {
		t.Errorf("MemcachedAddrs = %q, want default", cfg.MemcachedAddrs)
	}
}

func TestLoad_ResponseTimeoutBumpedAboveConnect(t *testing.T) {
	chtmp(t, map[string]string{
		"dev.yaml":     "upstream:\n  connect_timeout: 10s\n  response_timeout: 10s\n",
		"secrets.yaml": "google_api_key: test-key\ncookie_hash_key: " + testHashKey + "\n",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ResponseTimeout <= cfg.ConnectTimeout {
		t.Errorf("ResponseTimeout = %v not above ConnectTimeout = %v", cfg.ResponseTimeout, cfg.ConnectTimeout)
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("", time.Second); got != time.Second {
		t.Errorf("empty input = %v, want default", got)
	}
	if got := parseDuration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("valid input = %v, want 250ms", got)
	}
	if got := parseDuration("garbage", time.Second); got != time.Second {
		t.Errorf("bad input = %v, want default", got)
	}
	if got := parseDuration("-5s", time.Second); got != time.Second {
		t.Errorf("negative input = %v, want default", got)
	}
}
