package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	Debug bool

	ServerHost string
	ServerPort string

	GoogleAPIKey  string
	CookieHashKey string

	WeatherAPIURL string
	PlacesAPIURL  string
	IconAssetURL  string

	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration

	FavoritesCookie string
	MaxFavorites    int
	MaxCookieAge    time.Duration

	CacheBackend  string // "in_memory" or "memcached"
	IconCacheSize int
	IconCacheTTL  time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout         time.Duration
	ShutdownInFlightTimeout time.Duration

	TemplateDir string
}

type fileConfig struct {
	Debug *bool `yaml:"debug"`

	Server struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"server"`

	Upstream struct {
		WeatherURL      string `yaml:"weather_url"`
		PlacesURL       string `yaml:"places_url"`
		IconURL         string `yaml:"icon_url"`
		ConnectTimeout  string `yaml:"connect_timeout"`
		ResponseTimeout string `yaml:"response_timeout"`
	} `yaml:"upstream"`

	Favorites struct {
		Cookie       string `yaml:"cookie"`
		MaxEntries   int    `yaml:"max_entries"`
		MaxCookieAge string `yaml:"max_cookie_age"`
	} `yaml:"favorites"`

	Cache struct {
		Backend   string `yaml:"backend"`
		IconSize  int    `yaml:"icon_size"`
		IconTTL   string `yaml:"icon_ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
	} `yaml:"shutdown"`

	Templates struct {
		Dir string `yaml:"dir"`
	} `yaml:"templates"`
}

type secretsFile struct {
	GoogleAPIKey  string `yaml:"google_api_key"`
	CookieHashKey string `yaml:"cookie_hash_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. A .env file in the working directory is loaded first so
// local setups can keep secrets out of the shell. The Google API key comes from
// GOOGLE_API_KEY env or the secrets file; the cookie hash key from
// COOKIE_HASH_KEY env or the secrets file. Call from project root.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{
		Debug: false,
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}

	cfg.ServerHost = fc.Server.Host
	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "5000"
	}

	var sec secretsFile
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	}

	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = sec.GoogleAPIKey
	}
	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY required (set env or config/secrets.yaml google_api_key)")
	}

	cfg.CookieHashKey = os.Getenv("COOKIE_HASH_KEY")
	if cfg.CookieHashKey == "" {
		cfg.CookieHashKey = sec.CookieHashKey
	}
	if cfg.CookieHashKey == "" {
		return nil, fmt.Errorf("COOKIE_HASH_KEY required (set env or config/secrets.yaml cookie_hash_key)")
	}

	cfg.WeatherAPIURL = fc.Upstream.WeatherURL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://weather.googleapis.com/v1"
	}
	cfg.PlacesAPIURL = fc.Upstream.PlacesURL
	if cfg.PlacesAPIURL == "" {
		cfg.PlacesAPIURL = "https://maps.googleapis.com/maps/api/place"
	}
	cfg.IconAssetURL = fc.Upstream.IconURL
	if cfg.IconAssetURL == "" {
		cfg.IconAssetURL = "https://maps.gstatic.com/weather/v1"
	}
	cfg.ConnectTimeout = parseDuration(fc.Upstream.ConnectTimeout, 5*time.Second)
	cfg.ResponseTimeout = parseDuration(fc.Upstream.ResponseTimeout, 15*time.Second)

	cfg.FavoritesCookie = strings.TrimSpace(fc.Favorites.Cookie)
	if cfg.FavoritesCookie == "" {
		cfg.FavoritesCookie = "favorites"
	}
	cfg.MaxFavorites = fc.Favorites.MaxEntries
	if cfg.MaxFavorites <= 0 {
		cfg.MaxFavorites = 10
	}
	cfg.MaxCookieAge = parseDuration(fc.Favorites.MaxCookieAge, 30*24*time.Hour)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.IconCacheSize = fc.Cache.IconSize
	if cfg.IconCacheSize <= 0 {
		cfg.IconCacheSize = 50
	}
	cfg.IconCacheTTL = parseDuration(fc.Cache.IconTTL, 24*time.Hour)
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS * 2
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)

	cfg.TemplateDir = fc.Templates.Dir
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = filepath.Join("web", "templates")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails
// or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// The response timeout must exceed the connect timeout; otherwise it is bumped
// so a slow dial cannot consume the whole call budget.
func validate(cfg *Config) error {
	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("upstream.connect_timeout must be positive")
	}
	if cfg.ResponseTimeout <= cfg.ConnectTimeout {
		cfg.ResponseTimeout = cfg.ConnectTimeout + 10*time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if len(cfg.CookieHashKey) < 32 {
		return fmt.Errorf("COOKIE_HASH_KEY must be at least 32 bytes")
	}
	return nil
}
