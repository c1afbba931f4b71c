package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the addon settings read from the environment.
type Config struct {
	// Port is the TCP port the HTTP server listens on when ServerListenAddr is not set.
	Port int `env:"PORT" envDefault:"3593"`
	// ServerListenAddr overrides the full listen address, e.g. "127.0.0.1:8080".
	ServerListenAddr string `env:"SERVER_LISTEN_ADDR"`
	// AddonHost is the public (external) base URL where the addon is accessible.
	// It is used for any links requiring the addon host address.
	AddonHost string `env:"ADDON_HOST" envDefault:"http://127.0.0.1:3593"`

	OpenSubtitlesAPIKey    string `env:"OPENSUBTITLES_API_KEY"`
	OpenSubtitlesUserAgent string `env:"OPENSUBTITLES_USER_AGENT" envDefault:"AutoArabic v1.1.0"`
	SubDLAPIKey            string `env:"SUBDL_API_KEY"`

	TranslateBaseURL     string `env:"TRANSLATE_BASE_URL" envDefault:"https://translate.googleapis.com"`
	TranslateConcurrency int    `env:"TRANSLATE_CONCURRENCY" envDefault:"4"`

	// TestSubtitle prepends a data URL subtitle to every search result, to check the addon is reachable.
	TestSubtitle bool `env:"TEST_SUBTITLE" envDefault:"false"`
	// StripAds removes advertisement cues before translating.
	StripAds bool `env:"STRIP_ADS" envDefault:"false"`
	// CachePath is the badger directory. Memoization is disabled when empty.
	CachePath string `env:"CACHE_PATH"`

	ServiceEnvironment   string `env:"SERVICE_ENVIRONMENT" envDefault:"lcl"`
	OTLPExporterEndpoint string `env:"OTLP_EXPORTER_ENDPOINT"`
	LokiHost             string `env:"LOKI_HOST"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to godotenv.Load: %w", err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to env.ParseAs: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ServerListenAddr == "" {
		c.ServerListenAddr = fmt.Sprintf(":%d", c.Port)
	}

	u, err := url.Parse(c.AddonHost)
	if err != nil {
		return fmt.Errorf("failed to parse ADDON_HOST: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ADDON_HOST %q, expected scheme://host", c.AddonHost)
	}
	c.AddonHost = fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	c.TranslateBaseURL = strings.TrimRight(c.TranslateBaseURL, "/")
	if c.TranslateConcurrency <= 0 {
		c.TranslateConcurrency = 1
	}

	return nil
}
