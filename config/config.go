package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds aggregator configuration.
type Config struct {
	Keywords           []string      `yaml:"keywords"`
	SearchBaseURL      string        `yaml:"searchBaseUrl"`
	APIBaseURL         string        `yaml:"apiBaseUrl"`
	APIKey             string        `yaml:"apiKey"`
	SearchLimit        int           `yaml:"searchLimit"`
	MaxResults         int           `yaml:"maxResults"`
	YtDlpPath          string        `yaml:"ytDlpPath"`
	Timeout            time.Duration `yaml:"timeout"`
	ResolveTimeout     time.Duration `yaml:"resolveTimeout"`
	ThumbnailTimeout   time.Duration `yaml:"thumbnailTimeout"`
	EnrichDelay        time.Duration `yaml:"enrichDelay"`
	EnrichWorkers      int           `yaml:"enrichWorkers"`
	MaxRetries         int           `yaml:"maxRetries"`
	RetryBackoff       time.Duration `yaml:"retryBackoff"`
	RetryBackoffMax    time.Duration `yaml:"retryBackoffMax"`
	ThumbnailDir       string        `yaml:"thumbnailDir"`
	ThumbnailMaxWidth  int           `yaml:"thumbnailMaxWidth"`
	ThumbnailMaxHeight int           `yaml:"thumbnailMaxHeight"`
	KeepThumbnails     bool          `yaml:"keepThumbnails"`
	OutputFile         string        `yaml:"outputFile"`
	OutputFormat       string        `yaml:"outputFormat"` // xlsx, csv, json, or dual
	UserAgent          string        `yaml:"userAgent"`
	Verbose            bool          `yaml:"verbose"`
	MetricsAddr        string        `yaml:"metricsAddr"`
}

// DefaultConfig returns defaults matching the platform's usage policy.
func DefaultConfig() *Config {
	return &Config{
		SearchBaseURL:      "https://www.youtube.com",
		APIBaseURL:         "https://www.googleapis.com/youtube/v3",
		SearchLimit:        20,
		MaxResults:         20,
		YtDlpPath:          "yt-dlp",
		Timeout:            15 * time.Second,
		ResolveTimeout:     60 * time.Second,
		ThumbnailTimeout:   10 * time.Second,
		EnrichDelay:        time.Second,
		EnrichWorkers:      1,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		ThumbnailDir:       "thumbnails",
		ThumbnailMaxWidth:  480,
		ThumbnailMaxHeight: 360,
		KeepThumbnails:     true,
		OutputFile:         "youtube_data.xlsx",
		OutputFormat:       "xlsx",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateBaseURL("search base URL", c.SearchBaseURL); err != nil {
		return err
	}
	if c.APIKey != "" {
		if err := validateBaseURL("api base URL", c.APIBaseURL); err != nil {
			return err
		}
	}

	if c.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive")
	}
	if c.YtDlpPath == "" {
		return fmt.Errorf("yt-dlp path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve timeout must be positive")
	}
	if c.ThumbnailTimeout <= 0 {
		return fmt.Errorf("thumbnail timeout must be positive")
	}
	if c.EnrichDelay < 0 {
		return fmt.Errorf("enrich delay cannot be negative")
	}
	if c.EnrichWorkers <= 0 {
		return fmt.Errorf("enrich workers must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.ThumbnailDir == "" {
		return fmt.Errorf("thumbnail dir cannot be empty")
	}
	if c.ThumbnailMaxWidth <= 0 || c.ThumbnailMaxHeight <= 0 {
		return fmt.Errorf("thumbnail max dimensions must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "xlsx", "csv", "json", "dual":
	default:
		return fmt.Errorf("output format must be xlsx, csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
