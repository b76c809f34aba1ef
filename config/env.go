package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer. ok is false when the variable is unset.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overrides cfg with YTRENDS_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("YTRENDS_KEYWORDS"); ok {
		c.Keywords = splitList(v)
	}
	if v, ok := EnvString("YTRENDS_API_KEY"); ok {
		c.APIKey = v
	}
	if v, ok := EnvString("YTRENDS_YTDLP"); ok {
		c.YtDlpPath = v
	}
	if v, ok := EnvString("YTRENDS_OUTPUT"); ok {
		c.OutputFile = v
	}
	if v, ok := EnvString("YTRENDS_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(v)
	}
	if v, ok := EnvString("YTRENDS_THUMBNAIL_DIR"); ok {
		c.ThumbnailDir = v
	}
	if v, ok := EnvString("YTRENDS_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"YTRENDS_SEARCH_LIMIT", &c.SearchLimit},
		{"YTRENDS_MAX_RESULTS", &c.MaxResults},
		{"YTRENDS_WORKERS", &c.EnrichWorkers},
		{"YTRENDS_MAX_RETRIES", &c.MaxRetries},
	}
	for _, item := range ints {
		value, ok, err := EnvInt(item.key)
		if err != nil {
			return err
		}
		if ok {
			*item.dst = value
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"YTRENDS_TIMEOUT", &c.Timeout},
		{"YTRENDS_RESOLVE_TIMEOUT", &c.ResolveTimeout},
		{"YTRENDS_THUMBNAIL_TIMEOUT", &c.ThumbnailTimeout},
		{"YTRENDS_ENRICH_DELAY", &c.EnrichDelay},
	}
	for _, item := range durations {
		value, ok, err := EnvDuration(item.key)
		if err != nil {
			return err
		}
		if ok {
			*item.dst = value
		}
	}

	if v, ok, err := EnvBool("YTRENDS_KEEP_THUMBNAILS"); err != nil {
		return err
	} else if ok {
		c.KeepThumbnails = v
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
