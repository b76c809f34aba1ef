package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aluiziolira/go-media-trends/models"
)

const (
	uploadDateLayout  = "20060102"
	displayDateLayout = "02/01/2006, 15:04:05"
)

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseKeywords splits comma-separated input, trimming blanks and repeats.
func ParseKeywords(input string) []string {
	parts := strings.Split(input, ",")
	seen := make(map[string]struct{}, len(parts))
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		kw := strings.TrimSpace(part)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	return keywords
}

// ValidateVideoID ensures id has the platform's 11-character form.
func ValidateVideoID(id string) error {
	if !videoIDRE.MatchString(id) {
		return fmt.Errorf("malformed video id %q", id)
	}
	return nil
}

// CanonicalURL derives the watch URL used as the deduplication key.
func CanonicalURL(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := ValidateVideoID(id); err != nil {
		return "", err
	}
	return models.WatchURLPrefix + id, nil
}

// FormatDuration renders seconds as HH:MM:SS. Hours are not capped at 99.
func FormatDuration(seconds models.Field[int64]) string {
	s, ok := seconds.Get()
	if !ok || s < 0 {
		return models.UnknownMarker
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// ValidUploadDate reports whether raw is a well-formed YYYYMMDD date.
func ValidUploadDate(raw string) bool {
	if len(raw) != len(uploadDateLayout) {
		return false
	}
	_, err := time.Parse(uploadDateLayout, raw)
	return err == nil
}

// FormatUploadDate renders a YYYYMMDD value as DD/MM/YYYY, HH:MM:SS.
// The source carries no time of day, so the clock is always 00:00:00.
func FormatUploadDate(raw models.Field[string]) string {
	value, ok := raw.Get()
	if !ok || !ValidUploadDate(value) {
		return models.UnknownMarker
	}
	t, err := time.Parse(uploadDateLayout, value)
	if err != nil {
		return models.UnknownMarker
	}
	return t.Format(displayDateLayout)
}
