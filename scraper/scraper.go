package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-media-trends/config"
	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/parser"
	"github.com/gocolly/colly/v2"
)

// videosOnlyFilter restricts the results page to videos.
const videosOnlyFilter = "EgIQAQ%3D%3D"

// apiMaxResults is the Data API's per-request ceiling.
const apiMaxResults = 50

type pageParser func(r io.Reader, keyword string, limit int) ([]models.RawSearchHit, error)

// Searcher runs keyword searches through a colly collector.
// It scrapes the results page, or uses the Data API when an API key is configured.
type Searcher struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     retryPolicy
	Metrics   *Metrics
}

// NewSearcher builds a searcher configured from cfg.
func NewSearcher(cfg *config.Config, metrics *Metrics) (*Searcher, error) {
	parsed, err := url.Parse(cfg.SearchBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("search base url must include a host")
	}
	domains := []string{parsed.Host}
	if cfg.APIKey != "" {
		api, err := url.Parse(cfg.APIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse api base url: %w", err)
		}
		domains = append(domains, api.Host)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(domains...),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Searcher{
		cfg:       cfg,
		collector: collector,
		retry:     retryPolicy{base: cfg.RetryBackoff, max: cfg.RetryBackoffMax, maxRetries: cfg.MaxRetries},
		Metrics:   metrics,
	}, nil
}

// SetTransport replaces the HTTP transport used by the collector.
func (s *Searcher) SetTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Search returns up to limit hits for keyword in provider order.
// Transient failures are retried with capped exponential backoff.
func (s *Searcher) Search(ctx context.Context, keyword string, limit int) ([]models.RawSearchHit, error) {
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	target, parse := s.target(keyword, limit)

	var lastErr error
	for attempt := 0; attempt <= s.retry.maxRetries; attempt++ {
		if attempt > 0 {
			s.Metrics.IncRetries()
			delay := s.retry.backoff(attempt)
			slog.Debug("retrying search",
				slog.String("keyword", keyword),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hits, err := s.fetch(target, keyword, limit, parse)
		if err == nil {
			return hits, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (s *Searcher) target(keyword string, limit int) (string, pageParser) {
	if s.cfg.APIKey != "" {
		if limit > apiMaxResults {
			limit = apiMaxResults
		}
		params := url.Values{
			"part":       {"snippet"},
			"q":          {keyword},
			"type":       {"video"},
			"maxResults": {strconv.Itoa(limit)},
			"key":        {s.cfg.APIKey},
		}
		return s.cfg.APIBaseURL + "/search?" + params.Encode(), parser.ParseSearchAPI
	}
	return s.cfg.SearchBaseURL + "/results?search_query=" + url.QueryEscape(keyword) + "&sp=" + videosOnlyFilter, parser.ParseSearchPage
}

func (s *Searcher) fetch(target, keyword string, limit int, parse pageParser) ([]models.RawSearchHit, error) {
	c := s.collector.Clone()

	var (
		body   []byte
		status int
		reqErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		s.Metrics.IncRequest(SourceSearch)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	start := time.Now()
	visitErr := c.Visit(target)
	s.Metrics.ObserveDuration(SourceSearch, time.Since(start))
	if reqErr == nil {
		reqErr = visitErr
	}

	if reqErr != nil || status >= http.StatusBadRequest {
		classified := ClassifyError(reqErr, status)
		category := ErrorTypeLabel(classified)
		s.Metrics.IncError(SourceSearch, category)
		slog.Warn("search request failed",
			slog.String("keyword", keyword),
			slog.Int("status", status),
			slog.String("category", category),
			slog.Any("error", reqErr),
		)
		return nil, classified
	}

	hits, err := parse(bytes.NewReader(body), keyword, limit)
	if err != nil {
		s.Metrics.IncError(SourceSearch, "parse")
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	return hits, nil
}

func isRetryable(err error) bool {
	switch ErrorTypeLabel(err) {
	case "timeout", "connection", "rate_limited":
		return true
	}
	var badStatus ErrBadStatus
	if errors.As(err, &badStatus) {
		return badStatus.StatusCode >= http.StatusInternalServerError
	}
	return false
}

type retryPolicy struct {
	base       time.Duration
	max        time.Duration
	maxRetries int
}

func (rp retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.base
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rp.max; max > 0 && delay > max {
		delay = max
	}
	return delay
}
