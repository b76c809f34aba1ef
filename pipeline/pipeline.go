package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aluiziolira/go-media-trends/config"
	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/scraper"
)

var (
	// ErrNoInput is returned when no usable keyword was supplied.
	ErrNoInput = errors.New("pipeline: no input")
	// ErrNoResults is returned when the searches produced no unique videos.
	ErrNoResults = errors.New("pipeline: no results")
	// ErrNoSearcher is returned when Run is called without a search provider.
	ErrNoSearcher = errors.New("pipeline: no searcher configured")
)

// ExportError reports a failure to produce the output artifact.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Searcher returns up to limit hits for one keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string, limit int) ([]models.RawSearchHit, error)
}

// WriterFactory opens the output writer for a run.
type WriterFactory func(filename string) (OutputWriter, error)

// Pipeline coordinates search, de-duplication, enrichment, ranking and export.
type Pipeline struct {
	cfg       *config.Config
	searcher  Searcher
	enricher  *Enricher
	newWriter WriterFactory
	tracer    trace.Tracer
	exporter  *scraper.Metrics

	metrics metrics
}

// NewPipeline builds a pipeline. A nil factory selects the writer from cfg.OutputFormat.
// Export calls are counted on the enricher's Prometheus metrics.
func NewPipeline(cfg *config.Config, searcher Searcher, enricher *Enricher, newWriter WriterFactory) *Pipeline {
	if newWriter == nil {
		format := cfg.OutputFormat
		var opts []WriterOption
		if !cfg.KeepThumbnails {
			opts = append(opts, WithTransientThumbnails())
		}
		newWriter = func(filename string) (OutputWriter, error) {
			return NewWriter(format, filename, opts...)
		}
	}
	var exporter *scraper.Metrics
	if enricher != nil {
		exporter = enricher.metrics
	}
	return &Pipeline{
		cfg:       cfg,
		searcher:  searcher,
		enricher:  enricher,
		newWriter: newWriter,
		tracer:    otel.Tracer("github.com/aluiziolira/go-media-trends/pipeline"),
		exporter:  exporter,
		metrics:   newMetrics(),
	}
}

// Run executes one aggregation over keywords and writes the ranked set to cfg.OutputFile.
// The returned result is non-nil whenever any stage ran, including on ErrNoResults.
func (p *Pipeline) Run(ctx context.Context, keywords []string) (*models.RunResult, error) {
	keywords = normalizeKeywords(keywords)
	if len(keywords) == 0 {
		return nil, ErrNoInput
	}
	if p.searcher == nil {
		return nil, ErrNoSearcher
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.StringSlice("keywords", keywords),
	))
	defer span.End()

	result := &models.RunResult{
		RunID:        uuid.NewString(),
		Keywords:     keywords,
		ErrorsByType: make(map[string]int),
		StartTime:    time.Now(),
	}
	span.SetAttributes(attribute.String("run_id", result.RunID))
	defer func() {
		result.EndTime = time.Now()
	}()

	slog.Info("run started",
		slog.String("run_id", result.RunID),
		slog.Any("keywords", keywords),
	)

	searchResults := p.search(ctx, keywords, result)

	refs := p.dedupe(ctx, searchResults, result)
	if len(refs) == 0 {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("run interrupted: %w", err)
		}
		span.SetStatus(codes.Error, ErrNoResults.Error())
		return result, ErrNoResults
	}

	thumbDir := filepath.Join(p.cfg.ThumbnailDir, result.RunID)
	defer func() {
		if p.cfg.KeepThumbnails {
			return
		}
		if err := os.RemoveAll(thumbDir); err != nil {
			slog.Warn("remove thumbnails", slog.String("dir", thumbDir), slog.Any("error", err))
		}
	}()

	videos := p.enrich(ctx, refs, thumbDir, result)
	result.Videos = p.rank(ctx, videos)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("run interrupted: %w", err)
	}

	if err := p.export(ctx, result.Videos); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	result.OutputFile = p.cfg.OutputFile
	if p.cfg.KeepThumbnails && result.ThumbnailCount > 0 {
		result.ThumbnailDir = thumbDir
	}

	slog.Info("run finished",
		slog.String("run_id", result.RunID),
		slog.Int("unique", result.UniqueCount),
		slog.Int("ranked", len(result.Videos)),
		slog.String("output", result.OutputFile),
	)
	return result, nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) search(ctx context.Context, keywords []string, result *models.RunResult) [][]models.RawSearchHit {
	ctx, span := p.tracer.Start(ctx, "pipeline.search")
	defer span.End()

	searchResults := make([][]models.RawSearchHit, 0, len(keywords))
	for _, keyword := range keywords {
		if ctx.Err() != nil {
			break
		}
		hits, err := p.searcher.Search(ctx, keyword, p.cfg.SearchLimit)
		if err != nil {
			label := scraper.ErrorTypeLabel(err)
			result.FailedKeywords = append(result.FailedKeywords, keyword)
			result.ErrorsByType["search:"+label]++
			p.metrics.addError("search:" + label)
			slog.Warn("search failed, skipping keyword",
				slog.String("keyword", keyword),
				slog.String("category", label),
				slog.Any("error", err),
			)
			continue
		}
		slog.Debug("search complete", slog.String("keyword", keyword), slog.Int("hits", len(hits)))
		result.SearchHits += len(hits)
		searchResults = append(searchResults, hits)
	}

	span.SetAttributes(
		attribute.Int("hits", result.SearchHits),
		attribute.Int("failed_keywords", len(result.FailedKeywords)),
	)
	return searchResults
}

func (p *Pipeline) dedupe(ctx context.Context, searchResults [][]models.RawSearchHit, result *models.RunResult) []models.VideoRef {
	_, span := p.tracer.Start(ctx, "pipeline.dedupe")
	defer span.End()

	refs, stats := dedupe(searchResults)
	result.UniqueCount = len(refs)
	p.metrics.addValidation("duplicate_url", stats.duplicates)
	p.metrics.addValidation("invalid_id", stats.invalid)

	span.SetAttributes(
		attribute.Int("unique", len(refs)),
		attribute.Int("duplicates", stats.duplicates),
		attribute.Int("invalid", stats.invalid),
	)
	return refs
}

func (p *Pipeline) enrich(ctx context.Context, refs []models.VideoRef, thumbDir string, result *models.RunResult) []*models.Video {
	ctx, span := p.tracer.Start(ctx, "pipeline.enrich", trace.WithAttributes(
		attribute.Int("videos", len(refs)),
	))
	defer span.End()

	videos := p.enricher.WithThumbnailDir(thumbDir).EnrichAll(ctx, refs)
	for _, video := range videos {
		if video.Title.IsKnown() || video.UploadDate.IsKnown() {
			result.EnrichedCount++
		}
		if video.Thumbnail.IsKnown() {
			result.ThumbnailCount++
		}
		for _, label := range video.Errors {
			result.ErrorsByType[label]++
			p.metrics.addError(label)
		}
	}
	p.metrics.addProcessed(len(videos))

	span.SetAttributes(
		attribute.Int("enriched", result.EnrichedCount),
		attribute.Int("thumbnails", result.ThumbnailCount),
	)
	return videos
}

func (p *Pipeline) rank(ctx context.Context, videos []*models.Video) []*models.Video {
	_, span := p.tracer.Start(ctx, "pipeline.rank")
	defer span.End()

	ranked := Rank(videos, p.cfg.MaxResults)
	span.SetAttributes(attribute.Int("ranked", len(ranked)))
	return ranked
}

func (p *Pipeline) export(ctx context.Context, videos []*models.Video) error {
	_, span := p.tracer.Start(ctx, "pipeline.export", trace.WithAttributes(
		attribute.String("path", p.cfg.OutputFile),
	))
	defer span.End()

	path := p.cfg.OutputFile
	p.exporter.IncRequest(scraper.SourceExport)
	start := time.Now()
	err := p.writeArtifact(path, videos)
	p.exporter.ObserveDuration(scraper.SourceExport, time.Since(start))
	if err != nil {
		p.exporter.IncError(scraper.SourceExport, scraper.ErrorTypeLabel(err))
		return &ExportError{Path: path, Err: err}
	}
	return nil
}

func (p *Pipeline) writeArtifact(path string, videos []*models.Video) error {
	writer, err := p.newWriter(path)
	if err != nil {
		return err
	}
	if err := writer.Write(videos); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return writer.Validate()
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
	}
	return out
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
	errors     map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
		errors:     make(map[string]int),
	}
}

func (m *metrics) addProcessed(n int) {
	m.mu.Lock()
	m.processed += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string, n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.validation[kind] += n
	m.mu.Unlock()
}

func (m *metrics) addError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}
	copyErrors := make(map[string]int, len(m.errors))
	for k, v := range m.errors {
		copyErrors[k] = v
	}

	return map[string]interface{}{
		"processed_videos":  m.processed,
		"validation_errors": copyValidation,
		"item_errors":       copyErrors,
	}
}
