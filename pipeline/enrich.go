package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/parser"
	"github.com/aluiziolira/go-media-trends/scraper"
)

// Limiter paces resolver calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Thumbnailer stores a validated image from imageURL at dest.
type Thumbnailer interface {
	Fetch(ctx context.Context, imageURL, dest string) error
}

// NewLimiter allows one call per delay. A zero delay disables pacing.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Enricher turns video references into enriched records.
type Enricher struct {
	resolver scraper.Resolver
	thumbs   Thumbnailer
	limiter  Limiter
	workers  int
	metrics  *scraper.Metrics
	thumbDir string
}

// NewEnricher wires the enrichment collaborators. All workers share limiter.
func NewEnricher(resolver scraper.Resolver, thumbs Thumbnailer, limiter Limiter, workers int, metrics *scraper.Metrics) *Enricher {
	if limiter == nil {
		limiter = NewLimiter(time.Second)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Enricher{
		resolver: resolver,
		thumbs:   thumbs,
		limiter:  limiter,
		workers:  workers,
		metrics:  metrics,
	}
}

// WithThumbnailDir returns a copy of e that stores thumbnails under dir.
func (e *Enricher) WithThumbnailDir(dir string) *Enricher {
	clone := *e
	clone.thumbDir = dir
	return &clone
}

// Enrich resolves one reference. It never fails: anything that cannot be
// resolved stays unknown and the reason is recorded in Video.Errors.
func (e *Enricher) Enrich(ctx context.Context, ref models.VideoRef, index int) *models.Video {
	video := models.NewVideo(ref, index)

	if err := e.limiter.Wait(ctx); err != nil {
		video.Errors = append(video.Errors, "resolve:cancelled")
		return video
	}

	md, err := e.resolver.Resolve(ctx, ref.URL)
	e.metrics.IncEnriched()
	if err != nil {
		label := scraper.ErrorTypeLabel(err)
		video.Errors = append(video.Errors, "resolve:"+label)
		slog.Warn("resolve failed",
			slog.String("url", ref.URL),
			slog.String("category", label),
			slog.Any("error", err),
		)
		return video
	}

	video.Title = md.Title
	video.Channel = md.Uploader
	video.Views = md.ViewCount
	video.Likes = md.LikeCount
	video.Comments = md.CommentCount
	video.DurationSeconds = md.Duration
	video.Duration = parser.FormatDuration(md.Duration)
	video.UploadDate = md.UploadDate
	video.Date = parser.FormatUploadDate(md.UploadDate)

	e.fetchThumbnail(ctx, video, md.ThumbnailURL)
	return video
}

func (e *Enricher) fetchThumbnail(ctx context.Context, video *models.Video, thumbURL models.Field[string]) {
	imageURL, ok := thumbURL.Get()
	if !ok {
		video.Errors = append(video.Errors, "thumbnail:missing")
		return
	}
	if e.thumbs == nil || e.thumbDir == "" {
		return
	}

	dest := filepath.Join(e.thumbDir, fmt.Sprintf("thumbnail_%d.jpg", video.Index))
	if err := e.thumbs.Fetch(ctx, imageURL, dest); err != nil {
		label := scraper.ErrorTypeLabel(err)
		video.Errors = append(video.Errors, "thumbnail:"+label)
		slog.Warn("thumbnail failed",
			slog.String("url", video.URL),
			slog.String("category", label),
			slog.Any("error", err),
		)
		return
	}
	video.Thumbnail = models.Known(dest)
}

// EnrichAll enriches refs with the configured number of workers.
// Index i+1 is assigned to refs[i] and the output keeps input order.
func (e *Enricher) EnrichAll(ctx context.Context, refs []models.VideoRef) []*models.Video {
	videos := make([]*models.Video, len(refs))
	if len(refs) == 0 {
		return videos
	}

	workers := min(e.workers, len(refs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				videos[i] = e.Enrich(ctx, refs[i], i+1)
				slog.Debug("video enriched",
					slog.Int("index", i+1),
					slog.Int("total", len(refs)),
					slog.String("url", refs[i].URL),
				)
			}
		}()
	}

	for i := range refs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return videos
}
