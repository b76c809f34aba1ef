package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/aluiziolira/go-media-trends/config"
	"github.com/aluiziolira/go-media-trends/models"
)

// Metadata is what the resolver knows about one video. Any field may be absent.
type Metadata struct {
	Title        models.Field[string]
	Uploader     models.Field[string]
	ViewCount    models.Field[int64]
	LikeCount    models.Field[int64]
	CommentCount models.Field[int64]
	Duration     models.Field[int64]
	ThumbnailURL models.Field[string]
	UploadDate   models.Field[string]
}

// Resolver resolves full metadata for a canonical video URL.
type Resolver interface {
	Resolve(ctx context.Context, videoURL string) (*Metadata, error)
}

// CommandRunner runs an external command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// YtDlpResolver shells out to yt-dlp and decodes its JSON dump.
type YtDlpResolver struct {
	path    string
	timeout time.Duration
	run     CommandRunner
	metrics *Metrics
}

// NewYtDlpResolver builds a resolver from cfg.
func NewYtDlpResolver(cfg *config.Config, metrics *Metrics) *YtDlpResolver {
	return &YtDlpResolver{
		path:    cfg.YtDlpPath,
		timeout: cfg.ResolveTimeout,
		run:     execRunner,
		metrics: metrics,
	}
}

// WithRunner swaps the command runner.
func (r *YtDlpResolver) WithRunner(run CommandRunner) *YtDlpResolver {
	r.run = run
	return r
}

// Resolve runs yt-dlp for videoURL without downloading media.
func (r *YtDlpResolver) Resolve(ctx context.Context, videoURL string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.metrics.IncRequest(SourceResolve)
	start := time.Now()
	out, err := r.run(ctx, r.path,
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		videoURL,
	)
	r.metrics.ObserveDuration(SourceResolve, time.Since(start))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout{Err: ctx.Err()}
		}
		return nil, r.fail(ErrResolve{URL: videoURL, Err: err})
	}

	md, err := DecodeMetadata(bytes.NewReader(out))
	if err != nil {
		return nil, r.fail(ErrResolve{URL: videoURL, Err: err})
	}
	return md, nil
}

func (r *YtDlpResolver) fail(err error) error {
	r.metrics.IncError(SourceResolve, ErrorTypeLabel(err))
	return err
}

// DecodeMetadata reads a yt-dlp info JSON document.
// Counters that are missing, null, or not integers decode as unknown.
func DecodeMetadata(r io.Reader) (*Metadata, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var info map[string]any
	if err := dec.Decode(&info); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("decode metadata: empty document")
	}

	uploader := stringField(info, "uploader")
	if !uploader.IsKnown() {
		uploader = stringField(info, "channel")
	}

	return &Metadata{
		Title:        stringField(info, "title"),
		Uploader:     uploader,
		ViewCount:    intField(info, "view_count"),
		LikeCount:    intField(info, "like_count"),
		CommentCount: intField(info, "comment_count"),
		Duration:     intField(info, "duration"),
		ThumbnailURL: stringField(info, "thumbnail"),
		UploadDate:   stringField(info, "upload_date"),
	}, nil
}

func stringField(info map[string]any, key string) models.Field[string] {
	s, ok := info[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return models.Unknown[string]()
	}
	return models.Known(s)
}

func intField(info map[string]any, key string) models.Field[int64] {
	n, ok := info[key].(json.Number)
	if !ok {
		return models.Unknown[int64]()
	}
	v, err := n.Int64()
	if err != nil {
		return models.Unknown[int64]()
	}
	return models.Known(v)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
