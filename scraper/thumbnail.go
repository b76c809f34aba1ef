package scraper

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/aluiziolira/go-media-trends/config"
)

const (
	maxThumbnailBytes = 8 << 20
	jpegQuality       = 90
)

// ThumbnailFetcher downloads, validates and normalizes thumbnail images.
type ThumbnailFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxWidth  int
	maxHeight int
	userAgent string
	metrics   *Metrics
}

// NewThumbnailFetcher builds a fetcher from cfg.
func NewThumbnailFetcher(cfg *config.Config, metrics *Metrics) *ThumbnailFetcher {
	return &ThumbnailFetcher{
		client:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:   cfg.ThumbnailTimeout,
		maxWidth:  cfg.ThumbnailMaxWidth,
		maxHeight: cfg.ThumbnailMaxHeight,
		userAgent: cfg.UserAgent,
		metrics:   metrics,
	}
}

// SetTransport replaces the HTTP transport.
func (f *ThumbnailFetcher) SetTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Fetch downloads imageURL, checks that it decodes as an image and stores it as JPEG at dest.
// Nothing is written to dest unless the image is valid.
func (f *ThumbnailFetcher) Fetch(ctx context.Context, imageURL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.metrics.IncRequest(SourceThumbnail)
	start := time.Now()
	data, err := f.download(ctx, imageURL)
	f.metrics.ObserveDuration(SourceThumbnail, time.Since(start))
	if err != nil {
		return f.fail(err)
	}

	img, format, err := DecodeImage(data)
	if err != nil {
		return f.fail(err)
	}
	slog.Debug("thumbnail decoded",
		slog.String("url", imageURL),
		slog.String("format", format),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
	)

	img = FitWithin(img, f.maxWidth, f.maxHeight)
	if err := WriteJPEG(dest, img); err != nil {
		return f.fail(fmt.Errorf("store thumbnail: %w", err))
	}
	return nil
}

func (f *ThumbnailFetcher) fail(err error) error {
	f.metrics.IncError(SourceThumbnail, ErrorTypeLabel(err))
	return err
}

func (f *ThumbnailFetcher) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build thumbnail request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ClassifyError(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyError(nil, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return nil, ClassifyError(err, 0)
	}
	return data, nil
}

// DecodeImage validates that data is a JPEG, PNG, GIF or WebP image.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrInvalidImage{Err: fmt.Errorf("empty body")}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrInvalidImage{Err: err}
	}
	return img, format, nil
}

// FitWithin downscales img to fit maxWidth x maxHeight, keeping the aspect ratio.
func FitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth && h <= maxHeight {
		return img
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// WriteJPEG flattens img onto white and writes it to path through a temp file and rename.
func WriteJPEG(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	tmp, err := os.CreateTemp(dir, ".thumbnail-*.jpg")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode jpeg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
