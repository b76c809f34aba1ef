package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-media-trends/config"
)

const sampleInfoJSON = `{
	"id": "dQw4w9WgXcQ",
	"title": "Morning bulletin",
	"uploader": "News Channel",
	"view_count": 1200,
	"like_count": 45,
	"comment_count": null,
	"duration": 3725,
	"thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
	"upload_date": "20240101"
}`

func TestDecodeMetadata(t *testing.T) {
	md, err := DecodeMetadata(strings.NewReader(sampleInfoJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if md.Title.StringOr("") != "Morning bulletin" || md.Uploader.StringOr("") != "News Channel" {
		t.Fatalf("unexpected text fields: %+v", md)
	}
	if v, ok := md.ViewCount.Get(); !ok || v != 1200 {
		t.Fatalf("views = %v/%v, want 1200", v, ok)
	}
	if md.CommentCount.IsKnown() {
		t.Fatalf("null comment_count should be unknown")
	}
	if v, _ := md.Duration.Get(); v != 3725 {
		t.Fatalf("duration = %d, want 3725", v)
	}
	if md.UploadDate.StringOr("") != "20240101" {
		t.Fatalf("upload date = %q", md.UploadDate.StringOr(""))
	}
}

func TestDecodeMetadataMissingAndNonInteger(t *testing.T) {
	md, err := DecodeMetadata(strings.NewReader(`{"channel":"Fallback","view_count":"lots","duration":12.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if md.Uploader.StringOr("") != "Fallback" {
		t.Fatalf("uploader should fall back to channel, got %q", md.Uploader.StringOr(""))
	}
	if md.ViewCount.IsKnown() || md.Duration.IsKnown() {
		t.Fatalf("non-integer counters should be unknown: %+v", md)
	}
	if md.Title.IsKnown() || md.ThumbnailURL.IsKnown() || md.UploadDate.IsKnown() {
		t.Fatalf("missing fields should be unknown: %+v", md)
	}
}

func TestDecodeMetadataRejectsGarbage(t *testing.T) {
	if _, err := DecodeMetadata(strings.NewReader("not json")); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := DecodeMetadata(strings.NewReader("null")); err == nil {
		t.Fatalf("expected error for null document")
	}
}

func TestYtDlpResolverPassesArguments(t *testing.T) {
	cfg := config.DefaultConfig()
	var gotName string
	var gotArgs []string
	resolver := NewYtDlpResolver(cfg, NewMetrics()).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte(sampleInfoJSON), nil
	})

	md, err := resolver.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if md.Title.StringOr("") != "Morning bulletin" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if gotName != "yt-dlp" {
		t.Fatalf("binary = %q, want yt-dlp", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--dump-single-json", "--skip-download", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestYtDlpResolverFailures(t *testing.T) {
	cfg := config.DefaultConfig()

	failing := NewYtDlpResolver(cfg, NewMetrics()).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("video unavailable")
	})
	_, err := failing.Resolve(context.Background(), "https://www.youtube.com/watch?v=aaaaaaaaaaa")
	var resolveErr ErrResolve
	if !errors.As(err, &resolveErr) {
		t.Fatalf("expected ErrResolve, got %v", err)
	}
	if got := ErrorTypeLabel(err); got != "resolve" {
		t.Fatalf("label = %q, want resolve", got)
	}

	cfg.ResolveTimeout = 10 * time.Millisecond
	slow := NewYtDlpResolver(cfg, NewMetrics()).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err = slow.Resolve(context.Background(), "https://www.youtube.com/watch?v=aaaaaaaaaaa")
	if got := ErrorTypeLabel(err); got != "timeout" {
		t.Fatalf("label = %q, want timeout (err %v)", got, err)
	}

	bad := NewYtDlpResolver(config.DefaultConfig(), nil).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("WARNING: something"), nil
	})
	if _, err := bad.Resolve(context.Background(), "u"); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("first\nERROR: private video\n"); got != "ERROR: private video" {
		t.Fatalf("lastLine = %q", got)
	}
	if got := lastLine(""); got != "" {
		t.Fatalf("lastLine of empty = %q", got)
	}
}
