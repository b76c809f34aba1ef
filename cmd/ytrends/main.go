package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aluiziolira/go-media-trends/config"
	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/parser"
	"github.com/aluiziolira/go-media-trends/pipeline"
	"github.com/aluiziolira/go-media-trends/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitNoInput = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("ytrends", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (env YTRENDS_CONFIG)")
	keywords := fs.String("keywords", "", `Comma-separated keywords, e.g. "andhra news, vizag"`)
	searchLimit := fs.Int("limit", 0, "Search results per keyword")
	maxResults := fs.Int("max", 0, "Number of ranked videos to export")
	workers := fs.Int("workers", 0, "Concurrent enrichment workers")
	delay := fs.Duration("delay", 0, "Minimum spacing between metadata lookups")
	apiKey := fs.String("api-key", "", "YouTube Data API key; scrape the results page when empty")
	ytDlp := fs.String("yt-dlp", "", "Path to the yt-dlp binary")
	outputFile := fs.String("output", "", "Output file path")
	outputFormat := fs.String("format", "", "Output format: xlsx, csv, json, or dual")
	thumbDir := fs.String("thumbnail-dir", "", "Directory for downloaded thumbnails")
	keepThumbs := fs.Bool("keep-thumbnails", true, "Keep thumbnails on disk after export")
	verbose := fs.Bool("v", false, "Enable verbose logging")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	path := *configPath
	if path == "" {
		path, _ = config.EnvString("YTRENDS_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitFailure
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		return exitFailure
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "keywords":
			cfg.Keywords = parser.ParseKeywords(*keywords)
		case "limit":
			cfg.SearchLimit = *searchLimit
		case "max":
			cfg.MaxResults = *maxResults
		case "workers":
			cfg.EnrichWorkers = *workers
		case "delay":
			cfg.EnrichDelay = *delay
		case "api-key":
			cfg.APIKey = *apiKey
		case "yt-dlp":
			cfg.YtDlpPath = *ytDlp
		case "output":
			cfg.OutputFile = *outputFile
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "thumbnail-dir":
			cfg.ThumbnailDir = *thumbDir
		case "keep-thumbnails":
			cfg.KeepThumbnails = *keepThumbs
		case "v":
			cfg.Verbose = *verbose
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		}
	})
	if rest := fs.Args(); len(rest) > 0 {
		cfg.Keywords = append(cfg.Keywords, parser.ParseKeywords(strings.Join(rest, ","))...)
	}
	cfg.OutputFile = outputPath(cfg.OutputFormat, cfg.OutputFile)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return exitFailure
	}

	metrics := scraper.NewMetrics()
	searcher, err := scraper.NewSearcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising searcher", slog.Any("error", err))
		return exitFailure
	}
	enricher := pipeline.NewEnricher(
		scraper.NewYtDlpResolver(cfg, metrics),
		scraper.NewThumbnailFetcher(cfg, metrics),
		pipeline.NewLimiter(cfg.EnrichDelay),
		cfg.EnrichWorkers,
		metrics,
	)
	p := pipeline.NewPipeline(cfg, searcher, enricher, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	result, err := p.Run(ctx, cfg.Keywords)
	switch {
	case errors.Is(err, pipeline.ErrNoInput):
		fmt.Fprintln(stdout, "no input")
		return exitNoInput
	case errors.Is(err, pipeline.ErrNoResults):
		fmt.Fprintln(stdout, "no results")
		return exitOK
	case err != nil:
		var exportErr *pipeline.ExportError
		if errors.As(err, &exportErr) {
			slog.Error("export failed", slog.String("path", exportErr.Path), slog.Any("error", exportErr.Err))
		} else {
			slog.Error("run failed", slog.Any("error", err))
		}
		return exitFailure
	}

	printSummary(stdout, result, p.GetMetrics())
	return exitOK
}

// outputPath swaps the default .xlsx extension for formats that are not workbooks.
func outputPath(format, filename string) string {
	if filepath.Ext(filename) != ".xlsx" {
		return filename
	}
	base := strings.TrimSuffix(filename, ".xlsx")
	switch format {
	case "csv":
		return base + ".csv"
	case "json":
		return base + ".jsonl"
	}
	return filename
}

func printSummary(w io.Writer, result *models.RunResult, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Top %d recent results\n\n", len(result.Videos))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tVIEWS\tDURATION\tCHANNEL\tTITLE\tURL")
	for i, video := range result.Videos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			video.Date,
			video.Views.String(),
			video.Duration,
			truncate(video.Channel.String(), 24),
			truncate(video.Title.String(), 48),
			video.URL,
		)
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "  Keywords:      %s\n", strings.Join(result.Keywords, ", "))
	fmt.Fprintf(w, "  Search hits:   %d\n", result.SearchHits)
	fmt.Fprintf(w, "  Unique videos: %d\n", result.UniqueCount)
	fmt.Fprintf(w, "  Enriched:      %d\n", result.EnrichedCount)
	fmt.Fprintf(w, "  Thumbnails:    %d\n", result.ThumbnailCount)
	if len(result.FailedKeywords) > 0 {
		fmt.Fprintf(w, "  Failed:        %s\n", strings.Join(result.FailedKeywords, ", "))
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Fprintf(w, "  Output file:   %s\n", result.OutputFile)
	if result.ThumbnailDir != "" {
		fmt.Fprintf(w, "  Thumbnails in: %s\n", result.ThumbnailDir)
	}
	fmt.Fprintln(w, separator)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
