package pipeline

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/parser"
)

type dedupeStats struct {
	hits       int
	duplicates int
	invalid    int
}

// Dedupe flattens per-keyword results and keeps the first occurrence of each canonical URL.
// Hits with malformed IDs are skipped.
func Dedupe(keywordResults [][]models.RawSearchHit) []models.VideoRef {
	refs, _ := dedupe(keywordResults)
	return refs
}

func dedupe(keywordResults [][]models.RawSearchHit) ([]models.VideoRef, dedupeStats) {
	var stats dedupeStats
	for _, hits := range keywordResults {
		stats.hits += len(hits)
	}
	if stats.hits == 0 {
		return nil, stats
	}

	// Sized to every hit so nothing is evicted within one call.
	seen, err := lru.New[string, struct{}](stats.hits)
	if err != nil {
		slog.Error("allocate dedupe cache", slog.Any("error", err))
		return nil, stats
	}

	refs := make([]models.VideoRef, 0, stats.hits)
	for _, hits := range keywordResults {
		for _, hit := range hits {
			url, err := parser.CanonicalURL(hit.ID)
			if err != nil {
				stats.invalid++
				slog.Debug("skipping search hit", slog.String("keyword", hit.Keyword), slog.Any("error", err))
				continue
			}
			if found, _ := seen.ContainsOrAdd(url, struct{}{}); found {
				stats.duplicates++
				continue
			}
			refs = append(refs, models.VideoRef{ID: hit.ID, URL: url})
		}
	}
	return refs, stats
}
