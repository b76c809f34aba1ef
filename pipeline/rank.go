package pipeline

import (
	"sort"

	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/parser"
)

// DefaultCap is the number of videos kept after ranking.
const DefaultCap = 20

// Rank orders items by raw upload date, most recent first, and keeps at most limit of them.
// Items without a valid YYYYMMDD date go last in their original order. A limit of zero or less means DefaultCap.
func Rank(items []*models.Video, limit int) []*models.Video {
	if limit <= 0 {
		limit = DefaultCap
	}

	ranked := make([]*models.Video, 0, len(items))
	for _, item := range items {
		if item != nil {
			ranked = append(ranked, item)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		di, oki := rankKey(ranked[i])
		dj, okj := rankKey(ranked[j])
		if oki != okj {
			return oki
		}
		return di > dj
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func rankKey(v *models.Video) (string, bool) {
	raw := v.UploadDate.Or("")
	if !parser.ValidUploadDate(raw) {
		return "", false
	}
	return raw, true
}
