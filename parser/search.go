package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-media-trends/models"
)

// ErrNoInitialData is returned when a results page carries no embedded search payload.
var ErrNoInitialData = errors.New("parser: ytInitialData not found")

var initialDataMarkers = []string{"var ytInitialData = ", `window["ytInitialData"] = `}

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
	SimpleText string `json:"simpleText"`
}

func (t textRuns) text() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var b strings.Builder
	for _, run := range t.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

type videoRenderer struct {
	VideoID   string   `json:"videoId"`
	Title     textRuns `json:"title"`
	OwnerText textRuns `json:"ownerText"`
}

type initialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer *struct {
							Contents []struct {
								VideoRenderer *videoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// ParseSearchPage extracts up to limit video hits from a results page, in page order.
func ParseSearchPage(r io.Reader, keyword string, limit int) ([]models.RawSearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var payload []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, marker := range initialDataMarkers {
			idx := strings.Index(text, marker)
			if idx < 0 {
				continue
			}
			payload = extractJSON([]byte(text[idx+len(marker):]))
			if payload != nil {
				return false
			}
		}
		return true
	})
	if payload == nil {
		return nil, ErrNoInitialData
	}

	var data initialData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode ytInitialData: %w", err)
	}

	hits := make([]models.RawSearchHit, 0, limit)
	sections := data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		if section.ItemSectionRenderer == nil {
			continue
		}
		for _, item := range section.ItemSectionRenderer.Contents {
			if len(hits) >= limit {
				return hits, nil
			}
			vr := item.VideoRenderer
			if vr == nil || vr.VideoID == "" {
				continue
			}
			hits = append(hits, models.RawSearchHit{
				ID:      vr.VideoID,
				Title:   vr.Title.text(),
				Channel: vr.OwnerText.text(),
				Keyword: keyword,
			})
		}
	}
	return hits, nil
}

type apiSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseSearchAPI decodes a Data API v3 search response.
func ParseSearchAPI(r io.Reader, keyword string, limit int) ([]models.RawSearchHit, error) {
	var resp apiSearchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search api response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("search api error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	hits := make([]models.RawSearchHit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if len(hits) >= limit {
			break
		}
		if item.ID.VideoID == "" {
			continue
		}
		hits = append(hits, models.RawSearchHit{
			ID:      item.ID.VideoID,
			Title:   item.Snippet.Title,
			Channel: item.Snippet.ChannelTitle,
			Keyword: keyword,
		})
	}
	return hits, nil
}

// extractJSON returns the object starting at b[0] by tracking brace depth outside strings.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
