package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aluiziolira/go-media-trends/models"
)

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single", input: "andhra", expected: []string{"andhra"}},
		{name: "trimmed", input: " andhra ,  #vizag ", expected: []string{"andhra", "#vizag"}},
		{name: "blank entries", input: "a,, ,b,", expected: []string{"a", "b"}},
		{name: "repeats", input: "a,b,a", expected: []string{"a", "b"}},
		{name: "empty", input: "  ", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKeywords(tt.input)
			if strings.Join(got, "|") != strings.Join(tt.expected, "|") {
				t.Errorf("ParseKeywords(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected string
		wantErr  bool
	}{
		{name: "valid", id: "dQw4w9WgXcQ", expected: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "surrounding space", id: " dQw4w9WgXcQ ", expected: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "too short", id: "X9", wantErr: true},
		{name: "bad chars", id: "dQw4w9WgX?Q", wantErr: true},
		{name: "empty", id: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanonicalURL(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.id, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    models.Field[int64]
		expected string
	}{
		{name: "hour minute second", input: models.Known[int64](3661), expected: "01:01:01"},
		{name: "zero", input: models.Known[int64](0), expected: "00:00:00"},
		{name: "under a minute", input: models.Known[int64](59), expected: "00:00:59"},
		{name: "hours above 99", input: models.Known[int64](100*3600 + 5), expected: "100:00:05"},
		{name: "unknown", input: models.Unknown[int64](), expected: "unknown"},
		{name: "negative", input: models.Known[int64](-1), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.input); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatUploadDate(t *testing.T) {
	tests := []struct {
		name     string
		input    models.Field[string]
		expected string
	}{
		{name: "valid", input: models.Known("20240305"), expected: "05/03/2024, 00:00:00"},
		{name: "malformed", input: models.Known("abc"), expected: "unknown"},
		{name: "impossible day", input: models.Known("20240230"), expected: "unknown"},
		{name: "too long", input: models.Known("202403051"), expected: "unknown"},
		{name: "missing", input: models.Unknown[string](), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUploadDate(tt.input); got != tt.expected {
				t.Errorf("FormatUploadDate(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSearchPage(t *testing.T) {
	page := buildResultsPage([]string{"aaaaaaaaaa1", "bbbbbbbbbb2", "ccccccccccc"})

	hits, err := ParseSearchPage(strings.NewReader(page), "andhra", 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].ID != "aaaaaaaaaa1" || hits[1].ID != "bbbbbbbbbb2" {
		t.Fatalf("unexpected order: %+v", hits)
	}
	if hits[0].Title != "Video aaaaaaaaaa1" || hits[0].Channel != "Channel {1}" || hits[0].Keyword != "andhra" {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
}

func TestParseSearchPageMissingPayload(t *testing.T) {
	_, err := ParseSearchPage(strings.NewReader("<html><body>consent</body></html>"), "x", 20)
	if err != ErrNoInitialData {
		t.Fatalf("expected ErrNoInitialData, got %v", err)
	}
}

func TestParseSearchAPI(t *testing.T) {
	body := `{"items":[{"id":{"videoId":"aaaaaaaaaa1"},"snippet":{"title":"One","channelTitle":"Chan"}},{"id":{"channelId":"UC1"}},{"id":{"videoId":"bbbbbbbbbb2"},"snippet":{"title":"Two"}}]}`
	hits, err := ParseSearchAPI(strings.NewReader(body), "kw", 20)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(hits) != 2 || hits[0].Channel != "Chan" || hits[1].ID != "bbbbbbbbbb2" {
		t.Fatalf("unexpected hits: %+v", hits)
	}

	if _, err := ParseSearchAPI(strings.NewReader(`{"error":{"code":403,"message":"quota"}}`), "kw", 20); err == nil {
		t.Fatalf("expected api error")
	}
}

func TestExtractJSONHandlesEscapes(t *testing.T) {
	raw := []byte(`{"a":"brace } in \"string\" \\","b":{"c":1}};var other = {};`)
	got := extractJSON(raw)
	want := `{"a":"brace } in \"string\" \\","b":{"c":1}}`
	if string(got) != want {
		t.Fatalf("extractJSON = %s, want %s", got, want)
	}
}

// buildResultsPage renders a minimal results page embedding ytInitialData for ids.
func buildResultsPage(ids []string) string {
	var items []string
	for i, id := range ids {
		items = append(items, fmt.Sprintf(
			`{"videoRenderer":{"videoId":%q,"title":{"runs":[{"text":"Video %s"}]},"ownerText":{"runs":[{"text":"Channel {%d}"}]}}}`,
			id, id, i+1))
	}
	items = append(items, `{"adSlotRenderer":{}}`)
	data := fmt.Sprintf(
		`{"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[%s]}},{"continuationItemRenderer":{}}]}}}}}`,
		strings.Join(items, ","))
	return "<html><head><script>var other = 1;</script><script>var ytInitialData = " + data + ";</script></head><body></body></html>"
}
