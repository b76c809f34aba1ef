package models

import (
	"encoding/json"
	"testing"
)

func TestFieldMarkers(t *testing.T) {
	if got := Unknown[int64]().String(); got != "unknown" {
		t.Fatalf("unknown field = %q", got)
	}
	if got := Known[int64](42).String(); got != "42" {
		t.Fatalf("known field = %q", got)
	}
	if got := Unknown[string]().StringOr(AbsentMarker); got != "absent" {
		t.Fatalf("absent marker = %q", got)
	}
	var p *string
	if FromPtr(p).IsKnown() {
		t.Fatalf("nil pointer should be unknown")
	}
}

func TestFieldMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		A Field[int64]  `json:"a"`
		B Field[string] `json:"b"`
	}{A: Known[int64](7), B: Unknown[string]()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"a":7,"b":"unknown"}` {
		t.Fatalf("json = %s", raw)
	}
}

func TestVideoRowOmitsUploadDate(t *testing.T) {
	v := NewVideo(VideoRef{ID: "abcdefghijk", URL: WatchURLPrefix + "abcdefghijk"}, 1)
	v.UploadDate = Known("20240101")
	v.Title = Known("Title")

	values := v.Row().Values()
	if len(values) != len(Columns) {
		t.Fatalf("row has %d cells, want %d", len(values), len(Columns))
	}
	for _, cell := range values {
		if cell == "20240101" {
			t.Fatalf("raw upload date leaked into row: %v", values)
		}
	}
	if values[7] != "absent" || values[8] != "unknown" || values[2] != "unknown" {
		t.Fatalf("unexpected markers: %v", values)
	}
}
