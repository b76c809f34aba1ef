// Package models defines data structures for the aggregator.
package models

import "time"

// WatchURLPrefix is the canonical watch URL prefix; the video ID follows it.
const WatchURLPrefix = "https://www.youtube.com/watch?v="

// Columns is the export header, in column order.
var Columns = []string{"title", "url", "channel_name", "views", "duration", "likes", "comments", "thumbnail", "date"}

// RawSearchHit is one result returned by a keyword search.
type RawSearchHit struct {
	ID      string
	Title   string
	Channel string
	Keyword string
}

// VideoRef is the deduplication key and unit of enrichment work.
type VideoRef struct {
	ID  string
	URL string
}

// Video is an enriched video record.
type Video struct {
	Index           int
	ID              string
	URL             string
	Title           Field[string]
	Channel         Field[string]
	Views           Field[int64]
	DurationSeconds Field[int64]
	Duration        string
	Likes           Field[int64]
	Comments        Field[int64]
	Thumbnail       Field[string]
	Date            string
	// UploadDate is the raw YYYYMMDD value. It is used for ranking only and never exported.
	UploadDate Field[string]
	Errors     []string
}

// NewVideo returns a record with every field unresolved.
func NewVideo(ref VideoRef, index int) *Video {
	return &Video{
		Index:    index,
		ID:       ref.ID,
		URL:      ref.URL,
		Duration: UnknownMarker,
		Date:     UnknownMarker,
	}
}

// Row is the exported form of a Video.
type Row struct {
	Title       string `csv:"title" json:"title"`
	URL         string `csv:"url" json:"url"`
	ChannelName string `csv:"channel_name" json:"channel_name"`
	Views       string `csv:"views" json:"views"`
	Duration    string `csv:"duration" json:"duration"`
	Likes       string `csv:"likes" json:"likes"`
	Comments    string `csv:"comments" json:"comments"`
	Thumbnail   string `csv:"thumbnail" json:"thumbnail"`
	Date        string `csv:"date" json:"date"`
}

// Row flattens v for export.
func (v *Video) Row() Row {
	return Row{
		Title:       v.Title.String(),
		URL:         v.URL,
		ChannelName: v.Channel.String(),
		Views:       v.Views.String(),
		Duration:    v.Duration,
		Likes:       v.Likes.String(),
		Comments:    v.Comments.String(),
		Thumbnail:   v.Thumbnail.StringOr(AbsentMarker),
		Date:        v.Date,
	}
}

// Values returns the row cells in Columns order.
func (r Row) Values() []string {
	return []string{r.Title, r.URL, r.ChannelName, r.Views, r.Duration, r.Likes, r.Comments, r.Thumbnail, r.Date}
}

// RunResult holds the overall result of one aggregation run.
type RunResult struct {
	RunID          string
	Keywords       []string
	Videos         []*Video
	SearchHits     int
	UniqueCount    int
	EnrichedCount  int
	ThumbnailCount int
	FailedKeywords []string
	ErrorsByType   map[string]int
	OutputFile     string
	ThumbnailDir   string
	StartTime      time.Time
	EndTime        time.Time
}
