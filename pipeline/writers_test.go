package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/aluiziolira/go-media-trends/models"
	"github.com/aluiziolira/go-media-trends/scraper"
)

func sampleVideo() *models.Video {
	v := models.NewVideo(ref("aaaaaaaaaa1"), 1)
	v.Title = models.Known("Test Video")
	v.Channel = models.Known("Channel")
	v.Views = models.Known[int64](10)
	v.DurationSeconds = models.Known[int64](65)
	v.Duration = "00:01:05"
	v.UploadDate = models.Known("20240101")
	v.Date = "01/01/2024, 00:00:00"
	return v
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.Video{sampleVideo()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("csv visible before close")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "title" || records[0][2] != "channel_name" || len(records[0]) != 9 {
		t.Fatalf("unexpected header: %v", records[0])
	}
	record := records[1]
	if record[0] != "Test Video" || record[5] != models.UnknownMarker || record[7] != models.AbsentMarker {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.Video{sampleVideo(), sampleVideo()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode json line: %v", err)
		}
		if decoded["title"] != "Test Video" || decoded["likes"] != models.UnknownMarker {
			t.Fatalf("unexpected record: %v", decoded)
		}
		if _, ok := decoded["upload_date"]; ok {
			t.Fatalf("raw upload date exported: %v", decoded)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if lines != 2 {
		t.Fatalf("lines=%d, want 2", lines)
	}
}

func TestXLSXWriterEmbedsThumbnails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "youtube_data.xlsx")

	thumb := filepath.Join(dir, "thumbnail_1.jpg")
	if err := scraper.WriteJPEG(thumb, image.NewRGBA(image.Rect(0, 0, 200, 100))); err != nil {
		t.Fatalf("write thumbnail: %v", err)
	}

	withThumb := sampleVideo()
	withThumb.Thumbnail = models.Known(thumb)
	vanished := sampleVideo()
	vanished.Thumbnail = models.Known(filepath.Join(dir, "gone.jpg"))
	without := sampleVideo()

	writer, err := NewXLSXWriter(path)
	if err != nil {
		t.Fatalf("create xlsx writer: %v", err)
	}
	if err := writer.Write([]*models.Video{withThumb, vanished, without}); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close xlsx: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate xlsx: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows=%d, want 4", len(rows))
	}

	pics, err := f.GetPictures(sheet, "H2")
	if err != nil || len(pics) != 1 {
		t.Fatalf("pictures at H2 = %d, err %v", len(pics), err)
	}
	for _, cell := range []string{"H3", "H4"} {
		pics, err := f.GetPictures(sheet, cell)
		if err != nil || len(pics) != 0 {
			t.Fatalf("pictures at %s = %d, err %v", cell, len(pics), err)
		}
		if value, _ := f.GetCellValue(sheet, cell); value != models.AbsentMarker {
			t.Fatalf("%s = %q, want absent", cell, value)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriterFailedWriteLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	writer.err = os.ErrClosed
	if err := writer.Close(); err == nil {
		t.Fatalf("expected close to report the earlier failure")
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected validate to fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("files left behind: %v", entries)
	}
}

func TestNewWriterDual(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "youtube_data.xlsx")

	writer, err := NewWriter("dual", path)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]*models.Video{sampleVideo()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	for _, name := range []string{"youtube_data.xlsx", "youtube_data.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	if _, err := NewWriter("parquet", path); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestWritersWithTransientThumbnails(t *testing.T) {
	dir := t.TempDir()
	thumb := filepath.Join(dir, "thumbs", "thumbnail_1.jpg")
	if err := scraper.WriteJPEG(thumb, image.NewRGBA(image.Rect(0, 0, 200, 100))); err != nil {
		t.Fatalf("write thumbnail: %v", err)
	}
	video := sampleVideo()
	video.Thumbnail = models.Known(thumb)
	videos := []*models.Video{video}

	csvPath := filepath.Join(dir, "out.csv")
	csvWriter, err := NewCSVWriter(csvPath, WithTransientThumbnails())
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := csvWriter.Write(videos); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := csvWriter.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	file, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if got := records[1][7]; got != models.AbsentMarker {
		t.Fatalf("csv thumbnail = %q, want %q", got, models.AbsentMarker)
	}

	jsonPath := filepath.Join(dir, "out.jsonl")
	jsonWriter, err := NewJSONWriter(jsonPath, WithTransientThumbnails())
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := jsonWriter.Write(videos); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := jsonWriter.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if strings.Contains(string(data), thumb) {
		t.Fatalf("json references thumbnail path: %s", data)
	}

	xlsxPath := filepath.Join(dir, "out.xlsx")
	xlsxWriter, err := NewXLSXWriter(xlsxPath, WithTransientThumbnails())
	if err != nil {
		t.Fatalf("create xlsx writer: %v", err)
	}
	if err := xlsxWriter.Write(videos); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	if err := os.Remove(thumb); err != nil {
		t.Fatalf("remove thumbnail: %v", err)
	}
	if err := xlsxWriter.Close(); err != nil {
		t.Fatalf("close xlsx: %v", err)
	}

	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	pics, err := f.GetPictures(sheet, "H2")
	if err != nil || len(pics) != 1 {
		t.Fatalf("pictures at H2 = %d, err %v", len(pics), err)
	}
	if value, _ := f.GetCellValue(sheet, "H2"); value != "thumbnail_1.jpg" {
		t.Fatalf("H2 = %q, want thumbnail_1.jpg", value)
	}
}
