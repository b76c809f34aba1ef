package pipeline

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/aluiziolira/go-media-trends/models"
)

// Embedded thumbnails are drawn at this size in pixels.
const (
	thumbnailCellWidth  = 100
	thumbnailCellHeight = 50
)

// thumbnailColumn is the 1-based column holding the thumbnail, "H".
var thumbnailColumn = columnIndex("thumbnail")

// XLSXWriter writes a workbook with one row per video and the thumbnail embedded in its row.
type XLSXWriter struct {
	out    *pendingFile
	file   *excelize.File
	sheet  string
	row    int
	opts   writerOptions
	err    error
	closed bool
	mu     sync.Mutex
}

// NewXLSXWriter creates the workbook and writes the header row.
func NewXLSXWriter(filename string, opts ...WriterOption) (*XLSXWriter, error) {
	out, err := createPending(filename)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := make([]any, len(models.Columns))
	for i, name := range models.Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		out.discard()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}

	col, err := excelize.ColumnNumberToName(thumbnailColumn)
	if err == nil {
		// Column width is in characters; roughly 7px each.
		err = f.SetColWidth(sheet, col, col, float64(thumbnailCellWidth)/7+1)
	}
	if err != nil {
		f.Close()
		out.discard()
		return nil, fmt.Errorf("size thumbnail column: %w", err)
	}

	return &XLSXWriter{
		out:   out,
		file:  f,
		sheet: sheet,
		row:   1,
		opts:  applyOptions(opts),
	}, nil
}

// Write appends one row per video.
func (xw *XLSXWriter) Write(videos []*models.Video) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.closed {
		return errWriterClosed
	}
	for _, video := range videos {
		if err := xw.writeRow(video); err != nil {
			xw.err = err
			return err
		}
	}
	return nil
}

func (xw *XLSXWriter) writeRow(video *models.Video) error {
	xw.row++
	cell, err := excelize.CoordinatesToCellName(1, xw.row)
	if err != nil {
		return fmt.Errorf("xlsx cell for row %d: %w", xw.row, err)
	}

	values := rowCells(video, xw.opts)
	if err := xw.file.SetSheetRow(xw.sheet, cell, &values); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", xw.row, err)
	}

	path, ok := video.Thumbnail.Get()
	if !ok {
		return nil
	}
	thumbCell, err := excelize.CoordinatesToCellName(thumbnailColumn, xw.row)
	if err != nil {
		return fmt.Errorf("xlsx thumbnail cell for row %d: %w", xw.row, err)
	}
	if err := xw.embed(thumbCell, path); err != nil {
		slog.Warn("thumbnail not embedded",
			slog.String("path", path),
			slog.Int("row", xw.row),
			slog.Any("error", err),
		)
		return xw.file.SetCellValue(xw.sheet, thumbCell, models.AbsentMarker)
	}
	// Points are 3/4 of a pixel.
	return xw.file.SetRowHeight(xw.sheet, xw.row, float64(thumbnailCellHeight)*0.75)
}

func (xw *XLSXWriter) embed(cell, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read image size: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("image has no size")
	}

	return xw.file.AddPicture(xw.sheet, cell, path, &excelize.GraphicOptions{
		ScaleX:      float64(thumbnailCellWidth) / float64(cfg.Width),
		ScaleY:      float64(thumbnailCellHeight) / float64(cfg.Height),
		Positioning: "oneCell",
		AltText:     "thumbnail",
	})
}

// rowCells keeps known counters numeric so spreadsheet tools can sort them.
// A thumbnail file removed after export is named without its directory.
func rowCells(video *models.Video, opts writerOptions) []any {
	row := video.Row()
	if path, ok := video.Thumbnail.Get(); ok && opts.transientThumbnails {
		row.Thumbnail = filepath.Base(path)
	}
	cells := make([]any, 0, len(models.Columns))
	for i, value := range row.Values() {
		cells = append(cells, value)
		switch models.Columns[i] {
		case "views":
			cells[i] = numericCell(video.Views, value)
		case "likes":
			cells[i] = numericCell(video.Likes, value)
		case "comments":
			cells[i] = numericCell(video.Comments, value)
		}
	}
	return cells
}

func numericCell(f models.Field[int64], rendered string) any {
	if v, ok := f.Get(); ok {
		return v
	}
	return rendered
}

// Close saves the workbook and moves it into place.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.closed {
		return nil
	}
	xw.closed = true
	defer xw.file.Close()

	if xw.err != nil {
		xw.out.discard()
		return xw.err
	}
	if _, err := xw.file.WriteTo(xw.out.file); err != nil {
		xw.out.discard()
		return fmt.Errorf("save workbook: %w", err)
	}
	return xw.out.commit()
}

// Validate ensures the workbook was saved with content.
func (xw *XLSXWriter) Validate() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	return xw.out.validate()
}

func columnIndex(name string) int {
	for i, column := range models.Columns {
		if column == name {
			return i + 1
		}
	}
	return len(models.Columns)
}
