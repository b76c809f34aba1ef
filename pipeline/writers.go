package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-media-trends/models"
)

// OutputWriter defines the interface for data output.
// Nothing is visible at the destination path until Close succeeds.
type OutputWriter interface {
	Write(videos []*models.Video) error
	Close() error
	Validate() error
}

// WriterOption configures an output writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	transientThumbnails bool
}

// WithTransientThumbnails marks thumbnail files as removed after export.
// Plain-text outputs then write "absent" and the workbook keeps only the file name.
func WithTransientThumbnails() WriterOption {
	return func(o *writerOptions) {
		o.transientThumbnails = true
	}
}

func applyOptions(opts []WriterOption) writerOptions {
	var o writerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// exportRow is v.Row with the thumbnail cell adjusted for files that will not outlive the run.
func (o writerOptions) exportRow(v *models.Video) models.Row {
	row := v.Row()
	if o.transientThumbnails && v.Thumbnail.IsKnown() {
		row.Thumbnail = models.AbsentMarker
	}
	return row
}

// NewWriter returns the writer for format ("xlsx", "csv", "json" or "dual").
func NewWriter(format, filename string, opts ...WriterOption) (OutputWriter, error) {
	switch format {
	case "", "xlsx":
		return NewXLSXWriter(filename, opts...)
	case "csv":
		return NewCSVWriter(filename, opts...)
	case "json":
		return NewJSONWriter(filename, opts...)
	case "dual":
		csvFilename := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".csv"
		return NewDualWriter(filename, csvFilename, opts...)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// pendingFile is a temp file next to path that replaces path on commit.
type pendingFile struct {
	path      string
	file      *os.File
	committed bool
}

func createPending(filename string) (*pendingFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	base := filepath.Base(filename)
	f, err := os.CreateTemp(filepath.Dir(filename), "."+base+"-*"+filepath.Ext(base))
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", filename, err)
	}
	return &pendingFile{path: filename, file: f}, nil
}

func (p *pendingFile) commit() error {
	if err := p.file.Close(); err != nil {
		os.Remove(p.file.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(p.file.Name(), p.path); err != nil {
		os.Remove(p.file.Name())
		return fmt.Errorf("rename %s: %w", p.path, err)
	}
	p.committed = true
	return nil
}

func (p *pendingFile) discard() {
	p.file.Close()
	os.Remove(p.file.Name())
}

// validate ensures the committed artifact exists and has content.
func (p *pendingFile) validate() error {
	if !p.committed {
		return fmt.Errorf("%s has not been written", p.path)
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p.path, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s is empty", p.path)
	}
	return nil
}

// CSVWriter writes records to CSV.
type CSVWriter struct {
	out    *pendingFile
	writer *csv.Writer
	opts   writerOptions
	err    error
	closed bool
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string, opts ...WriterOption) (*CSVWriter, error) {
	out, err := createPending(filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(out.file)
	if err := writer.Write(models.Columns); err != nil {
		out.discard()
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	return &CSVWriter{
		out:    out,
		writer: writer,
		opts:   applyOptions(opts),
	}, nil
}

// Write appends videos to the CSV output.
func (cw *CSVWriter) Write(videos []*models.Video) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return errWriterClosed
	}
	for _, video := range videos {
		if err := cw.writer.Write(cw.opts.exportRow(video).Values()); err != nil {
			cw.err = fmt.Errorf("write csv record: %w", err)
			return cw.err
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.err = fmt.Errorf("flush csv records: %w", err)
		return cw.err
	}
	return nil
}

// Close flushes and commits the file. After a failed Write nothing is committed.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return nil
	}
	cw.closed = true
	if cw.err != nil {
		cw.out.discard()
		return cw.err
	}

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.out.discard()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.out.commit()
}

// Validate ensures the committed file has content.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.out.validate()
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	out     *pendingFile
	writer  *bufio.Writer
	encoder *json.Encoder
	opts    writerOptions
	err     error
	closed  bool
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string, opts ...WriterOption) (*JSONWriter, error) {
	out, err := createPending(filename)
	if err != nil {
		return nil, err
	}

	buffer := bufio.NewWriter(out.file)
	return &JSONWriter{
		out:     out,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
		opts:    applyOptions(opts),
	}, nil
}

// Write appends videos in JSONL format.
func (jw *JSONWriter) Write(videos []*models.Video) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return errWriterClosed
	}
	for _, video := range videos {
		if err := jw.encoder.Encode(jw.opts.exportRow(video)); err != nil {
			jw.err = fmt.Errorf("encode json record: %w", err)
			return jw.err
		}
	}

	if err := jw.writer.Flush(); err != nil {
		jw.err = fmt.Errorf("flush json writer: %w", err)
		return jw.err
	}

	return nil
}

// Close flushes buffers and commits the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return nil
	}
	jw.closed = true
	if jw.err != nil {
		jw.out.discard()
		return jw.err
	}

	if err := jw.writer.Flush(); err != nil {
		jw.out.discard()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.out.commit()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.validate()
}

var errWriterClosed = errors.New("pipeline: writer closed")

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
