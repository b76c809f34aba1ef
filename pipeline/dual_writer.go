package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-media-trends/models"
)

// DualWriter outputs the workbook and a plain CSV copy together.
type DualWriter struct {
	xlsxWriter *XLSXWriter
	csvWriter  *CSVWriter
	mu         sync.Mutex
}

// NewDualWriter creates a writer for both XLSX and CSV output.
func NewDualWriter(xlsxFilename, csvFilename string, opts ...WriterOption) (*DualWriter, error) {
	xlsxWriter, err := NewXLSXWriter(xlsxFilename, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create XLSX writer: %w", err)
	}

	csvWriter, err := NewCSVWriter(csvFilename, opts...)
	if err != nil {
		xlsxWriter.err = err
		xlsxWriter.Close()
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	return &DualWriter{
		xlsxWriter: xlsxWriter,
		csvWriter:  csvWriter,
	}, nil
}

// Write writes videos to both outputs.
func (dw *DualWriter) Write(videos []*models.Video) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.xlsxWriter.Write(videos); err != nil {
		dw.csvWriter.mu.Lock()
		dw.csvWriter.err = err
		dw.csvWriter.mu.Unlock()
		return fmt.Errorf("XLSX write failed: %w", err)
	}

	if err := dw.csvWriter.Write(videos); err != nil {
		dw.xlsxWriter.mu.Lock()
		dw.xlsxWriter.err = err
		dw.xlsxWriter.mu.Unlock()
		return fmt.Errorf("CSV write failed: %w", err)
	}

	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error

	if err := dw.xlsxWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("XLSX close failed: %w", err))
	}

	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("CSV close failed: %w", err))
	}

	return errors.Join(errs...)
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error

	if err := dw.xlsxWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("XLSX validation failed: %w", err))
	}

	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CSV validation failed: %w", err))
	}

	return errors.Join(errs...)
}
