package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

const filePerm = 0o644

// Writer appends records to a CSV file, one durable row at a time.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	csv  *gocsv.SafeCSVWriter
	rows int
}

// OpenWriter opens path for appending, creating it if needed. The header row
// is written only when the file is new or empty.
func OpenWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()

		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	w := &Writer{
		file: file,
		csv:  gocsv.NewSafeCSVWriter(csv.NewWriter(file)),
	}

	if info.Size() == 0 {
		headerErr := gocsv.MarshalCSV([]Record{}, w.csv)
		if headerErr == nil {
			headerErr = file.Sync()
		}

		if headerErr != nil {
			file.Close()

			return nil, fmt.Errorf("write dataset header: %w", headerErr)
		}
	}

	return w, nil
}

// Write appends rec and syncs it to disk before returning.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := gocsv.MarshalCSVWithoutHeaders([]Record{rec}, w.csv)
	if err != nil {
		return fmt.Errorf("write dataset row: %w", err)
	}

	err = w.file.Sync()
	if err != nil {
		return fmt.Errorf("sync dataset: %w", err)
	}

	w.rows++

	return nil
}

// Rows returns the number of rows written through this writer.
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rows
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}

// CountRows returns the number of data rows in the CSV file at path.
// A missing file has zero rows.
func CountRows(path string) (int, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat dataset: %w", err)
	}

	if info.Size() == 0 {
		return 0, nil
	}

	var rows int

	err = gocsv.UnmarshalToCallback(file, func(Record) {
		rows++
	})
	if err != nil {
		return 0, fmt.Errorf("read dataset: %w", err)
	}

	return rows, nil
}
