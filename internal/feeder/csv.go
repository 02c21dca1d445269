package feeder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"
)

// CSVFeeder reads records from a CSV file and hands them out in order.
// It is safe for concurrent access.
type CSVFeeder struct {
	records []Record
	index   int
	mu      sync.Mutex
}

// NewCSVFeeder creates a feeder from the CSV file at path.
//
// When fields is empty the first row is treated as the header. Otherwise the
// file is header-less and fields names its columns, as in a load scenario
// payload declaration.
func NewCSVFeeder(path string, fields ...string) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	header := fields
	firstLine := 1
	if len(header) == 0 {
		if len(rows) == 0 {
			return nil, errors.New("CSV file is empty")
		}
		if len(rows) < 2 {
			return nil, errors.New("CSV file must have at least one header row and one data row")
		}
		header = rows[0]
		rows = rows[1:]
		firstLine = 2
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+firstLine, len(row), len(header))
		}

		record := make(Record, len(header))
		for j, field := range header {
			record[field] = row[j]
		}
		records = append(records, record)
	}

	return &CSVFeeder{records: records}, nil
}

// Next returns the next record in file order.
// Returns ErrExhausted when all records have been consumed.
func (f *CSVFeeder) Next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index >= len(f.records) {
		return nil, ErrExhausted
	}

	record := f.records[f.index]
	f.index++
	return record, nil
}

// At returns the record at zero-based position i without advancing.
func (f *CSVFeeder) At(i int) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i < 0 || i >= len(f.records) {
		return nil, fmt.Errorf("row %d out of range (file has %d rows)", i, len(f.records))
	}
	return f.records[i], nil
}

// Close releases resources. For CSV feeder, this is a no-op.
func (f *CSVFeeder) Close() error {
	return nil
}

// Len returns the total number of records in the dataset.
func (f *CSVFeeder) Len() int {
	return len(f.records)
}
