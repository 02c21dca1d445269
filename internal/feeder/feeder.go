// Package feeder reads the emitted data files back row by row, the way the
// load tool walks its payload files.
package feeder

import (
	"context"
	"errors"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// Feeder provides rows from a dataset in file order.
// Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns the next record or ErrExhausted once every row was read.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

// ErrExhausted is returned when a feeder has no more records.
var ErrExhausted = errors.New("feeder exhausted: no more records available")
